package satlink

// encap-header.go holds the codec for the link-layer encapsulation header that
// describes how an upper-layer PDU is segmented across lower-layer frames.
//
// Wire layout, big-endian:
//
//	byte 0      framing info (2 bits) | reserved (4 bits, zero) | sequence number bits 9-8
//	byte 1      sequence number bits 7-0
//	E groups    ceil(#E/8) bytes, extension bits MSB first in push order
//	LI fields   2 bytes per length indicator, in push order
//
// An extension bit of E_LI_FIELDS_FOLLOWS announces one more length indicator,
// DATA_FIELD_FOLLOWS ends the list

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// extension bit values
const (
	DataFieldFollows uint8 = 0
	ELiFieldsFollows uint8 = 1
)

// framing info flags.  FI = first | last
const (
	FirstByte   uint8 = 0x00
	NoFirstByte uint8 = 0x02
	LastByte    uint8 = 0x00
	NoLastByte  uint8 = 0x01
)

const (
	fixedHeaderLength = 2
	framingInfoMask   = 0x03
	framingInfoShift  = 6
	seqNumHighMask    = 0x03
)

// EncapsulationHeader is the in-memory form of one encapsulation header
type EncapsulationHeader struct {
	framingInfo      uint8
	sequenceNumber   SequenceNumber10
	extensionBits    []uint8 // includes the bit of the fixed part
	lengthIndicators []uint16
}

// CreateEncapsulationHeader returns an empty header
func CreateEncapsulationHeader() *EncapsulationHeader {
	return new(EncapsulationHeader)
}

// SetFramingInfo keeps the two low bits of fi
func (eh *EncapsulationHeader) SetFramingInfo(fi uint8) {
	eh.framingInfo = fi & framingInfoMask
}

func (eh *EncapsulationHeader) SetSequenceNumber(sn SequenceNumber10) {
	eh.sequenceNumber = NewSequenceNumber10(int(sn))
}

func (eh *EncapsulationHeader) FramingInfo() uint8 {
	return eh.framingInfo
}

func (eh *EncapsulationHeader) SequenceNumber() SequenceNumber10 {
	return eh.sequenceNumber
}

// IsFirstSegment reports whether the first byte of the data field is the first byte of a PDU
func (eh *EncapsulationHeader) IsFirstSegment() bool {
	return eh.framingInfo&NoFirstByte == FirstByte
}

// IsLastSegment reports whether the last byte of the data field is the last byte of a PDU
func (eh *EncapsulationHeader) IsLastSegment() bool {
	return eh.framingInfo&NoLastByte == LastByte
}

// PushExtensionBit appends an extension bit; any non-zero value is ELiFieldsFollows
func (eh *EncapsulationHeader) PushExtensionBit(bit uint8) {
	if bit != DataFieldFollows {
		bit = ELiFieldsFollows
	}
	eh.extensionBits = append(eh.extensionBits, bit)
}

func (eh *EncapsulationHeader) PushLengthIndicator(li uint16) {
	eh.lengthIndicators = append(eh.lengthIndicators, li)
}

// PopExtensionBit removes and returns the oldest extension bit.  Popping an empty
// list is a contract violation and panics
func (eh *EncapsulationHeader) PopExtensionBit() uint8 {
	if len(eh.extensionBits) == 0 {
		panic(fmt.Errorf("encapsulation header: pop from empty extension bit list"))
	}
	bit := eh.extensionBits[0]
	eh.extensionBits = eh.extensionBits[1:]
	return bit
}

// PopLengthIndicator removes and returns the oldest length indicator, panicking when there is none
func (eh *EncapsulationHeader) PopLengthIndicator() uint16 {
	if len(eh.lengthIndicators) == 0 {
		panic(fmt.Errorf("encapsulation header: pop from empty length indicator list"))
	}
	li := eh.lengthIndicators[0]
	eh.lengthIndicators = eh.lengthIndicators[1:]
	return li
}

// ExtensionBits returns a copy of the pending extension bits
func (eh *EncapsulationHeader) ExtensionBits() []uint8 {
	return append([]uint8{}, eh.extensionBits...)
}

// LengthIndicators returns a copy of the pending length indicators
func (eh *EncapsulationHeader) LengthIndicators() []uint16 {
	return append([]uint16{}, eh.lengthIndicators...)
}

// GetSerializedSize returns the number of bytes Serialize writes
func (eh *EncapsulationHeader) GetSerializedSize() uint32 {
	return uint32(fixedHeaderLength + extensionBytes(len(eh.extensionBits)) + 2*len(eh.lengthIndicators))
}

func extensionBytes(bits int) int {
	return (bits + 7) / 8
}

// Serialize writes the header at the start of buf, which the caller guarantees holds
// at least GetSerializedSize bytes
func (eh *EncapsulationHeader) Serialize(buf []byte) {
	sn := uint16(eh.sequenceNumber.Value())
	buf[0] = eh.framingInfo<<framingInfoShift | uint8(sn>>8)&seqNumHighMask
	buf[1] = uint8(sn)

	pos := fixedHeaderLength
	nb := extensionBytes(len(eh.extensionBits))
	for idx := 0; idx < nb; idx++ {
		buf[pos+idx] = 0
	}
	for idx, bit := range eh.extensionBits {
		if bit != DataFieldFollows {
			buf[pos+idx/8] |= 0x80 >> (idx % 8)
		}
	}
	pos += nb

	for _, li := range eh.lengthIndicators {
		binary.BigEndian.PutUint16(buf[pos:], li)
		pos += 2
	}
}

// MarshalBinary returns the wire form of the header
func (eh *EncapsulationHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, eh.GetSerializedSize())
	eh.Serialize(buf)
	return buf, nil
}

// Deserialize replaces the header's contents with the header read from the start of buf
// and returns the number of bytes consumed.  Extension bits are read until one equal to
// DataFieldFollows is seen, and one length indicator is read per ELiFieldsFollows bit.
// A truncated buffer gives an error wrapping io.ErrUnexpectedEOF and leaves the header unchanged
func (eh *EncapsulationHeader) Deserialize(buf []byte) (uint32, error) {
	if len(buf) < fixedHeaderLength {
		return 0, fmt.Errorf("encapsulation header: %d bytes, fixed part needs %d: %w",
			len(buf), fixedHeaderLength, io.ErrUnexpectedEOF)
	}
	fi := (buf[0] >> framingInfoShift) & framingInfoMask
	sn := NewSequenceNumber10(int(buf[0]&seqNumHighMask)<<8 | int(buf[1]))

	pos := fixedHeaderLength
	bits := []uint8{}
	liCount := 0
	for done := false; !done; {
		if pos >= len(buf) {
			return 0, fmt.Errorf("encapsulation header: extension bits run past %d bytes: %w",
				len(buf), io.ErrUnexpectedEOF)
		}
		for shift := 7; shift >= 0; shift-- {
			bit := (buf[pos] >> shift) & 0x01
			bits = append(bits, bit)
			if bit == DataFieldFollows {
				done = true
				break
			}
			liCount += 1
		}
		pos += 1
	}

	if len(buf) < pos+2*liCount {
		return 0, fmt.Errorf("encapsulation header: %d length indicators need %d bytes, have %d: %w",
			liCount, pos+2*liCount, len(buf), io.ErrUnexpectedEOF)
	}
	lis := make([]uint16, liCount)
	for idx := range lis {
		lis[idx] = binary.BigEndian.Uint16(buf[pos:])
		pos += 2
	}

	eh.framingInfo = fi
	eh.sequenceNumber = sn
	eh.extensionBits = bits
	eh.lengthIndicators = lis
	return uint32(pos), nil
}

// UnmarshalBinary decodes a header, rejecting trailing bytes
func (eh *EncapsulationHeader) UnmarshalBinary(data []byte) error {
	n, err := eh.Deserialize(data)
	if err != nil {
		return err
	}
	if int(n) != len(data) {
		return fmt.Errorf("encapsulation header: %d trailing bytes", len(data)-int(n))
	}
	return nil
}

func (eh *EncapsulationHeader) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FI=%d SN=%d E=", eh.framingInfo, eh.sequenceNumber.Value())
	for _, bit := range eh.extensionBits {
		fmt.Fprintf(&sb, "%d", bit)
	}
	sb.WriteString(" LI=[")
	for idx, li := range eh.lengthIndicators {
		if idx > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d", li)
	}
	sb.WriteString("]")
	return sb.String()
}
