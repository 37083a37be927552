package satlink

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncapsulationHeaderWireFormat(t *testing.T) {
	eh := CreateEncapsulationHeader()
	eh.SetFramingInfo(FirstByte | LastByte)
	eh.SetSequenceNumber(NewSequenceNumber10(513))
	eh.PushExtensionBit(ELiFieldsFollows)
	eh.PushLengthIndicator(37)
	eh.PushExtensionBit(ELiFieldsFollows)
	eh.PushLengthIndicator(512)
	eh.PushExtensionBit(DataFieldFollows)

	require.Equal(t, uint32(7), eh.GetSerializedSize())
	wire, err := eh.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x01, 0xC0, 0x00, 0x25, 0x02, 0x00}, wire)
	assert.Equal(t, "FI=0 SN=513 E=110 LI=[37 512]", eh.String())

	rcv := CreateEncapsulationHeader()
	n, err := rcv.Deserialize(append(wire, 0xAA, 0xBB))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), n)
	assert.Equal(t, eh.String(), rcv.String())

	assert.Equal(t, ELiFieldsFollows, rcv.PopExtensionBit())
	assert.Equal(t, uint16(37), rcv.PopLengthIndicator())
	assert.Equal(t, ELiFieldsFollows, rcv.PopExtensionBit())
	assert.Equal(t, uint16(512), rcv.PopLengthIndicator())
	assert.Equal(t, DataFieldFollows, rcv.PopExtensionBit())
}

func TestEncapsulationHeaderFixedPart(t *testing.T) {
	tests := []struct {
		name  string
		fi    uint8
		sn    int
		first bool
		last  bool
		wire  []byte
	}{
		{"single segment", FirstByte | LastByte, 0, true, true, []byte{0x00, 0x00, 0x00}},
		{"head", FirstByte | NoLastByte, 1023, true, false, []byte{0x43, 0xFF, 0x00}},
		{"tail", NoFirstByte | LastByte, 256, false, true, []byte{0x81, 0x00, 0x00}},
		{"middle", NoFirstByte | NoLastByte, 770, false, false, []byte{0xC3, 0x02, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eh := CreateEncapsulationHeader()
			eh.SetFramingInfo(tt.fi)
			eh.SetSequenceNumber(NewSequenceNumber10(tt.sn))
			eh.PushExtensionBit(DataFieldFollows)
			assert.Equal(t, tt.first, eh.IsFirstSegment())
			assert.Equal(t, tt.last, eh.IsLastSegment())

			wire, err := eh.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tt.wire, wire)

			rcv := CreateEncapsulationHeader()
			require.NoError(t, rcv.UnmarshalBinary(wire))
			assert.Equal(t, tt.fi, rcv.FramingInfo())
			assert.Equal(t, tt.sn, rcv.SequenceNumber().Value())
		})
	}
}

func TestSetFramingInfoMasks(t *testing.T) {
	eh := CreateEncapsulationHeader()
	eh.SetFramingInfo(0xFE)
	assert.Equal(t, uint8(0x02), eh.FramingInfo())
}

func TestEncapsulationHeaderManyExtensionBits(t *testing.T) {
	eh := CreateEncapsulationHeader()
	eh.SetFramingInfo(NoFirstByte)
	eh.SetSequenceNumber(NewSequenceNumber10(77))
	lis := []uint16{}
	for idx := 0; idx < 11; idx++ {
		li := uint16(100*idx + 1)
		eh.PushExtensionBit(ELiFieldsFollows)
		eh.PushLengthIndicator(li)
		lis = append(lis, li)
	}
	eh.PushExtensionBit(DataFieldFollows)

	// 12 extension bits span two bytes
	require.Equal(t, uint32(2+2+2*11), eh.GetSerializedSize())
	wire, err := eh.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xE0}, wire[2:4])

	rcv := CreateEncapsulationHeader()
	require.NoError(t, rcv.UnmarshalBinary(wire))
	assert.Equal(t, lis, rcv.LengthIndicators())
	assert.Len(t, rcv.ExtensionBits(), 12)
	assert.Equal(t, eh.String(), rcv.String())
}

func TestEncapsulationHeaderPushPopOrder(t *testing.T) {
	eh := CreateEncapsulationHeader()
	eh.PushExtensionBit(7)
	eh.PushExtensionBit(DataFieldFollows)
	eh.PushLengthIndicator(5)
	eh.PushLengthIndicator(9)

	assert.Equal(t, []uint8{1, 0}, eh.ExtensionBits())
	assert.Equal(t, ELiFieldsFollows, eh.PopExtensionBit())
	assert.Equal(t, DataFieldFollows, eh.PopExtensionBit())
	assert.Equal(t, uint16(5), eh.PopLengthIndicator())
	assert.Equal(t, uint16(9), eh.PopLengthIndicator())

	assert.Panics(t, func() { eh.PopExtensionBit() })
	assert.Panics(t, func() { eh.PopLengthIndicator() })
}

func TestEncapsulationHeaderAccessorsCopy(t *testing.T) {
	eh := CreateEncapsulationHeader()
	eh.PushLengthIndicator(3)
	lis := eh.LengthIndicators()
	lis[0] = 99
	assert.Equal(t, []uint16{3}, eh.LengthIndicators())
}

func TestDeserializeTruncated(t *testing.T) {
	full := []byte{0x02, 0x01, 0xC0, 0x00, 0x25, 0x02, 0x00}
	for size := 0; size < len(full); size++ {
		eh := CreateEncapsulationHeader()
		eh.SetSequenceNumber(NewSequenceNumber10(9))
		n, err := eh.Deserialize(full[:size])
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF, "size %d", size)
		assert.Equal(t, uint32(0), n)
		assert.Equal(t, 9, eh.SequenceNumber().Value(), "header unchanged on error")
	}

	// every extension bit set and no terminating zero
	eh := CreateEncapsulationHeader()
	_, err := eh.Deserialize([]byte{0x00, 0x00, 0xFF, 0xFF})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUnmarshalBinaryRejectsTrailingBytes(t *testing.T) {
	eh := CreateEncapsulationHeader()
	err := eh.UnmarshalBinary([]byte{0x00, 0x05, 0x00, 0x11})
	assert.ErrorContains(t, err, "1 trailing bytes")
}
