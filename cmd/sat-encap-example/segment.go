package main

import (
	"fmt"

	"github.com/iti/satlink"
)

// frame is one lower-layer frame: an encapsulation header and its data field
type frame struct {
	header *satlink.EncapsulationHeader
	data   []byte
}

// wire returns the serialized header followed by the data field
func (f *frame) wire() []byte {
	buf := make([]byte, int(f.header.GetSerializedSize())+len(f.data))
	f.header.Serialize(buf)
	copy(buf[f.header.GetSerializedSize():], f.data)
	return buf
}

// segment packs pdus into frames carrying at most frameData bytes of data each.
// Every PDU boundary inside a frame is announced by an extension bit and the
// length indicator of the segment ending there
func segment(pdus [][]byte, frameData int, firstSN satlink.SequenceNumber10) []*frame {
	if frameData < 1 {
		panic(fmt.Errorf("frame data field of %d bytes", frameData))
	}
	for idx, pdu := range pdus {
		if len(pdu) == 0 || len(pdu) > 0xFFFF {
			panic(fmt.Errorf("PDU %d has %d bytes, outside [1,65535]", idx, len(pdu)))
		}
	}
	frames := []*frame{}
	sn := firstSN
	pduIdx, offset := 0, 0
	for pduIdx < len(pdus) {
		eh := satlink.CreateEncapsulationHeader()
		eh.SetSequenceNumber(sn)

		fi := satlink.FirstByte | satlink.LastByte
		if offset > 0 {
			fi |= satlink.NoFirstByte
		}

		data := []byte{}
		segLens := []int{}
		for room := frameData; room > 0 && pduIdx < len(pdus); {
			rest := pdus[pduIdx][offset:]
			take := min(len(rest), room)
			data = append(data, rest[:take]...)
			segLens = append(segLens, take)
			room -= take
			offset += take
			if offset == len(pdus[pduIdx]) {
				pduIdx += 1
				offset = 0
			}
		}
		if offset > 0 {
			fi |= satlink.NoLastByte
		}
		eh.SetFramingInfo(fi)

		for _, n := range segLens[:len(segLens)-1] {
			eh.PushExtensionBit(satlink.ELiFieldsFollows)
			eh.PushLengthIndicator(uint16(n))
		}
		eh.PushExtensionBit(satlink.DataFieldFollows)

		frames = append(frames, &frame{header: eh, data: data})
		sn = sn.Next()
	}
	return frames
}

// reassembler rebuilds PDUs from frames received in sequence number order
type reassembler struct {
	expected satlink.SequenceNumber10
	started  bool
	partial  []byte
	pdus     [][]byte
	lost     int
}

// receive decodes one frame from the wire and delivers the PDUs it completes
func (r *reassembler) receive(wire []byte) error {
	eh := satlink.CreateEncapsulationHeader()
	n, err := eh.Deserialize(wire)
	if err != nil {
		return err
	}
	data := wire[n:]

	sn := eh.SequenceNumber()
	if r.started && sn != r.expected {
		// frames went missing, the PDU being rebuilt cannot be completed
		r.lost += sn.Sub(r.expected)
		r.partial = nil
	}
	r.started = true
	r.expected = sn.Next()

	// lengths of the segments closed by a length indicator; the last segment takes the rest
	segLens := []int{}
	for eh.PopExtensionBit() == satlink.ELiFieldsFollows {
		segLens = append(segLens, int(eh.PopLengthIndicator()))
	}
	if eh.IsFirstSegment() {
		r.partial = nil
	}
	// the head of a PDU whose start was lost is dropped
	dropping := !eh.IsFirstSegment() && r.partial == nil

	pos := 0
	for idx, segLen := range segLens {
		if pos+segLen > len(data) {
			return fmt.Errorf("frame %d: length indicators exceed the %d byte data field", sn.Value(), len(data))
		}
		seg := data[pos : pos+segLen]
		pos += segLen
		if idx == 0 && dropping {
			continue
		}
		r.pdus = append(r.pdus, append(r.partial, seg...))
		r.partial = nil
	}

	last := data[pos:]
	if len(segLens) == 0 && dropping {
		return nil
	}
	r.partial = append(r.partial, last...)
	if eh.IsLastSegment() {
		r.pdus = append(r.pdus, r.partial)
		r.partial = nil
	}
	return nil
}
