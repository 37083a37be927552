package satlink

import (
	"fmt"
)

// SequenceNumberModulus is the size of the sequence number space of the encapsulation header
const SequenceNumberModulus = 1024

// SequenceNumber10 is a 10-bit sequence number.  All arithmetic is modulo 1024
type SequenceNumber10 uint16

// NewSequenceNumber10 reduces v modulo 1024
func NewSequenceNumber10(v int) SequenceNumber10 {
	v %= SequenceNumberModulus
	if v < 0 {
		v += SequenceNumberModulus
	}
	return SequenceNumber10(v)
}

// Value returns the sequence number as an int in [0,1024)
func (sn SequenceNumber10) Value() int {
	return int(sn) % SequenceNumberModulus
}

// Add returns sn advanced by delta, which may be negative
func (sn SequenceNumber10) Add(delta int) SequenceNumber10 {
	return NewSequenceNumber10(sn.Value() + delta)
}

// Next returns the sequence number following sn
func (sn SequenceNumber10) Next() SequenceNumber10 {
	return sn.Add(1)
}

// Sub returns the forward distance from other to sn, in [0,1024)
func (sn SequenceNumber10) Sub(other SequenceNumber10) int {
	return NewSequenceNumber10(sn.Value() - other.Value()).Value()
}

// Distance returns the number of steps separating sn and other around the circle,
// so 1023 and 0 are one apart
func (sn SequenceNumber10) Distance(other SequenceNumber10) int {
	d := sn.Sub(other)
	if d > SequenceNumberModulus/2 {
		d = SequenceNumberModulus - d
	}
	return d
}

// Less reports whether sn precedes other, i.e., other lies less than half the
// sequence space ahead of sn
func (sn SequenceNumber10) Less(other SequenceNumber10) bool {
	d := other.Sub(sn)
	return d > 0 && d < SequenceNumberModulus/2
}

func (sn SequenceNumber10) String() string {
	return fmt.Sprintf("%d", sn.Value())
}
