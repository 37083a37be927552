package satlink

// oscillator.go implements the sum-of-sinusoids (Jakes) generator used by the
// fading samplers to produce time-correlated gaussian processes.  Each oscillator
// has a Doppler frequency set by a random angle of arrival and a random initial
// phase, both drawn once from the owning model's stream

import (
	"math"
	"math/cmplx"
)

type oscillator struct {
	freq  float64 // Doppler shift, Hz
	phase float64 // initial phase, radians
}

// oscillatorBank sums count oscillators whose Doppler shifts lie within +/- maxDoppler
type oscillatorBank struct {
	count      int
	maxDoppler float64
	osc        []oscillator
}

// createOscillatorBank is a constructor.  Angles of arrival are spread over the circle,
// one per sector of width 2*pi/count, with a random offset inside the sector
func createOscillatorBank(count int, maxDoppler float64, rng RandomSource) *oscillatorBank {
	ob := new(oscillatorBank)
	ob.count = count
	ob.maxDoppler = maxDoppler
	ob.osc = make([]oscillator, count)
	for n := 0; n < count; n++ {
		alpha := 2.0 * math.Pi * (float64(n) + rng.RandU01()) / float64(count)
		ob.osc[n] = oscillator{
			freq:  maxDoppler * math.Cos(alpha),
			phase: 2.0 * math.Pi * rng.RandU01(),
		}
	}
	return ob
}

// matches reports whether the bank was built for the given shape
func (ob *oscillatorBank) matches(count int, maxDoppler float64) bool {
	return ob != nil && ob.count == count && ob.maxDoppler == maxDoppler
}

// complexGain returns the bank's value at time t (seconds).  The process has unit mean power
func (ob *oscillatorBank) complexGain(t float64) complex128 {
	var sum complex128
	for _, o := range ob.osc {
		sum += cmplx.Exp(complex(0.0, 2.0*math.Pi*o.freq*t+o.phase))
	}
	return sum / complex(math.Sqrt(float64(ob.count)), 0.0)
}

// realGain returns the in-phase component at time t, scaled to unit variance
func (ob *oscillatorBank) realGain(t float64) float64 {
	sum := 0.0
	for _, o := range ob.osc {
		sum += math.Cos(2.0*math.Pi*o.freq*t + o.phase)
	}
	return sum * math.Sqrt(2.0/float64(ob.count))
}
