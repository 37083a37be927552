package satlink

// rayleigh.go implements a Rayleigh fader: a unit-power complex gaussian channel
// whose time correlation comes from an oscillator bank with the configured
// maximum Doppler spread

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Rayleigh parameter vector entries
const (
	RayleighMaxDoppler  = iota // maximum Doppler spread, Hz
	RayleighOscillators        // oscillators in the bank; zero gives independent draws
	RayleighParameterCount
)

// DefaultRayleighParams returns the compiled-in Rayleigh table, identical for every
// elevation set and state
func DefaultRayleighParams() [][][]float64 {
	params := make([][][]float64, DefaultElevationCount)
	for set := range params {
		params[set] = make([][]float64, DefaultStateCount)
		for state := range params[set] {
			params[set][state] = []float64{10.0, 10.0}
		}
	}
	return params
}

// RayleighConf is the Rayleigh parameter table, params[elevation set][state][RayleighParameterCount]
type RayleighConf struct {
	paramTable
}

// DefaultRayleighConf returns the compiled-in Rayleigh table matching DefaultMarkovConf
func DefaultRayleighConf() *RayleighConf {
	rc, err := CreateRayleighConf(DefaultRayleighParams())
	if err != nil {
		panic(err)
	}
	return rc
}

// CreateRayleighConf validates and copies a Rayleigh parameter table
func CreateRayleighConf(params [][][]float64) (*RayleighConf, error) {
	pt, err := createParamTable(RayleighFader, RayleighParameterCount, params)
	if err != nil {
		return nil, err
	}
	errs := []error{}
	for set := range pt.params {
		for state, vec := range pt.params[set] {
			if vec[RayleighMaxDoppler] < 0.0 {
				errs = append(errs, faderParamErr(RayleighFader, set, state, RayleighMaxDoppler,
					vec[RayleighMaxDoppler], "must not be negative"))
			}
			n := vec[RayleighOscillators]
			if n < 0.0 || n != math.Trunc(n) {
				errs = append(errs, faderParamErr(RayleighFader, set, state, RayleighOscillators, n,
					"must be a non-negative integer"))
			}
		}
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}
	return &RayleighConf{paramTable: pt}, nil
}

// RayleighModel is a Rayleigh fader pinned to one (elevation set, state) pair
type RayleighModel struct {
	conf  *RayleighConf
	set   int
	state int
	rng   RandomSource
	bank  *oscillatorBank
}

// CreateRayleighModel is a constructor.  stateCount must match the configuration
func CreateRayleighModel(conf *RayleighConf, stateCount, set, state int, rng RandomSource) *RayleighModel {
	conf.checkPinned(stateCount, set, state)
	rm := new(RayleighModel)
	rm.conf = conf
	rm.set = set
	rm.state = state
	rm.rng = sourceOrDefault(rng, "rayleigh")
	rm.shapeOscillators(conf.Parameters(set, state))
	return rm
}

func (rm *RayleighModel) Kind() FaderKind {
	return RayleighFader
}

// CurrentSet returns the elevation set the model is pinned to
func (rm *RayleighModel) CurrentSet() int {
	return rm.set
}

// CurrentState returns the state the model is pinned to
func (rm *RayleighModel) CurrentState() int {
	return rm.state
}

// GetChannelGainDb samples the model at time now with its pinned parameters
func (rm *RayleighModel) GetChannelGainDb(now float64) float64 {
	return rm.Sample(now, rm.conf.Parameters(rm.set, rm.state))
}

func (rm *RayleighModel) shapeOscillators(params []float64) {
	n := int(params[RayleighOscillators])
	if n > 0 && !rm.bank.matches(n, params[RayleighMaxDoppler]) {
		rm.bank = createOscillatorBank(n, params[RayleighMaxDoppler], rm.rng)
	}
}

// Sample returns the channel gain (dB) at time now for the given Rayleigh parameter vector
func (rm *RayleighModel) Sample(now float64, params []float64) float64 {
	if len(params) != RayleighParameterCount {
		panic(faderParamCountErr(RayleighFader, len(params), RayleighParameterCount))
	}
	rm.shapeOscillators(params)

	if int(params[RayleighOscillators]) == 0 {
		amp := rayleighRV(rm.rng, 1.0)
		return powerToDb(amp * amp)
	}
	amp := cmplx.Abs(rm.bank.complexGain(now))
	return powerToDb(amp * amp)
}

func faderParamErr(kind FaderKind, set, state, idx int, v float64, msg string) error {
	return fmt.Errorf("%s parameter %d of elevation set %d state %d is %g, %s", kind, idx, set, state, v, msg)
}

func faderParamCountErr(kind FaderKind, have, want int) error {
	return fmt.Errorf("%s sample given %d parameters, expected %d", kind, have, want)
}
