package satlink

// loo.go implements Loo's land-mobile-satellite fading model.  The channel is the
// sum of a log-normally distributed direct signal and a Rayleigh distributed
// diffuse multipath component.  Both are made time-correlated with oscillator
// banks; an oscillator count of zero replaces the bank with independent draws

import (
	"math"
	"math/cmplx"
)

// LooParameterCount is the length of a Loo parameter vector.  The entries, in order:
const (
	LooDirectMeanDb       = iota // mean of the direct signal, dB
	LooDirectStdDevDb            // standard deviation of the direct signal, dB
	LooMultipathPowerDb          // average power of the multipath component, dB
	LooDirectOscillators         // oscillators shaping the direct signal
	LooMultipathOscillators      // oscillators shaping the multipath component
	LooDirectMaxDoppler          // maximum Doppler of the direct signal, Hz
	LooMultipathMaxDoppler       // maximum Doppler of the multipath component, Hz
	LooParameterCount
)

// default Loo parameters per elevation set and state (line-of-sight, light
// shadowing, heavy shadowing)
var defaultLooParameters = [DefaultElevationCount][DefaultStateCount][LooParameterCount]float64{
	/* Elevation 40 */
	{{-0.1, 0.37, -22.0, 10, 10, 0.5, 30},
		{-8.7, 3.91, -12.2, 10, 10, 0.5, 30},
		{-12.1, 0.94, -23.0, 10, 10, 0.5, 30}},

	/* Elevation 60 */
	{{-0.4, 0.17, -17.8, 10, 10, 0.5, 30},
		{-2.8, 1.23, -18.0, 10, 10, 0.5, 30},
		{-11.4, 1.80, -22.2, 10, 10, 0.5, 30}},

	/* Elevation 70 */
	{{-0.2, 0.17, -17.7, 10, 10, 0.5, 30},
		{-3.1, 1.79, -17.9, 10, 10, 0.5, 30},
		{-10.7, 1.63, -21.5, 10, 10, 0.5, 30}},

	/* Elevation 80 */
	{{-0.1, 0.03, -22.6, 10, 10, 0.5, 30},
		{-1.5, 0.62, -20.4, 10, 10, 0.5, 30},
		{-7.7, 1.03, -21.1, 10, 10, 0.5, 30}},
}

// LooConf is the Loo parameter table, params[elevation set][state][LooParameterCount]
type LooConf struct {
	paramTable
}

// DefaultLooConf returns the compiled-in Loo table matching DefaultMarkovConf
func DefaultLooConf() *LooConf {
	lc, err := CreateLooConf(DefaultLooParams())
	if err != nil {
		panic(err)
	}
	return lc
}

// DefaultLooParams returns a copy of the compiled-in Loo table
func DefaultLooParams() [][][]float64 {
	params := make([][][]float64, DefaultElevationCount)
	for set := range params {
		params[set] = make([][]float64, DefaultStateCount)
		for state := range params[set] {
			params[set][state] = append([]float64{}, defaultLooParameters[set][state][:]...)
		}
	}
	return params
}

// CreateLooConf validates and copies a Loo parameter table.  Oscillator counts
// must be non-negative integers, the standard deviation and Doppler spreads non-negative
func CreateLooConf(params [][][]float64) (*LooConf, error) {
	pt, err := createParamTable(LooFader, LooParameterCount, params)
	if err != nil {
		return nil, err
	}
	errs := []error{}
	for set := range pt.params {
		for state, vec := range pt.params[set] {
			errs = append(errs, checkLooParams(vec, set, state)...)
		}
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}
	return &LooConf{paramTable: pt}, nil
}

func checkLooParams(vec []float64, set, state int) []error {
	errs := []error{}
	for _, idx := range []int{LooDirectStdDevDb, LooDirectMaxDoppler, LooMultipathMaxDoppler} {
		if vec[idx] < 0.0 {
			errs = append(errs, faderParamErr(LooFader, set, state, idx, vec[idx], "must not be negative"))
		}
	}
	for _, idx := range []int{LooDirectOscillators, LooMultipathOscillators} {
		if vec[idx] < 0.0 || vec[idx] != math.Trunc(vec[idx]) {
			errs = append(errs, faderParamErr(LooFader, set, state, idx, vec[idx], "must be a non-negative integer"))
		}
	}
	return errs
}

// LooModel is a Loo fader pinned to one (elevation set, state) pair of a LooConf.
// Its oscillator banks are built from the pinned parameters and rebuilt if a sample
// arrives with parameters of a different oscillator shape
type LooModel struct {
	conf      *LooConf
	set       int
	state     int
	rng       RandomSource
	direct    *oscillatorBank
	multipath *oscillatorBank
}

// CreateLooModel is a constructor.  stateCount must match the configuration
func CreateLooModel(conf *LooConf, stateCount, set, state int, rng RandomSource) *LooModel {
	conf.checkPinned(stateCount, set, state)
	lm := new(LooModel)
	lm.conf = conf
	lm.set = set
	lm.state = state
	lm.rng = sourceOrDefault(rng, "loo")
	lm.shapeOscillators(conf.Parameters(set, state))
	return lm
}

func (lm *LooModel) Kind() FaderKind {
	return LooFader
}

// CurrentSet returns the elevation set the model is pinned to
func (lm *LooModel) CurrentSet() int {
	return lm.set
}

// CurrentState returns the state the model is pinned to
func (lm *LooModel) CurrentState() int {
	return lm.state
}

// GetChannelGainDb samples the model at time now with its pinned parameters
func (lm *LooModel) GetChannelGainDb(now float64) float64 {
	return lm.Sample(now, lm.conf.Parameters(lm.set, lm.state))
}

// shapeOscillators (re)builds the banks whose shape no longer matches params
func (lm *LooModel) shapeOscillators(params []float64) {
	dn := int(params[LooDirectOscillators])
	if dn > 0 && !lm.direct.matches(dn, params[LooDirectMaxDoppler]) {
		lm.direct = createOscillatorBank(dn, params[LooDirectMaxDoppler], lm.rng)
	}
	mn := int(params[LooMultipathOscillators])
	if mn > 0 && !lm.multipath.matches(mn, params[LooMultipathMaxDoppler]) {
		lm.multipath = createOscillatorBank(mn, params[LooMultipathMaxDoppler], lm.rng)
	}
}

// Sample returns the channel gain (dB) at time now for the given Loo parameter vector
func (lm *LooModel) Sample(now float64, params []float64) float64 {
	if len(params) != LooParameterCount {
		panic(faderParamCountErr(LooFader, len(params), LooParameterCount))
	}
	lm.shapeOscillators(params)

	// direct signal: log-normal amplitude
	var z float64
	if int(params[LooDirectOscillators]) > 0 {
		z = lm.direct.realGain(now)
	} else {
		z = normalRV(lm.rng, 0.0, 1.0)
	}
	directDb := params[LooDirectMeanDb] + params[LooDirectStdDevDb]*z
	direct := complex(math.Pow(10.0, directDb/20.0), 0.0)

	// multipath: complex gaussian of the configured mean power
	var mp complex128
	if int(params[LooMultipathOscillators]) > 0 {
		mp = lm.multipath.complexGain(now)
	} else {
		sigma := math.Sqrt(0.5)
		mp = complex(normalRV(lm.rng, 0.0, sigma), normalRV(lm.rng, 0.0, sigma))
	}
	mp *= complex(math.Sqrt(math.Pow(10.0, params[LooMultipathPowerDb]/10.0)), 0.0)

	amp := cmplx.Abs(direct + mp)
	return powerToDb(amp * amp)
}
