package satlink

// fader.go defines the capability shared by the fading models and the
// Markov-driven fader that a channel calls for a gain sample.  The set of fader
// kinds is closed: Loo and Rayleigh, chosen when the configuration is built

import (
	"context"
	"fmt"
	"github.com/iti/satlink/internal/logging"
	"math"
	"strings"
)

// FaderKind identifies one of the supported fading models
type FaderKind int

const (
	LooFader FaderKind = iota
	RayleighFader
)

var faderKindToStr = map[FaderKind]string{LooFader: "loo", RayleighFader: "rayleigh"}

func (fk FaderKind) String() string {
	s, present := faderKindToStr[fk]
	if !present {
		return fmt.Sprintf("FaderKind(%d)", int(fk))
	}
	return s
}

// FaderKindFromStr parses a fader kind name, case insensitively
func FaderKindFromStr(name string) (FaderKind, error) {
	for fk, s := range faderKindToStr {
		if strings.EqualFold(name, s) {
			return fk, nil
		}
	}
	return 0, fmt.Errorf("fader kind %q not recognized", name)
}

// minimum channel power returned by a fader, keeps gains finite
const minChannelGain = 1e-20

// powerToDb converts a linear power gain to dB
func powerToDb(p float64) float64 {
	return 10.0 * math.Log10(math.Max(p, minChannelGain))
}

// FaderConf is the shared parameter set of a fading model, organised by
// elevation set and Markov state
type FaderConf interface {
	Kind() FaderKind
	ElevationCount() int
	StateCount() int
	ParameterCount() int

	// GetParameters returns the parameter vectors of every state of elevation set set
	GetParameters(set int) [][]float64

	// Parameters returns the parameter vector of one (elevation set, state) pair
	Parameters(set, state int) []float64
}

// Fader draws a channel gain (dB) at simulation time now from the distribution
// described by params, a parameter vector taken from the fader's FaderConf
type Fader interface {
	Kind() FaderKind
	Sample(now float64, params []float64) float64
}

// CreateFader builds the fader matching the kind of conf, pinned to the given
// elevation set and state
func CreateFader(conf FaderConf, set, state int, rng RandomSource) Fader {
	switch fc := conf.(type) {
	case *LooConf:
		return CreateLooModel(fc, fc.StateCount(), set, state, rng)
	case *RayleighConf:
		return CreateRayleighModel(fc, fc.StateCount(), set, state, rng)
	}
	panic(fmt.Errorf("no fader for configuration of type %T", conf))
}

// FaderOptions are the optional settings of a MarkovFader
type FaderOptions struct {
	Set          int           // initial elevation set
	InitialState int           // initial Markov state; negative draws it from the initial distribution
	Sources      SourceFactory // creates the random stream of each component; defaults to rngstream
	Logger       logging.Logger
	Collector    *FadingCollector
}

// MarkovFader couples a Markov channel-state engine with one fader per Markov state.
// On every sample the engine chooses the state and that state's fader, fed the
// parameters of the (elevation set, state) pair, produces the gain
type MarkovFader struct {
	name       string
	markov     *MarkovModel
	faderConf  FaderConf
	faders     []Fader
	logger     logging.Logger
	collector  *FadingCollector
	lastGainDb float64
	samples    int
}

// CreateMarkovFader is a constructor.  The Markov and fader configurations must agree
// on elevation and state counts; a mismatch is a setup error and panics
func CreateMarkovFader(name string, markovConf *MarkovConf, faderConf FaderConf, opts FaderOptions) *MarkovFader {
	if markovConf == nil || faderConf == nil {
		panic(fmt.Errorf("Markov fader %s needs both a Markov and a fader configuration", name))
	}
	if markovConf.ElevationCount() != faderConf.ElevationCount() || markovConf.StateCount() != faderConf.StateCount() {
		panic(fmt.Errorf("Markov fader %s: Markov configuration is %dx%d (elevations x states), %s configuration is %dx%d",
			name, markovConf.ElevationCount(), markovConf.StateCount(), faderConf.Kind(),
			faderConf.ElevationCount(), faderConf.StateCount()))
	}

	sources := opts.Sources
	if sources == nil {
		sources = CreateRngStream
	}

	mf := new(MarkovFader)
	mf.name = name
	mf.faderConf = faderConf
	mf.collector = opts.Collector
	mf.markov = CreateMarkovModel(name+"/markov", markovConf, opts.Set, opts.InitialState, sources(name+"/markov"))
	mf.faders = make([]Fader, markovConf.StateCount())
	for state := range mf.faders {
		mf.faders[state] = CreateFader(faderConf, opts.Set, state, sources(fmt.Sprintf("%s/%s/%d", name, faderConf.Kind(), state)))
	}
	mf.SetLogger(opts.Logger)
	return mf
}

// SetLogger replaces the fader's logger, and that of its Markov engine
func (mf *MarkovFader) SetLogger(logger logging.Logger) {
	mf.logger = logging.OrNoop(logger).With(logging.String("fader", mf.name))
	mf.markov.SetLogger(logger)
}

// Name returns the name given at construction
func (mf *MarkovFader) Name() string {
	return mf.name
}

// Kind returns the kind of the per-state faders
func (mf *MarkovFader) Kind() FaderKind {
	return mf.faderConf.Kind()
}

// Markov exposes the fader's Markov engine, e.g., to change the elevation set
func (mf *MarkovFader) Markov() *MarkovModel {
	return mf.markov
}

// CurrentSet returns the active elevation set
func (mf *MarkovFader) CurrentSet() int {
	return mf.markov.CurrentSet()
}

// CurrentState returns the Markov state of the active elevation set
func (mf *MarkovFader) CurrentState() int {
	return mf.markov.CurrentState()
}

// LastGainDb returns the gain produced by the most recent sample
func (mf *MarkovFader) LastGainDb() float64 {
	return mf.lastGainDb
}

// Samples returns the number of gains produced so far
func (mf *MarkovFader) Samples() int {
	return mf.samples
}

// GetChannelGainDb returns the channel gain (dB) at simulation time now (seconds)
func (mf *MarkovFader) GetChannelGainDb(now float64) float64 {
	set := mf.markov.CurrentSet()
	prev := mf.markov.CurrentState()
	state, drawn := mf.markov.Update(now)
	if drawn {
		mf.collector.observeTransition(set, prev, state)
	}

	params := mf.faderConf.Parameters(set, state)
	gain := mf.faders[state].Sample(now, params)

	mf.lastGainDb = gain
	mf.samples += 1
	mf.collector.observeGain(mf.faderConf.Kind(), gain)
	mf.logger.Debug(context.Background(), "channel gain",
		logging.Float("time", now), logging.Int("set", set), logging.Int("state", state),
		logging.Float("gainDb", gain))
	return gain
}

// paramTable is the parameter storage common to the fader configurations:
// params[elevation set][state] is a vector of paramCount values
type paramTable struct {
	kind           FaderKind
	elevationCount int
	stateCount     int
	paramCount     int
	params         [][][]float64
}

// createParamTable copies and validates a parameter table of the given shape
func createParamTable(kind FaderKind, paramCount int, params [][][]float64) (paramTable, error) {
	pt := paramTable{kind: kind, paramCount: paramCount}
	if len(params) == 0 {
		return pt, fmt.Errorf("%s parameter table is empty", kind)
	}
	pt.elevationCount = len(params)
	pt.stateCount = len(params[0])
	if pt.stateCount == 0 {
		return pt, fmt.Errorf("%s parameter table has no states", kind)
	}

	errs := []error{}
	pt.params = make([][][]float64, pt.elevationCount)
	for set, states := range params {
		if len(states) != pt.stateCount {
			errs = append(errs, fmt.Errorf("%s elevation set %d has %d states, expected %d", kind, set, len(states), pt.stateCount))
			continue
		}
		pt.params[set] = make([][]float64, pt.stateCount)
		for state, vec := range states {
			if len(vec) != paramCount {
				errs = append(errs, fmt.Errorf("%s parameters of elevation set %d state %d have %d values, expected %d",
					kind, set, state, len(vec), paramCount))
				continue
			}
			for idx, v := range vec {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					errs = append(errs, fmt.Errorf("%s parameter %d of elevation set %d state %d is not finite", kind, idx, set, state))
				}
			}
			pt.params[set][state] = append([]float64{}, vec...)
		}
	}
	return pt, ReportErrs(errs)
}

func (pt *paramTable) Kind() FaderKind {
	return pt.kind
}

func (pt *paramTable) ElevationCount() int {
	return pt.elevationCount
}

func (pt *paramTable) StateCount() int {
	return pt.stateCount
}

func (pt *paramTable) ParameterCount() int {
	return pt.paramCount
}

// GetParameters returns a copy of the parameter vectors of every state of elevation set set
func (pt *paramTable) GetParameters(set int) [][]float64 {
	if set < 0 || set >= pt.elevationCount {
		panic(fmt.Errorf("%s elevation set %d out of range [0,%d)", pt.kind, set, pt.elevationCount))
	}
	rtn := make([][]float64, pt.stateCount)
	for state := range rtn {
		rtn[state] = pt.Parameters(set, state)
	}
	return rtn
}

// Parameters returns a copy of the parameter vector of one (elevation set, state) pair
func (pt *paramTable) Parameters(set, state int) []float64 {
	if set < 0 || set >= pt.elevationCount {
		panic(fmt.Errorf("%s elevation set %d out of range [0,%d)", pt.kind, set, pt.elevationCount))
	}
	if state < 0 || state >= pt.stateCount {
		panic(fmt.Errorf("%s state %d out of range [0,%d)", pt.kind, state, pt.stateCount))
	}
	vec := pt.params[set][state]
	if len(vec) != pt.paramCount {
		panic(fmt.Errorf("%s has no parameters for elevation set %d state %d", pt.kind, set, state))
	}
	return append([]float64{}, vec...)
}

// checkPinned panics unless (set, state) index the table and the caller's state count matches
func (pt *paramTable) checkPinned(stateCount, set, state int) {
	if stateCount != pt.stateCount {
		panic(fmt.Errorf("%s model built for %d states, configuration has %d", pt.kind, stateCount, pt.stateCount))
	}
	pt.Parameters(set, state)
}
