package satlink

// markov-model.go holds the per-link Markov channel-state engine.  The engine
// keeps a current state for every elevation set, tracks which set is active,
// and on each sampling instant decides, from the dwell law and the transition
// table of the active set, whether the link moves to another state

import (
	"context"
	"fmt"
	"github.com/iti/satlink/internal/logging"
)

// MarkovModel is the mutable state of one link's Markov chain.  The configuration
// it points to is shared; everything else is owned by the model
type MarkovModel struct {
	name           string
	conf           *MarkovConf
	currentSet     int          // active elevation set
	states         []int        // current state held for each elevation set
	dwell          float64      // sojourn drawn for the current state of the active set
	lastTransition float64      // simulation time (seconds) the current sojourn began
	rng            RandomSource // stream driving transitions and dwell draws
	logger         logging.Logger
}

// CreateMarkovModel is a constructor.  set selects the active elevation set.  A negative
// initialState draws the starting state of each set from that set's initial distribution;
// otherwise every set starts in initialState.  A nil rng is replaced by an rngstream stream
// named after the model
func CreateMarkovModel(name string, conf *MarkovConf, set, initialState int, rng RandomSource) *MarkovModel {
	if conf == nil {
		panic(fmt.Errorf("Markov model %s created without configuration", name))
	}
	conf.checkSet(set)
	if initialState >= 0 {
		conf.checkState(initialState)
	}

	mm := new(MarkovModel)
	mm.name = name
	mm.conf = conf
	mm.currentSet = set
	mm.rng = sourceOrDefault(rng, name)
	mm.logger = logging.Noop()
	mm.states = make([]int, conf.ElevationCount())
	for idx := range mm.states {
		if initialState >= 0 {
			mm.states[idx] = initialState
		} else {
			mm.states[idx] = mm.drawFrom(conf.initial[idx], 0)
		}
	}
	mm.lastTransition = 0.0
	mm.dwell = mm.drawDwell(mm.states[set])
	return mm
}

// SetLogger replaces the model's logger
func (mm *MarkovModel) SetLogger(logger logging.Logger) {
	mm.logger = logging.OrNoop(logger).With(logging.String("markov", mm.name))
}

// Conf returns the shared configuration
func (mm *MarkovModel) Conf() *MarkovConf {
	return mm.conf
}

// CurrentSet returns the active elevation set
func (mm *MarkovModel) CurrentSet() int {
	return mm.currentSet
}

// CurrentState returns the state of the active elevation set
func (mm *MarkovModel) CurrentState() int {
	return mm.states[mm.currentSet]
}

// GetState returns the state currently held for the given elevation set
func (mm *MarkovModel) GetState(elevationIndex int) int {
	mm.conf.checkSet(elevationIndex)
	return mm.states[elevationIndex]
}

// AdvanceAndSample is called on a sampling tick with the time elapsed since the
// current sojourn in currentState began.  While the dwell drawn for the sojourn has not
// run out the state is kept; otherwise the next state is drawn from the transition row of
// currentState, stored as the state of the elevation set, and a new dwell is drawn
func (mm *MarkovModel) AdvanceAndSample(elevationIndex, currentState int, elapsed float64) int {
	next, _ := mm.advance(elevationIndex, currentState, elapsed)
	return next
}

// advance implements AdvanceAndSample, also reporting whether a transition was drawn
func (mm *MarkovModel) advance(elevationIndex, currentState int, elapsed float64) (int, bool) {
	mm.conf.checkSet(elevationIndex)
	mm.conf.checkState(currentState)
	if elapsed < 0.0 {
		panic(fmt.Errorf("Markov model %s advanced by negative time %g", mm.name, elapsed))
	}

	if roundFloat(elapsed, rdigits) < roundFloat(mm.dwell, rdigits) {
		return currentState, false
	}
	next := mm.DoTransition(elevationIndex, currentState)
	mm.states[elevationIndex] = next
	mm.dwell = mm.drawDwell(next)
	return next, true
}

// DoTransition draws the state following currentState from the cumulative transition
// distribution of the elevation set.  Self-transitions are legal
func (mm *MarkovModel) DoTransition(elevationIndex, currentState int) int {
	mm.conf.checkSet(elevationIndex)
	mm.conf.checkState(currentState)
	row := mm.conf.probs[elevationIndex].RawRowView(currentState)
	return mm.drawFrom(row, currentState)
}

// drawFrom walks the cumulative distribution p with a single U01 draw.  If rounding leaves
// the draw beyond the accumulated mass the last state with positive probability is taken,
// or fallback when there is none
func (mm *MarkovModel) drawFrom(p []float64, fallback int) int {
	u01 := mm.rng.RandU01()
	cumulative := 0.0
	last := fallback
	for state, pr := range p {
		if pr <= 0.0 {
			continue
		}
		cumulative += pr
		last = state
		if u01 < cumulative {
			return state
		}
	}
	return last
}

// drawDwell samples the sojourn in state from the configured dwell law
func (mm *MarkovModel) drawDwell(state int) float64 {
	return mm.conf.sampleDwell(mm.rng.RandU01(), mm.conf.dwell.Params, state)
}

// Update brings the active elevation set forward to simulation time now (seconds),
// returning the state to use at now and whether a transition draw took place
func (mm *MarkovModel) Update(now float64) (int, bool) {
	if now < mm.lastTransition {
		panic(fmt.Errorf("Markov model %s updated at %g, before its last transition at %g",
			mm.name, now, mm.lastTransition))
	}
	set := mm.currentSet
	prev := mm.states[set]
	next, drawn := mm.advance(set, prev, now-mm.lastTransition)
	if drawn {
		mm.lastTransition = now
		if next != prev {
			mm.logger.Debug(context.Background(), "state transition",
				logging.Float("time", now), logging.Int("set", set),
				logging.Int("from", prev), logging.Int("to", next))
		}
	}
	return next, drawn
}

// SetElevation makes the elevation set closest to angleDeg the active one.  The link
// carries its current state into the new set.  Returns the new active set
func (mm *MarkovModel) SetElevation(angleDeg float64) int {
	set := mm.conf.GetClosestSet(angleDeg)
	mm.SetElevationSet(set)
	return set
}

// SetElevationSet makes set the active elevation set, carrying the current state into it
func (mm *MarkovModel) SetElevationSet(set int) {
	mm.conf.checkSet(set)
	if set == mm.currentSet {
		return
	}
	mm.states[set] = mm.states[mm.currentSet]
	mm.logger.Debug(context.Background(), "elevation set change",
		logging.Int("from", mm.currentSet), logging.Int("to", set),
		logging.Int("state", mm.states[set]))
	mm.currentSet = set
}
