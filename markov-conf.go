package satlink

// markov-conf.go holds the configuration shared by every Markov channel-state
// engine built from it: the elevation sets, the transition matrix of each set,
// the initial state probabilities and the dwell law.  A MarkovConf is validated
// when it is built and is never modified afterwards, so any number of models
// may hold a pointer to it

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"
	"math"
)

const (
	DefaultElevationCount = 4
	DefaultStateCount     = 3

	// transitions are drawn at most this often (seconds) under the default fixed dwell law
	DefaultCooldownPeriod = 0.05

	// tolerance applied when checking that probability vectors sum to one
	probabilityTolerance = 1e-6
)

// elevation angles (degrees) of the default elevation sets
var defaultElevationAngles = [DefaultElevationCount]float64{40.0, 60.0, 70.0, 80.0}

// default per-set transition probabilities.  States are line-of-sight,
// light shadowing and heavy shadowing, in that order
var defaultTransitionProbabilities = [DefaultElevationCount][DefaultStateCount][DefaultStateCount]float64{
	/* Elevation 40 */
	{{0.9530, 0.0431, 0.0039},
		{0.0515, 0.9347, 0.0138},
		{0.0334, 0.0238, 0.9428}},

	/* Elevation 60 */
	{{0.9643, 0.0255, 0.0102},
		{0.0628, 0.9171, 0.0201},
		{0.0447, 0.0167, 0.9386}},

	/* Elevation 70 */
	{{0.9782, 0.0178, 0.0040},
		{0.0724, 0.9105, 0.0171},
		{0.0360, 0.0135, 0.9505}},

	/* Elevation 80 */
	{{0.9804, 0.0160, 0.0036},
		{0.0733, 0.9155, 0.0112},
		{0.0324, 0.0084, 0.9592}},
}

// default probabilities of the state a model starts in, per elevation set
var defaultInitialProbabilities = [DefaultElevationCount][DefaultStateCount]float64{
	{0.50, 0.30, 0.20},
	{0.60, 0.25, 0.15},
	{0.70, 0.20, 0.10},
	{0.78, 0.15, 0.07},
}

// MarkovConf is the immutable, shareable configuration of the Markov engine
type MarkovConf struct {
	elevationAngles []float64    // angle in degrees of each elevation set
	stateCount      int          // number of states of the chain
	probs           []*mat.Dense // stateCount x stateCount transition matrix per elevation set
	initial         [][]float64  // initial state probabilities per elevation set
	dwell           DwellConf    // law governing the sojourn in a state
	sampleDwell     dwellFunc
}

// DefaultMarkovConf returns the compiled-in configuration: four elevation sets,
// three states, and the fixed dwell law with the default cooldown period
func DefaultMarkovConf() *MarkovConf {
	mcd := DefaultMarkovConfDesc()
	mc, err := CreateMarkovConf(mcd)
	if err != nil {
		panic(fmt.Errorf("default Markov configuration rejected: %w", err))
	}
	return mc
}

// DefaultMarkovConfDesc returns the serializable form of the compiled-in configuration
func DefaultMarkovConfDesc() *MarkovConfDesc {
	mcd := new(MarkovConfDesc)
	mcd.ElevationAngles = append([]float64{}, defaultElevationAngles[:]...)
	mcd.StateCount = DefaultStateCount
	mcd.Transitions = make([][][]float64, DefaultElevationCount)
	mcd.Initial = make([][]float64, DefaultElevationCount)
	for set := 0; set < DefaultElevationCount; set++ {
		mcd.Transitions[set] = make([][]float64, DefaultStateCount)
		for state := 0; state < DefaultStateCount; state++ {
			mcd.Transitions[set][state] = append([]float64{}, defaultTransitionProbabilities[set][state][:]...)
		}
		mcd.Initial[set] = append([]float64{}, defaultInitialProbabilities[set][:]...)
	}
	mcd.Dwell = DwellDesc{Policy: FixedDwell, Params: []float64{DefaultCooldownPeriod}}
	return mcd
}

// CreateMarkovConf builds the run-time configuration from its description, rejecting
// any inconsistency before a model can be built on it.  A missing Initial table defaults
// to the uniform distribution.
func CreateMarkovConf(mcd *MarkovConfDesc) (*MarkovConf, error) {
	if mcd == nil {
		return nil, errors.New("nil Markov configuration description")
	}
	errs := []error{}

	elevationCount := len(mcd.ElevationAngles)
	if elevationCount == 0 {
		errs = append(errs, errors.New("Markov configuration has no elevation sets"))
	}
	if mcd.StateCount < 1 {
		errs = append(errs, fmt.Errorf("Markov configuration state count %d is not positive", mcd.StateCount))
	}
	if len(mcd.Transitions) != elevationCount {
		errs = append(errs, fmt.Errorf("Markov configuration has %d elevation sets but %d transition tables",
			elevationCount, len(mcd.Transitions)))
	}
	if len(mcd.Initial) != 0 && len(mcd.Initial) != elevationCount {
		errs = append(errs, fmt.Errorf("Markov configuration has %d elevation sets but %d initial distributions",
			elevationCount, len(mcd.Initial)))
	}
	for idx := 1; idx < elevationCount; idx++ {
		if mcd.ElevationAngles[idx] <= mcd.ElevationAngles[idx-1] {
			errs = append(errs, fmt.Errorf("elevation angles must increase, angle %d is %g after %g",
				idx, mcd.ElevationAngles[idx], mcd.ElevationAngles[idx-1]))
		}
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}

	n := mcd.StateCount
	mc := new(MarkovConf)
	mc.elevationAngles = append([]float64{}, mcd.ElevationAngles...)
	mc.stateCount = n
	mc.probs = make([]*mat.Dense, elevationCount)
	mc.initial = make([][]float64, elevationCount)

	for set, table := range mcd.Transitions {
		if len(table) != n {
			errs = append(errs, fmt.Errorf("transition table of elevation set %d has %d rows, expected %d", set, len(table), n))
			continue
		}
		data := make([]float64, 0, n*n)
		for state, row := range table {
			if err := checkDistribution(row, n); err != nil {
				errs = append(errs, fmt.Errorf("transition row %d of elevation set %d: %w", state, set, err))
				continue
			}
			data = append(data, row...)
		}
		if len(data) == n*n {
			mc.probs[set] = mat.NewDense(n, n, data)
		}

		if len(mcd.Initial) == 0 {
			mc.initial[set] = uniformDistribution(n)
			continue
		}
		if err := checkDistribution(mcd.Initial[set], n); err != nil {
			errs = append(errs, fmt.Errorf("initial distribution of elevation set %d: %w", set, err))
			continue
		}
		mc.initial[set] = append([]float64{}, mcd.Initial[set]...)
	}

	mc.dwell = DwellConf{Policy: mcd.Dwell.Policy, Params: append([]float64{}, mcd.Dwell.Params...)}
	if err := mc.dwell.validate(n); err != nil {
		errs = append(errs, err)
	} else {
		mc.sampleDwell, _ = dwellSampler(mc.dwell.Policy)
	}

	if err := ReportErrs(errs); err != nil {
		return nil, err
	}
	return mc, nil
}

// checkDistribution returns an error unless p is a probability vector of length n
func checkDistribution(p []float64, n int) error {
	if len(p) != n {
		return fmt.Errorf("has %d entries, expected %d", len(p), n)
	}
	for idx, v := range p {
		if v < 0.0 || v > 1.0 || math.IsNaN(v) {
			return fmt.Errorf("entry %d is %g, not a probability", idx, v)
		}
	}
	if sum := floats.Sum(p); math.Abs(sum-1.0) > probabilityTolerance {
		return fmt.Errorf("sums to %g, not 1", sum)
	}
	return nil
}

func uniformDistribution(n int) []float64 {
	p := make([]float64, n)
	for idx := range p {
		p[idx] = 1.0 / float64(n)
	}
	return p
}

// ElevationCount returns the number of elevation sets
func (mc *MarkovConf) ElevationCount() int {
	return len(mc.elevationAngles)
}

// StateCount returns the number of states of the chain
func (mc *MarkovConf) StateCount() int {
	return mc.stateCount
}

// Dwell returns a copy of the dwell law
func (mc *MarkovConf) Dwell() DwellConf {
	return DwellConf{Policy: mc.dwell.Policy, Params: append([]float64{}, mc.dwell.Params...)}
}

// ElevationAngle returns the angle (degrees) of elevation set set
func (mc *MarkovConf) ElevationAngle(set int) float64 {
	mc.checkSet(set)
	return mc.elevationAngles[set]
}

// checkSet panics if set does not index a configured elevation set; being
// out of range means the scenario was set up wrongly
func (mc *MarkovConf) checkSet(set int) {
	if set < 0 || set >= len(mc.elevationAngles) {
		panic(fmt.Errorf("elevation set %d out of range [0,%d)", set, len(mc.elevationAngles)))
	}
}

// checkState panics if state does not index a state of the chain
func (mc *MarkovConf) checkState(state int) {
	if state < 0 || state >= mc.stateCount {
		panic(fmt.Errorf("Markov state %d out of range [0,%d)", state, mc.stateCount))
	}
}

// TransitionRow returns a copy of the transition probabilities out of state in elevation set set
func (mc *MarkovConf) TransitionRow(set, state int) []float64 {
	mc.checkSet(set)
	mc.checkState(state)
	return append([]float64{}, mc.probs[set].RawRowView(state)...)
}

// InitialProbabilities returns a copy of the initial state distribution of elevation set set
func (mc *MarkovConf) InitialProbabilities(set int) []float64 {
	mc.checkSet(set)
	return append([]float64{}, mc.initial[set]...)
}

// GetClosestSet returns the elevation set whose angle is nearest the given elevation
// angle (degrees).  Ties go to the lower set
func (mc *MarkovConf) GetClosestSet(angleDeg float64) int {
	closest := 0
	best := math.Abs(angleDeg - mc.elevationAngles[0])
	for set := 1; set < len(mc.elevationAngles); set++ {
		d := math.Abs(angleDeg - mc.elevationAngles[set])
		if d < best {
			best = d
			closest = set
		}
	}
	return closest
}

// Irreducible reports whether every state of elevation set set can be reached from
// every other state, i.e., the transition graph is one strongly connected component.
// A reducible chain is legal but will eventually trap a link in a subset of states
func (mc *MarkovConf) Irreducible(set int) bool {
	mc.checkSet(set)
	g := simple.NewDirectedGraph()
	for state := 0; state < mc.stateCount; state++ {
		g.AddNode(simple.Node(state))
	}
	for from := 0; from < mc.stateCount; from++ {
		row := mc.probs[set].RawRowView(from)
		for to, p := range row {
			if to != from && p > 0.0 {
				g.SetEdge(g.NewEdge(simple.Node(from), simple.Node(to)))
			}
		}
	}
	return len(topo.TarjanSCC(g)) == 1
}
