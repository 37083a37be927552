package satlink

// dwell.go holds the laws governing how long the Markov engine stays in a state
// before it draws a transition.  The law is chosen by name when the Markov
// configuration is built, and every law has the same signature: a U01 sample,
// the vector of parameters for the law, and the state being dwelt in

import (
	"fmt"
	"gonum.org/v1/gonum/stat/distuv"
	"math"
)

// dwell policy names accepted in configuration
const (
	FixedDwell       = "fixed"
	ExponentialDwell = "exponential"
	TableDwell       = "table"
)

// DwellConf selects a dwell law and carries its parameters.
//   - fixed:       Params[0] is the sojourn (seconds) used for every state
//   - exponential: Params[s] is the mean sojourn of state s
//   - table:       Params[s] is the fixed sojourn of state s
type DwellConf struct {
	Policy string
	Params []float64
}

type dwellFunc func(u01 float64, params []float64, state int) float64

var rdigits uint = 12

// roundFloat rounds computed simulation times to avoid nonsensical comparisons
// induced by rounding error
func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// sampleFixedDwell returns the single configured sojourn
func sampleFixedDwell(u01 float64, params []float64, state int) float64 {
	return params[0]
}

// sampleExpDwell returns an exponentially distributed sojourn whose mean depends on the state
func sampleExpDwell(u01 float64, params []float64, state int) float64 {
	return distuv.Exponential{Rate: 1.0 / params[state]}.Quantile(u01)
}

// sampleTableDwell returns the sojourn listed for the state
func sampleTableDwell(u01 float64, params []float64, state int) float64 {
	return params[state]
}

// dwellSampler maps a policy name onto its sampling function
func dwellSampler(policy string) (dwellFunc, error) {
	switch policy {
	case FixedDwell, "const", "constant", "":
		return sampleFixedDwell, nil
	case ExponentialDwell, "exp", "expon":
		return sampleExpDwell, nil
	case TableDwell:
		return sampleTableDwell, nil
	}
	return nil, fmt.Errorf("dwell policy %q not recognized", policy)
}

// validate checks that the parameters suit the policy for a chain with stateCount states
func (dc *DwellConf) validate(stateCount int) error {
	if _, err := dwellSampler(dc.Policy); err != nil {
		return err
	}

	need := stateCount
	if dc.Policy == FixedDwell || dc.Policy == "const" || dc.Policy == "constant" || dc.Policy == "" {
		need = 1
	}
	if len(dc.Params) < need {
		return fmt.Errorf("dwell policy %q needs %d parameters, has %d", dc.Policy, need, len(dc.Params))
	}
	for idx, p := range dc.Params[:need] {
		if !(p > 0.0) || math.IsInf(p, 0) {
			return fmt.Errorf("dwell parameter %d of policy %q must be positive and finite, is %g", idx, dc.Policy, p)
		}
	}
	return nil
}
