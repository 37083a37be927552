package satlink

// random.go holds the random sources used by the fading and estimation error
// models.  Every model instance owns its own stream so that independently
// faded links do not share draws.  Continuous distributions are sampled by
// inversion, passing a U01 draw from the instance stream through a gonum quantile

import (
	"github.com/iti/rngstream"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"hash/fnv"
	"math"
)

// RandomSource delivers samples uniformly distributed on the open interval (0,1).
// *rngstream.RngStream satisfies it
type RandomSource interface {
	RandU01() float64
}

// SourceFactory creates the random source for the named model instance
type SourceFactory func(name string) RandomSource

// CreateRngStream is the default SourceFactory, giving each instance a fresh
// L'Ecuyer stream
func CreateRngStream(name string) RandomSource {
	return rngstream.New(name)
}

// seededSource is a RandomSource whose sequence is fixed entirely by its seed
type seededSource struct {
	rnd *rand.Rand
}

// CreateSeededSource returns a source that repeats the same sequence for the same seed
func CreateSeededSource(seed uint64) RandomSource {
	return &seededSource{rnd: rand.New(rand.NewSource(seed))}
}

// RandU01 excludes zero, which the quantile functions map to -Inf
func (ss *seededSource) RandU01() float64 {
	for {
		u := ss.rnd.Float64()
		if u > 0.0 {
			return u
		}
	}
}

// SeededSourceFactory derives a per-instance seed from the base seed and the instance name,
// so that two runs creating the same named instances see identical draws regardless of
// construction order
func SeededSourceFactory(seed uint64) SourceFactory {
	return func(name string) RandomSource {
		h := fnv.New64a()
		h.Write([]byte(name))
		return CreateSeededSource(seed ^ h.Sum64())
	}
}

// sourceOrDefault substitutes an rngstream stream for a nil source
func sourceOrDefault(rng RandomSource, name string) RandomSource {
	if rng == nil {
		return CreateRngStream(name)
	}
	return rng
}

// normalRV returns a sample of a gaussian with the given mean and standard deviation
func normalRV(rng RandomSource, mu, sigma float64) float64 {
	if sigma <= 0.0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma}.Quantile(rng.RandU01())
}

// rayleighRV returns a Rayleigh distributed amplitude with E[X^2] = power.
// Rayleigh is the Weibull law with shape 2 and scale sqrt(power)
func rayleighRV(rng RandomSource, power float64) float64 {
	return distuv.Weibull{K: 2.0, Lambda: math.Sqrt(power)}.Quantile(rng.RandU01())
}
