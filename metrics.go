package satlink

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// FadingCollector exposes Prometheus metrics of the fading models.  A nil
// *FadingCollector is valid and records nothing.
type FadingCollector struct {
	gatherer prometheus.Gatherer

	Transitions *prometheus.CounterVec
	GainDb      *prometheus.HistogramVec
	CeErrorDb   prometheus.Histogram
}

// NewFadingCollector registers fading metrics against the provided registerer.
func NewFadingCollector(reg prometheus.Registerer) (*FadingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satlink_markov_transitions_total",
		Help: "Markov transition draws, by elevation set and source and destination state.",
	}, []string{"elevation", "from", "to"})
	transitions, err := registerCounterVec(reg, transitions, "satlink_markov_transitions_total")
	if err != nil {
		return nil, err
	}

	gains := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satlink_channel_gain_db",
		Help:    "Channel gain samples produced by the faders, in dB.",
		Buckets: prometheus.LinearBuckets(-40, 5, 11),
	}, []string{"kind"})
	gains, err = registerHistogramVec(reg, gains, "satlink_channel_gain_db")
	if err != nil {
		return nil, err
	}

	ceErrors := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satlink_ce_error_db",
		Help:    "Channel estimation errors added to SINR estimates, in dB.",
		Buckets: prometheus.LinearBuckets(-3, 0.5, 13),
	})
	ceErrors, err = registerHistogram(reg, ceErrors, "satlink_ce_error_db")
	if err != nil {
		return nil, err
	}

	return &FadingCollector{
		gatherer:    gatherer,
		Transitions: transitions,
		GainDb:      gains,
		CeErrorDb:   ceErrors,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *FadingCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func (c *FadingCollector) observeTransition(set, from, to int) {
	if c == nil || c.Transitions == nil {
		return
	}
	c.Transitions.WithLabelValues(strconv.Itoa(set), strconv.Itoa(from), strconv.Itoa(to)).Inc()
}

func (c *FadingCollector) observeGain(kind FaderKind, gainDb float64) {
	if c == nil || c.GainDb == nil {
		return
	}
	c.GainDb.WithLabelValues(kind.String()).Observe(gainDb)
}

func (c *FadingCollector) observeCeError(errDb float64) {
	if c == nil || c.CeErrorDb == nil {
		return
	}
	c.CeErrorDb.Observe(errDb)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
