package satlink

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// metricTotal sums the counter values and histogram sample counts of every series
// of the named metric
func metricTotal(t *testing.T, gatherer prometheus.Gatherer, name string) float64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if h := m.GetHistogram(); h != nil {
				total += float64(h.GetSampleCount())
			}
		}
	}
	return total
}

func TestFadingCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFadingCollector(reg)
	require.NoError(t, err)
	assert.Equal(t, prometheus.Gatherer(reg), collector.Gatherer())

	collector.observeTransition(0, 1, 2)
	collector.observeTransition(0, 1, 2)
	collector.observeTransition(3, 0, 0)
	collector.observeGain(RayleighFader, -3.0)
	collector.observeCeError(0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.Transitions.WithLabelValues("0", "1", "2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Transitions.WithLabelValues("3", "0", "0")))
	assert.Equal(t, 1.0, metricTotal(t, reg, "satlink_channel_gain_db"))
	assert.Equal(t, 1.0, metricTotal(t, reg, "satlink_ce_error_db"))
}

func TestFadingCollectorReusesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFadingCollector(reg)
	require.NoError(t, err)
	second, err := NewFadingCollector(reg)
	require.NoError(t, err)

	first.observeTransition(1, 1, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Transitions.WithLabelValues("1", "1", "1")))
}

func TestNilFadingCollector(t *testing.T) {
	var collector *FadingCollector
	assert.NotPanics(t, func() {
		collector.observeTransition(0, 0, 1)
		collector.observeGain(LooFader, 1.0)
		collector.observeCeError(1.0)
	})
	assert.Nil(t, collector.Gatherer())
}
