package satlink

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestGetParametersShape(t *testing.T) {
	confs := []FaderConf{DefaultLooConf(), DefaultRayleighConf()}
	counts := []int{LooParameterCount, RayleighParameterCount}
	for idx, fc := range confs {
		assert.Equal(t, DefaultElevationCount, fc.ElevationCount())
		assert.Equal(t, DefaultStateCount, fc.StateCount())
		assert.Equal(t, counts[idx], fc.ParameterCount())
		for set := 0; set < fc.ElevationCount(); set++ {
			params := fc.GetParameters(set)
			require.Len(t, params, fc.StateCount())
			for _, vec := range params {
				assert.Len(t, vec, counts[idx])
			}
		}
		assert.Panics(t, func() { fc.GetParameters(DefaultElevationCount) }, fc.Kind().String())
		assert.Panics(t, func() { fc.GetParameters(-1) }, fc.Kind().String())
		assert.Panics(t, func() { fc.Parameters(0, DefaultStateCount) }, fc.Kind().String())
	}
}

func TestParametersAreCopies(t *testing.T) {
	lc := DefaultLooConf()
	vec := lc.Parameters(0, 1)
	vec[LooDirectMeanDb] = 100.0
	assert.Equal(t, -8.7, lc.Parameters(0, 1)[LooDirectMeanDb])
}

func TestCreateFaderConfRejects(t *testing.T) {
	_, err := CreateLooConf(nil)
	assert.Error(t, err)

	params := DefaultLooParams()
	params[2][1] = params[2][1][:5]
	_, err = CreateLooConf(params)
	assert.Error(t, err)

	params = DefaultLooParams()
	params[0][0][LooDirectOscillators] = 2.5
	_, err = CreateLooConf(params)
	assert.Error(t, err)

	params = DefaultLooParams()
	params[1] = params[1][:2]
	_, err = CreateLooConf(params)
	assert.Error(t, err)

	rparams := DefaultRayleighParams()
	rparams[3][2][RayleighMaxDoppler] = -1.0
	_, err = CreateRayleighConf(rparams)
	assert.Error(t, err)

	rparams = DefaultRayleighParams()
	rparams[0][0][RayleighOscillators] = math.NaN()
	_, err = CreateRayleighConf(rparams)
	assert.Error(t, err)
}

func TestFaderKind(t *testing.T) {
	kind, err := FaderKindFromStr("Loo")
	require.NoError(t, err)
	assert.Equal(t, LooFader, kind)

	kind, err = FaderKindFromStr("RAYLEIGH")
	require.NoError(t, err)
	assert.Equal(t, RayleighFader, kind)

	_, err = FaderKindFromStr("rician")
	assert.Error(t, err)
	assert.Equal(t, "FaderKind(7)", FaderKind(7).String())
}

func TestCreateFaderByConfiguration(t *testing.T) {
	assert.Equal(t, LooFader, CreateFader(DefaultLooConf(), 0, 0, CreateSeededSource(1)).Kind())
	assert.Equal(t, RayleighFader, CreateFader(DefaultRayleighConf(), 0, 0, CreateSeededSource(1)).Kind())
	assert.Panics(t, func() { CreateLooModel(DefaultLooConf(), 2, 0, 0, nil) })
	assert.Panics(t, func() { CreateRayleighModel(DefaultRayleighConf(), 3, 4, 0, nil) })
}

func TestLooWithoutMultipath(t *testing.T) {
	params := [][][]float64{{
		{0.0, 0.0, -300.0, 0, 0, 0, 0},
		{-10.0, 0.0, -300.0, 0, 0, 0, 0},
	}}
	lc, err := CreateLooConf(params)
	require.NoError(t, err)

	los := CreateLooModel(lc, 2, 0, 0, CreateSeededSource(5))
	shadowed := CreateLooModel(lc, 2, 0, 1, CreateSeededSource(5))
	for i := 0; i < 10; i++ {
		now := float64(i) * 1e-3
		assert.InDelta(t, 0.0, los.GetChannelGainDb(now), 1e-9)
		assert.InDelta(t, -10.0, shadowed.GetChannelGainDb(now), 1e-9)
	}

	assert.Panics(t, func() { los.Sample(0.0, []float64{0.0, 0.0}) })
}

func TestLooGainsAreFinite(t *testing.T) {
	lc := DefaultLooConf()
	for state := 0; state < DefaultStateCount; state++ {
		lm := CreateLooModel(lc, DefaultStateCount, 0, state, CreateSeededSource(uint64(state+1)))
		for i := 0; i < 1000; i++ {
			gain := lm.GetChannelGainDb(float64(i) * 500e-6)
			require.False(t, math.IsNaN(gain) || math.IsInf(gain, 0))
		}
	}
}

// looScenario samples three Loo faders pinned to the three states of elevation set 0,
// offset in time as the example driver schedules them
func looScenario(seed uint64) [][]float64 {
	lc := DefaultLooConf()
	sources := SeededSourceFactory(seed)
	offsets := []float64{300e-6, 500e-6, 700e-6}
	rtn := make([][]float64, len(offsets))
	faders := make([]*LooModel, len(offsets))
	for state := range faders {
		faders[state] = CreateLooModel(lc, 3, 0, state, sources("loo"+string(rune('0'+state))))
	}
	for i := 0; i < 1000; i++ {
		for state, lm := range faders {
			rtn[state] = append(rtn[state], lm.GetChannelGainDb(offsets[state]+float64(i)*500e-6))
		}
	}
	return rtn
}

func TestLooScenarioIsReproducible(t *testing.T) {
	first := looScenario(2013)
	second := looScenario(2013)
	require.Len(t, first, 3)
	for state := range first {
		require.Len(t, first[state], 1000)
	}
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, looScenario(2014))
}

func TestRayleighIndependentDrawsHaveUnitPower(t *testing.T) {
	params := [][][]float64{{{10.0, 0.0}}}
	rc, err := CreateRayleighConf(params)
	require.NoError(t, err)
	rm := CreateRayleighModel(rc, 1, 0, 0, CreateSeededSource(17))

	powers := make([]float64, 20000)
	for i := range powers {
		powers[i] = math.Pow(10.0, rm.GetChannelGainDb(float64(i))/10.0)
	}
	assert.InDelta(t, 1.0, stat.Mean(powers, nil), 0.05)
}

func TestRayleighOscillatorsAreTimeCorrelated(t *testing.T) {
	rm := CreateRayleighModel(DefaultRayleighConf(), DefaultStateCount, 0, 0, CreateSeededSource(23))

	// a sum of sinusoids is a deterministic function of time once built
	assert.Equal(t, rm.GetChannelGainDb(0.125), rm.GetChannelGainDb(0.125))

	// 10 Hz Doppler: gains 1 microsecond apart are nearly equal
	a := rm.GetChannelGainDb(1.0)
	b := rm.GetChannelGainDb(1.0 + 1e-6)
	assert.InDelta(t, a, b, 0.1)
}

func TestCreateMarkovFaderMismatch(t *testing.T) {
	rc, err := CreateRayleighConf([][][]float64{{{10, 10}, {10, 10}, {10, 10}}})
	require.NoError(t, err)
	assert.Panics(t, func() { CreateMarkovFader("mismatch", DefaultMarkovConf(), rc, FaderOptions{}) })
	assert.Panics(t, func() { CreateMarkovFader("no conf", nil, DefaultLooConf(), FaderOptions{}) })
}

func TestMarkovFaderSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFadingCollector(reg)
	require.NoError(t, err)

	mf := CreateMarkovFader("ut1", DefaultMarkovConf(), DefaultLooConf(), FaderOptions{
		Set:          1,
		InitialState: -1,
		Sources:      SeededSourceFactory(31),
		Collector:    collector,
	})
	assert.Equal(t, LooFader, mf.Kind())
	assert.Equal(t, "ut1", mf.Name())

	for i := 0; i < 1000; i++ {
		gain := mf.GetChannelGainDb(float64(i) * 0.01)
		require.False(t, math.IsNaN(gain) || math.IsInf(gain, 0))
		require.True(t, mf.CurrentState() >= 0 && mf.CurrentState() < DefaultStateCount)
		assert.Equal(t, gain, mf.LastGainDb())
	}
	assert.Equal(t, 1000, mf.Samples())
	assert.Equal(t, 1, mf.CurrentSet())

	// fixed 50 ms dwell sampled every 10 ms: a draw every fifth sample after the first
	assert.Equal(t, 199.0, metricTotal(t, reg, "satlink_markov_transitions_total"))
	assert.Equal(t, 1000.0, metricTotal(t, reg, "satlink_channel_gain_db"))
}

func TestMarkovFaderFollowsElevation(t *testing.T) {
	mf := CreateMarkovFader("ut2", DefaultMarkovConf(), DefaultRayleighConf(), FaderOptions{
		InitialState: 0,
		Sources:      SeededSourceFactory(5),
	})
	mf.GetChannelGainDb(0.0)
	mf.Markov().SetElevation(72.0)
	assert.Equal(t, 2, mf.CurrentSet())
	assert.Equal(t, 0, mf.CurrentState())
	mf.GetChannelGainDb(0.01)
	assert.Equal(t, 2, mf.CurrentSet())
}

func TestMarkovFaderIsReproducible(t *testing.T) {
	run := func() []float64 {
		mf := CreateMarkovFader("ut3", DefaultMarkovConf(), DefaultLooConf(), FaderOptions{
			InitialState: -1,
			Sources:      SeededSourceFactory(77),
		})
		rtn := []float64{}
		for i := 0; i < 300; i++ {
			rtn = append(rtn, mf.GetChannelGainDb(float64(i)*0.02))
		}
		return rtn
	}
	assert.Equal(t, run(), run())
}
