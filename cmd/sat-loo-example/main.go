// sat-loo-example drives three Loo faders, pinned to the line-of-sight, light
// shadowing and heavy shadowing states of one elevation set, through the evtm
// event manager and reports the gains they produce
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/iti/evt/evtm"
	"github.com/iti/satlink"
	"github.com/iti/satlink/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// offsets (seconds) of the first sample of each fader, and the sampling interval
var firstSample = []float64{300e-6, 500e-6, 700e-6}

const sampleInterval = 500e-6

func main() {
	fadingFile := flag.String("fading", "", "yaml or json fading configuration with a Loo table; compiled-in defaults when empty")
	set := flag.Int("set", 0, "elevation set the faders are pinned to")
	samples := flag.Int("samples", 1000, "samples taken by each fader")
	seed := flag.Uint64("seed", 0, "seed of reproducible random sources; 0 selects rngstream streams")
	outDir := flag.String("out", "", "directory receiving the fading column files; none written when empty")
	tag := flag.String("tag", "", "suffix appended to the fading column file names")
	traceFile := flag.String("trace", "", "yaml or json file receiving the structured trace; none written when empty")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	if err := run(ctx, log, options{
		fadingFile: *fadingFile,
		set:        *set,
		samples:    *samples,
		seed:       *seed,
		outDir:     *outDir,
		tag:        *tag,
		traceFile:  *traceFile,
	}); err != nil {
		log.Error(ctx, "sat-loo-example failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

type options struct {
	fadingFile string
	set        int
	samples    int
	seed       uint64
	outDir     string
	tag        string
	traceFile  string
}

// run builds the faders, runs the event loop and writes the requested outputs
func run(ctx context.Context, log logging.Logger, opts options) error {
	_, err := runSamplers(ctx, log, opts)
	return err
}

// runSamplers does the work of run, also returning the samplers so their final gains can be inspected
func runSamplers(ctx context.Context, log logging.Logger, opts options) ([]*satlink.FadingSampler, error) {
	fm, err := satlink.BuildFadingModels(map[string]string{satlink.FadingFileKey: opts.fadingFile})
	if err != nil {
		return nil, err
	}
	looConf, ok := fm.Fader.(*satlink.LooConf)
	if !ok {
		return nil, fmt.Errorf("fading configuration %s holds a %s table, not loo", fm.Name, fm.Fader.Kind())
	}
	if looConf.StateCount() < len(firstSample) {
		return nil, fmt.Errorf("fading configuration %s has %d states, need %d", fm.Name, looConf.StateCount(), len(firstSample))
	}
	if opts.set < 0 || opts.set >= looConf.ElevationCount() {
		return nil, fmt.Errorf("elevation set %d out of range [0,%d)", opts.set, looConf.ElevationCount())
	}
	if len(opts.outDir) > 0 {
		if _, err := satlink.CheckOutputFiles([]string{opts.outDir + "/"}); err != nil {
			return nil, err
		}
	}

	var sources satlink.SourceFactory = satlink.CreateRngStream
	if opts.seed != 0 {
		sources = satlink.SeededSourceFactory(opts.seed)
	}

	reg := prometheus.NewRegistry()
	collector, err := satlink.NewFadingCollector(reg)
	if err != nil {
		return nil, err
	}

	writer := satlink.CreateTraceWriter(satlink.FadingType, opts.outDir, opts.tag, satlink.FadingTraceColumns)
	traceMgr := satlink.CreateTraceManager("sat-loo-example", len(opts.traceFile) > 0)

	evtMgr := evtm.New()
	samplers := make([]*satlink.FadingSampler, len(firstSample))
	names := []string{"line-of-sight", "light-shadowing", "heavy-shadowing"}
	for state := range samplers {
		fader := satlink.CreateLooModel(looConf, looConf.StateCount(), opts.set, state, sources(names[state]))
		fs := satlink.CreateFadingSampler(state, satlink.ReturnUserCh, &observedGain{fader, collector}, sampleInterval, opts.samples)
		fs.SetTrace(writer, traceMgr)
		fs.SetLogger(log)
		traceMgr.AddName(state, names[state], "loo")
		fs.Start(evtMgr, firstSample[state])
		samplers[state] = fs
	}

	log.Info(ctx, "running Loo faders", logging.String("config", fm.Name), logging.Int("set", opts.set),
		logging.Int("samples", opts.samples))
	evtMgr.Run(firstSample[len(firstSample)-1] + float64(opts.samples)*sampleInterval)

	for state, fs := range samplers {
		log.Info(ctx, "fader done", logging.String("fader", names[state]), logging.Float("lastGainDb", fs.LastGainDb()),
			logging.Int("rows", len(writer.Rows(satlink.TraceKey{DevID: state, Channel: satlink.ReturnUserCh}))))
	}

	if len(opts.outDir) > 0 {
		if err := writer.Close(); err != nil {
			return nil, err
		}
	}
	if len(opts.traceFile) > 0 {
		traceMgr.WriteToFile(opts.traceFile)
	}
	return samplers, nil
}

// observedGain reports the gains of a pinned fader to the collector
type observedGain struct {
	*satlink.LooModel
	collector *satlink.FadingCollector
}

func (og *observedGain) GetChannelGainDb(now float64) float64 {
	gain := og.LooModel.GetChannelGainDb(now)
	if og.collector != nil {
		og.collector.GainDb.WithLabelValues(og.Kind().String()).Observe(gain)
	}
	return gain
}
