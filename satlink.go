package satlink

// satlink.go has code that assembles the shared fading configurations from input
// files, and the event handler that samples a link's channel gain periodically
// under the evtm event manager

import (
	"context"
	"fmt"
	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/iti/satlink/internal/logging"
	"strings"
)

// ChannelType identifies which of the four satellite links a channel belongs to
type ChannelType int

const (
	ForwardFeederCh ChannelType = iota
	ForwardUserCh
	ReturnUserCh
	ReturnFeederCh
)

var chTypeToStr map[ChannelType]string = map[ChannelType]string{ForwardFeederCh: "FORWARD_FEEDER_CH",
	ForwardUserCh: "FORWARD_USER_CH", ReturnUserCh: "RETURN_USER_CH", ReturnFeederCh: "RETURN_FEEDER_CH"}

func (ct ChannelType) String() string {
	s, present := chTypeToStr[ct]
	if !present {
		return fmt.Sprintf("UNKNOWN_CH_%d", int(ct))
	}
	return s
}

// ChannelTypeFromStr parses a channel type name, case insensitively
func ChannelTypeFromStr(name string) (ChannelType, error) {
	for ct, s := range chTypeToStr {
		if strings.EqualFold(s, name) {
			return ct, nil
		}
	}
	return 0, fmt.Errorf("channel type %q not recognized", name)
}

// FadingModels holds the shared, immutable configurations a run builds its faders
// and channel estimation error models from
type FadingModels struct {
	Name    string
	Markov  *MarkovConf
	Fader   FaderConf
	CeError *ChannelEstimationErrorTable // nil when no table was named
}

// keys of the input file map given to BuildFadingModels
const (
	FadingFileKey  = "fading"
	CeErrorFileKey = "ceerror"
)

// BuildFadingModels is called from the module that creates and runs a simulation.
// syn binds FadingFileKey and CeErrorFileKey to input file names.  A missing or empty
// fading entry selects the compiled-in Loo configuration; a missing ceerror entry
// leaves FadingModels.CeError nil
func BuildFadingModels(syn map[string]string) (*FadingModels, error) {
	names := []string{}
	for _, key := range []string{FadingFileKey, CeErrorFileKey} {
		if name := syn[key]; len(name) > 0 {
			names = append(names, name)
		}
	}
	if _, err := CheckReadableFiles(names); err != nil {
		return nil, err
	}

	var fc *FadingCfg
	if name := syn[FadingFileKey]; len(name) > 0 {
		var err error
		fc, err = ReadFadingCfg(name, IsYAMLFile(name), []byte{})
		if err != nil {
			return nil, err
		}
	} else {
		fc = DefaultFadingCfg("default", LooFader)
	}

	mc, fdc, err := fc.Build()
	if err != nil {
		return nil, err
	}
	fm := &FadingModels{Name: fc.Name, Markov: mc, Fader: fdc}

	if name := syn[CeErrorFileKey]; len(name) > 0 {
		fm.CeError, err = ReadCeErrorTable(name)
		if err != nil {
			return nil, err
		}
	}
	return fm, nil
}

// CreateFader builds a Markov-driven fader on the shared configurations
func (fm *FadingModels) CreateFader(name string, opts FaderOptions) *MarkovFader {
	return CreateMarkovFader(name, fm.Markov, fm.Fader, opts)
}

// CreateChannelEstimationError builds a channel estimation error model on the shared table,
// panicking when no table was loaded
func (fm *FadingModels) CreateChannelEstimationError(rng RandomSource) *ChannelEstimationError {
	if fm.CeError == nil {
		panic(fmt.Errorf("fading models %s have no channel estimation error table", fm.Name))
	}
	return CreateChannelEstimationError(fm.CeError, rng)
}

// GainSampler is anything that produces a channel gain (dB) at a simulation time.
// *MarkovFader, *LooModel and *RayleighModel all qualify
type GainSampler interface {
	GetChannelGainDb(now float64) float64
}

// stateReporter is implemented by samplers that know their elevation set and state
type stateReporter interface {
	CurrentSet() int
	CurrentState() int
}

// FadingSampler samples one link's channel gain every Interval seconds while the
// simulation runs, passing each sample to the trace outputs it has been given
type FadingSampler struct {
	DevID    int
	Channel  ChannelType
	Interval float64 // seconds between samples; zero samples once
	Count    int     // samples still to take; negative is unbounded

	sampler  GainSampler
	writer   *TraceWriter
	traceMgr *TraceManager
	logger   logging.Logger
	last     float64
}

// CreateFadingSampler is a constructor.  count bounds the number of samples taken,
// negative for no bound
func CreateFadingSampler(devID int, channel ChannelType, sampler GainSampler, interval float64, count int) *FadingSampler {
	if sampler == nil {
		panic(fmt.Errorf("fading sampler of device %d created without a gain sampler", devID))
	}
	if interval < 0.0 {
		panic(fmt.Errorf("fading sampler of device %d has negative interval %g", devID, interval))
	}
	fs := new(FadingSampler)
	fs.DevID = devID
	fs.Channel = channel
	fs.Interval = interval
	fs.Count = count
	fs.sampler = sampler
	fs.logger = logging.Noop()
	return fs
}

// SetTrace directs samples to the column writer and the trace manager; either may be nil
func (fs *FadingSampler) SetTrace(writer *TraceWriter, traceMgr *TraceManager) {
	fs.writer = writer
	fs.traceMgr = traceMgr
}

// SetLogger replaces the sampler's logger
func (fs *FadingSampler) SetLogger(logger logging.Logger) {
	fs.logger = logging.OrNoop(logger).With(logging.Int("dev", fs.DevID), logging.String("channel", fs.Channel.String()))
}

// LastGainDb returns the most recent sample
func (fs *FadingSampler) LastGainDb() float64 {
	return fs.last
}

// Start schedules the first sample offset seconds from the event manager's current time
func (fs *FadingSampler) Start(evtMgr *evtm.EventManager, offset float64) {
	if fs.Count == 0 {
		return
	}
	evtMgr.Schedule(fs, nil, SampleFadingEvt, vrtime.SecondsToTime(offset))
}

// SampleFadingEvt is the evtm handler of a FadingSampler, given as the event context.
// It takes one sample at the current time, records it, and schedules the next one
func SampleFadingEvt(evtMgr *evtm.EventManager, cxt any, data any) any {
	fs := cxt.(*FadingSampler)
	now := evtMgr.CurrentSeconds()
	gain := fs.sampler.GetChannelGainDb(now)
	fs.last = gain
	fs.logger.Debug(context.Background(), "fading sample", logging.Float("time", now), logging.Float("gainDb", gain))

	key := TraceKey{DevID: fs.DevID, Channel: fs.Channel}
	if fs.writer != nil {
		fs.writer.AddRow(key, []float64{now, gain})
	}
	if fs.traceMgr.Active() {
		set, state := -1, -1
		if sr, ok := fs.sampler.(stateReporter); ok {
			set, state = sr.CurrentSet(), sr.CurrentState()
		}
		AddFadingTrace(fs.traceMgr, evtMgr.CurrentTime(), fs.DevID, fs.Channel, set, state, gain)
	}

	if fs.Count > 0 {
		fs.Count -= 1
	}
	if fs.Count != 0 && fs.Interval > 0.0 {
		evtMgr.Schedule(fs, nil, SampleFadingEvt, vrtime.SecondsToTime(fs.Interval))
	}
	return nil
}
