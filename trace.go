package satlink

// trace.go gathers output traces of a run.  Nothing here is global: the driver
// creates the TraceManager and TraceWriters it wants, hands them to the
// components that produce rows, and closes them at teardown

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"github.com/iti/evt/vrtime"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
	"strconv"
)

type TraceRecordType int

const (
	FadingType TraceRecordType = iota
	InterferenceType
)

var trtToStr map[TraceRecordType]string = map[TraceRecordType]string{FadingType: "fading", InterferenceType: "interference"}

func (trt TraceRecordType) String() string {
	return trtToStr[trt]
}

// number of columns of a fading or interference trace row: time (s) and value (dB)
const (
	FadingTraceColumns       = 2
	InterferenceTraceColumns = 2
)

type TraceInst struct {
	TraceTime string `json:"tracetime" yaml:"tracetime"`
	TraceType string `json:"tracetype" yaml:"tracetype"`
	TraceStr  string `json:"tracestr" yaml:"tracestr"`
}

// NameType is an entry in a dictionary created for a trace
// that maps object id numbers to a (name,type) pair
type NameType struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TraceManager gathers a structured record of the fading samples of an experiment,
// indexed by device id
type TraceManager struct {
	// experiment uses trace
	InUse bool `json:"inuse" yaml:"inuse"`

	// name of experiment
	ExpName string `json:"expname" yaml:"expname"`

	// text name associated with each device id
	NameByID map[int]NameType `json:"namebyid" yaml:"namebyid"`

	// all trace records for this experiment
	Traces map[int][]TraceInst `json:"traces" yaml:"traces"`
}

// CreateTraceManager is a constructor.  It saves the name of the experiment
// and a flag indicating whether the trace manager is active.  By testing this
// flag we can inhibit the activity of gathering a trace when we don't want it,
// while embedding calls to its methods everywhere we need them when it is
func CreateTraceManager(expName string, active bool) *TraceManager {
	tm := new(TraceManager)
	tm.InUse = active
	tm.ExpName = expName
	tm.NameByID = make(map[int]NameType)
	tm.Traces = make(map[int][]TraceInst)
	return tm
}

// Active tells the caller whether the Trace Manager is actively being used
func (tm *TraceManager) Active() bool {
	return tm != nil && tm.InUse
}

// AddTrace stores a trace record under the device id
func (tm *TraceManager) AddTrace(vrt vrtime.Time, devID int, trace TraceInst) {
	if !tm.Active() {
		return
	}
	tm.Traces[devID] = append(tm.Traces[devID], trace)
}

// AddName adds an element to the id -> (name,type) dictionary for the trace file
func (tm *TraceManager) AddName(id int, name string, objDesc string) {
	if !tm.Active() {
		return
	}
	if _, present := tm.NameByID[id]; present {
		panic(fmt.Errorf("duplicated id %d in AddName", id))
	}
	tm.NameByID[id] = NameType{Name: name, Type: objDesc}
}

// WriteToFile stores the Traces struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of this name.
func (tm *TraceManager) WriteToFile(filename string) bool {
	if !tm.Active() {
		return false
	}
	if err := writeDescToFile(filename, tm); err != nil {
		panic(err)
	}
	return true
}

// FadingTrace records one channel gain sample
type FadingTrace struct {
	Time     float64 `json:"time" yaml:"time"`
	Ticks    int64   `json:"ticks" yaml:"ticks"`
	Priority int64   `json:"priority" yaml:"priority"`
	DevID    int     `json:"devid" yaml:"devid"`
	Channel  string  `json:"channel" yaml:"channel"`
	Set      int     `json:"set" yaml:"set"`
	State    int     `json:"state" yaml:"state"`
	GainDb   float64 `json:"gaindb" yaml:"gaindb"`
}

func (ftr *FadingTrace) TraceType() TraceRecordType {
	return FadingType
}

func (ftr *FadingTrace) Serialize() string {
	bytes, merr := yaml.Marshal(*ftr)
	if merr != nil {
		panic(merr)
	}
	return string(bytes[:])
}

// AddFadingTrace creates a record of a gain sample using its calling arguments, and stores it
func AddFadingTrace(tm *TraceManager, vrt vrtime.Time, devID int, channel ChannelType, set, state int, gainDb float64) {
	if !tm.Active() {
		return
	}
	ftr := new(FadingTrace)
	ftr.Time = vrt.Seconds()
	ftr.Ticks = vrt.Ticks()
	ftr.Priority = vrt.Pri()
	ftr.DevID = devID
	ftr.Channel = channel.String()
	ftr.Set = set
	ftr.State = state
	ftr.GainDb = gainDb

	traceTime := strconv.FormatFloat(vrt.Seconds(), 'f', -1, 64)
	trcInst := TraceInst{TraceTime: traceTime, TraceType: FadingType.String(), TraceStr: ftr.Serialize()}
	tm.AddTrace(vrt, devID, trcInst)
}

// TraceKey identifies the column file a row belongs to
type TraceKey struct {
	DevID   int
	Channel ChannelType
}

// TraceWriter accumulates rows of a fixed number of columns per (device, channel)
// and writes one whitespace-separated column file per key when closed
type TraceWriter struct {
	kind    TraceRecordType
	dir     string
	tag     string
	columns int
	rows    map[TraceKey][][]float64
	closed  bool
}

// CreateTraceWriter is a constructor.  Files are written to dir, their names ending with tag
func CreateTraceWriter(kind TraceRecordType, dir, tag string, columns int) *TraceWriter {
	if columns < 1 {
		panic(fmt.Errorf("%s trace writer needs at least one column", kind))
	}
	tw := new(TraceWriter)
	tw.kind = kind
	tw.dir = dir
	tw.tag = tag
	tw.columns = columns
	tw.rows = make(map[TraceKey][][]float64)
	return tw
}

// AddRow appends a row to the key's container.  A row of the wrong width, or a row added
// after Close, panics
func (tw *TraceWriter) AddRow(key TraceKey, row []float64) {
	if tw.closed {
		panic(fmt.Errorf("%s trace row added after close", tw.kind))
	}
	if len(row) != tw.columns {
		panic(fmt.Errorf("%s trace row has %d columns, expected %d", tw.kind, len(row), tw.columns))
	}
	tw.rows[key] = append(tw.rows[key], append([]float64{}, row...))
}

// Rows returns a copy of the rows held for key
func (tw *TraceWriter) Rows(key TraceKey) [][]float64 {
	rtn := make([][]float64, len(tw.rows[key]))
	for idx, row := range tw.rows[key] {
		rtn[idx] = append([]float64{}, row...)
	}
	return rtn
}

// Keys returns the keys holding rows, ordered by device id then channel
func (tw *TraceWriter) Keys() []TraceKey {
	keys := make([]TraceKey, 0, len(tw.rows))
	for key := range tw.rows {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b TraceKey) int {
		if c := cmp.Compare(a.DevID, b.DevID); c != 0 {
			return c
		}
		return cmp.Compare(a.Channel, b.Channel)
	})
	return keys
}

// FileName returns the path of the column file written for key
func (tw *TraceWriter) FileName(key TraceKey) string {
	return filepath.Join(tw.dir, fmt.Sprintf("id_%d_channelType_%s%s", key.DevID, key.Channel, tw.tag))
}

// Close writes every container to its file.  Only the first call writes
func (tw *TraceWriter) Close() error {
	if tw.closed {
		return nil
	}
	tw.closed = true

	errs := []error{}
	for _, key := range tw.Keys() {
		errs = append(errs, writeColumns(tw.FileName(key), tw.rows[key]))
	}
	return ReportErrs(errs)
}

func writeColumns(filename string, rows [][]float64) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, row := range rows {
		for idx, v := range row {
			if idx > 0 {
				w.WriteString(" ")
			}
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		w.WriteString("\n")
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MarshalIndex serializes the list of files written by tw, json or yaml
func (tw *TraceWriter) MarshalIndex(useYAML bool) ([]byte, error) {
	index := make(map[string]string)
	for _, key := range tw.Keys() {
		index[fmt.Sprintf("%d/%s", key.DevID, key.Channel)] = tw.FileName(key)
	}
	if useYAML {
		return yaml.Marshal(index)
	}
	return json.MarshalIndent(index, "", "\t")
}
