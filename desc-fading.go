package satlink

// desc-fading.go holds the serializable descriptions of the fading and channel
// estimation error configurations, and their transfer to and from yaml or json
// files.  A description is checked only when it is turned into a run-time
// configuration, by CreateMarkovConf, CreateFaderConf or CreateCeErrorTable

import (
	"encoding/json"
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DwellDesc is the serializable form of DwellConf
type DwellDesc struct {
	Policy string    `json:"policy" yaml:"policy"`
	Params []float64 `json:"params" yaml:"params"`
}

// MarkovConfDesc is the serializable form of a MarkovConf.
//   - Transitions[set][from][to] is the transition probability table of each elevation set
//   - Initial[set][state] is the starting distribution of each set; may be omitted
type MarkovConfDesc struct {
	ElevationAngles []float64     `json:"elevationangles" yaml:"elevationangles"`
	StateCount      int           `json:"statecount" yaml:"statecount"`
	Transitions     [][][]float64 `json:"transitions" yaml:"transitions"`
	Initial         [][]float64   `json:"initial,omitempty" yaml:"initial,omitempty"`
	Dwell           DwellDesc     `json:"dwell" yaml:"dwell"`
}

// FaderParamsDesc names a fader kind and carries its parameter table,
// Params[elevation set][state][parameter]
type FaderParamsDesc struct {
	Kind   string        `json:"kind" yaml:"kind"`
	Params [][][]float64 `json:"params" yaml:"params"`
}

// FadingCfg describes a complete fading configuration: the Markov chain and the
// faders it drives
type FadingCfg struct {
	Name   string          `json:"name" yaml:"name"`
	Markov MarkovConfDesc  `json:"markov" yaml:"markov"`
	Fader  FaderParamsDesc `json:"fader" yaml:"fader"`
}

// CeErrorSampleDesc is one row of a channel estimation error table
type CeErrorSampleDesc struct {
	SinrDb   float64 `json:"sinrdb" yaml:"sinrdb"`
	MeanDb   float64 `json:"meandb" yaml:"meandb"`
	StdDevDb float64 `json:"stddevdb" yaml:"stddevdb"`
}

// CeErrorTableDesc is the serializable form of a channel estimation error table
type CeErrorTableDesc struct {
	Name    string              `json:"name" yaml:"name"`
	Samples []CeErrorSampleDesc `json:"samples" yaml:"samples"`
}

// DefaultFadingCfg returns the compiled-in Markov configuration paired with the
// compiled-in parameter table of the named fader kind
func DefaultFadingCfg(name string, kind FaderKind) *FadingCfg {
	fc := new(FadingCfg)
	fc.Name = name
	fc.Markov = *DefaultMarkovConfDesc()
	fc.Fader.Kind = kind.String()
	switch kind {
	case LooFader:
		fc.Fader.Params = DefaultLooParams()
	case RayleighFader:
		fc.Fader.Params = DefaultRayleighParams()
	default:
		panic(fmt.Errorf("no default parameters for fader kind %s", kind))
	}
	return fc
}

// CreateFaderConf builds the fader configuration described by fpd
func CreateFaderConf(fpd *FaderParamsDesc) (FaderConf, error) {
	kind, err := FaderKindFromStr(fpd.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case LooFader:
		return CreateLooConf(fpd.Params)
	case RayleighFader:
		return CreateRayleighConf(fpd.Params)
	}
	return nil, fmt.Errorf("fader kind %s has no configuration", kind)
}

// Build validates the description and returns the run-time configurations it describes.
// The Markov and fader tables must agree on elevation and state counts
func (fc *FadingCfg) Build() (*MarkovConf, FaderConf, error) {
	errs := []error{}
	mc, merr := CreateMarkovConf(&fc.Markov)
	if merr != nil {
		errs = append(errs, fmt.Errorf("fading configuration %s: %w", fc.Name, merr))
	}
	fdc, ferr := CreateFaderConf(&fc.Fader)
	if ferr != nil {
		errs = append(errs, fmt.Errorf("fading configuration %s: %w", fc.Name, ferr))
	}
	if merr == nil && ferr == nil {
		if mc.ElevationCount() != fdc.ElevationCount() || mc.StateCount() != fdc.StateCount() {
			errs = append(errs, fmt.Errorf("fading configuration %s: Markov chain is %dx%d (elevations x states), %s table is %dx%d",
				fc.Name, mc.ElevationCount(), mc.StateCount(), fdc.Kind(), fdc.ElevationCount(), fdc.StateCount()))
		}
	}
	if err := ReportErrs(errs); err != nil {
		return nil, nil, err
	}
	return mc, fdc, nil
}

// WriteToFile serializes the FadingCfg and writes to the file whose name is given as an input argument.
// Extension of the file name selects whether serialization is to json or to yaml format.
func (fc *FadingCfg) WriteToFile(filename string) error {
	return writeDescToFile(filename, fc)
}

// ReadFadingCfg deserializes a slice of bytes into a FadingCfg.  If the input arg of bytes
// is empty, the file whose name is given as an argument is read.
func ReadFadingCfg(filename string, useYAML bool, dict []byte) (*FadingCfg, error) {
	example := FadingCfg{}
	if err := readDesc(filename, "fading configuration", useYAML, dict, &example); err != nil {
		return nil, err
	}
	return &example, nil
}

// WriteToFile serializes the table to json or yaml, as selected by the extension of filename
func (ctd *CeErrorTableDesc) WriteToFile(filename string) error {
	return writeDescToFile(filename, ctd)
}

// ReadCeErrorTableDesc deserializes a channel estimation error table from dict, or from
// the named file when dict is empty
func ReadCeErrorTableDesc(filename string, useYAML bool, dict []byte) (*CeErrorTableDesc, error) {
	example := CeErrorTableDesc{}
	if err := readDesc(filename, "channel estimation error table", useYAML, dict, &example); err != nil {
		return nil, err
	}
	return &example, nil
}

// IsYAMLFile reports whether the extension of filename names yaml
func IsYAMLFile(filename string) bool {
	pathExt := path.Ext(filename)
	return pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml"
}

// IsJSONFile reports whether the extension of filename names json
func IsJSONFile(filename string) bool {
	pathExt := path.Ext(filename)
	return pathExt == ".json" || pathExt == ".JSON"
}

func writeDescToFile(filename string, desc any) error {
	var bytes []byte
	var merr error

	// path extension of the output file determines whether we serialize to json or to yaml
	if IsYAMLFile(filename) {
		bytes, merr = yaml.Marshal(desc)
	} else if IsJSONFile(filename) {
		bytes, merr = json.MarshalIndent(desc, "", "\t")
	} else {
		return fmt.Errorf("output file %s has neither yaml nor json extension", filename)
	}
	if merr != nil {
		return merr
	}

	return os.WriteFile(filename, bytes, 0644)
}

func readDesc(filename, what string, useYAML bool, dict []byte, example any) error {
	var err error

	// read from the file only if the byte slice is empty
	if len(dict) == 0 {
		fileInfo, err := os.Stat(filename)
		if os.IsNotExist(err) || (err == nil && fileInfo.IsDir()) {
			return fmt.Errorf("%s %s does not exist or cannot be read", what, filename)
		}
		dict, err = os.ReadFile(filename)
		if err != nil {
			return err
		}
	}

	if useYAML {
		err = yaml.Unmarshal(dict, example)
	} else {
		err = json.Unmarshal(dict, example)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", what, filename, err)
	}
	return nil
}

// ReportErrs transforms a list of errors and transforms the non-nil ones into a single error
// with comma-separated report of all the constituent errors, and returns it.
func ReportErrs(errs []error) error {
	errMsg := make([]string, 0)
	for _, err := range errs {
		if err != nil {
			errMsg = append(errMsg, err.Error())
		}
	}
	if len(errMsg) == 0 {
		return nil
	}

	return errors.New(strings.Join(errMsg, ","))
}

// CheckReadableFiles probes the file system to ensure that every
// one of the argument filenames exists and is readable
func CheckReadableFiles(names []string) (bool, error) {
	return CheckFiles(names, true)
}

// CheckOutputFiles probes the file system to ensure that every
// argument filename can be written.
func CheckOutputFiles(names []string) (bool, error) {
	return CheckFiles(names, false)
}

// CheckFiles probes the file system for permitted access to all the
// argument filenames, optionally checking also for the existence
// of those files for the purposes of reading them.
func CheckFiles(names []string, checkExistence bool) (bool, error) {
	errs := make([]error, 0)

	for _, name := range names {
		if len(name) == 0 {
			continue
		}

		// the directory holding the file must exist
		directory, _ := filepath.Split(name)
		if directory == "" {
			directory = "."
		}
		if _, err := os.Stat(directory); err != nil {
			errs = append(errs, err)
		}

		if checkExistence {
			if _, err := os.Stat(name); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := ReportErrs(errs); err != nil {
		return false, err
	}
	return true, nil
}
