package satlink

// ce-error.go models the error a receiver makes when it estimates the SINR of
// a channel.  A calibration table maps measured SINR to the mean and standard
// deviation of a gaussian error; AddError perturbs a SINR with a draw from the
// distribution found at that SINR

import (
	"bufio"
	"fmt"
	"golang.org/x/exp/slices"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ChannelEstimationErrorTable is an immutable calibration table, rows sorted by SINR
type ChannelEstimationErrorTable struct {
	name    string
	sinrsDb []float64
	meansDb []float64
	stdsDb  []float64
}

// CreateCeErrorTable validates a table description.  SINRs must be non-decreasing and
// standard deviations non-negative
func CreateCeErrorTable(ctd *CeErrorTableDesc) (*ChannelEstimationErrorTable, error) {
	if ctd == nil || len(ctd.Samples) == 0 {
		return nil, fmt.Errorf("channel estimation error table has no samples")
	}
	cet := new(ChannelEstimationErrorTable)
	cet.name = ctd.Name
	n := len(ctd.Samples)
	cet.sinrsDb = make([]float64, n)
	cet.meansDb = make([]float64, n)
	cet.stdsDb = make([]float64, n)

	errs := []error{}
	for idx, s := range ctd.Samples {
		if math.IsNaN(s.SinrDb) || math.IsNaN(s.MeanDb) || math.IsNaN(s.StdDevDb) ||
			math.IsInf(s.SinrDb, 0) || math.IsInf(s.MeanDb, 0) || math.IsInf(s.StdDevDb, 0) {
			errs = append(errs, fmt.Errorf("channel estimation error table %s row %d is not finite", ctd.Name, idx))
		}
		if s.StdDevDb < 0.0 {
			errs = append(errs, fmt.Errorf("channel estimation error table %s row %d has negative standard deviation %g",
				ctd.Name, idx, s.StdDevDb))
		}
		cet.sinrsDb[idx] = s.SinrDb
		cet.meansDb[idx] = s.MeanDb
		cet.stdsDb[idx] = s.StdDevDb
	}
	if !slices.IsSorted(cet.sinrsDb) {
		errs = append(errs, fmt.Errorf("channel estimation error table %s SINRs are not in increasing order", ctd.Name))
	}
	if err := ReportErrs(errs); err != nil {
		return nil, err
	}
	return cet, nil
}

// ReadCeErrorTable reads a calibration table from file.  Files with a yaml or json
// extension hold a CeErrorTableDesc; anything else is read as text columns
func ReadCeErrorTable(filename string) (*ChannelEstimationErrorTable, error) {
	var ctd *CeErrorTableDesc
	var err error
	if IsYAMLFile(filename) || IsJSONFile(filename) {
		ctd, err = ReadCeErrorTableDesc(filename, IsYAMLFile(filename), []byte{})
	} else {
		ctd, err = readCeErrorText(filename)
	}
	if err != nil {
		return nil, err
	}
	return CreateCeErrorTable(ctd)
}

func readCeErrorText(filename string) (*CeErrorTableDesc, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("channel estimation error table %s cannot be read: %w", filename, err)
	}
	defer f.Close()
	ctd, err := ParseCeErrorText(f)
	if err != nil {
		return nil, fmt.Errorf("channel estimation error table %s: %w", filename, err)
	}
	ctd.Name = filename
	return ctd, nil
}

// ParseCeErrorText reads rows of "sinrDb meanErrorDb stdErrorDb", separated by white space
// or commas.  Blank lines and lines starting with '#' are skipped
func ParseCeErrorText(r io.Reader) (*CeErrorTableDesc, error) {
	ctd := new(CeErrorTableDesc)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo += 1
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d has %d fields, expected 3", lineNo, len(fields))
		}
		vals := [3]float64{}
		for idx, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", lineNo, idx+1, err)
			}
			vals[idx] = v
		}
		ctd.Samples = append(ctd.Samples, CeErrorSampleDesc{SinrDb: vals[0], MeanDb: vals[1], StdDevDb: vals[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ctd, nil
}

// Len returns the number of rows
func (cet *ChannelEstimationErrorTable) Len() int {
	return len(cet.sinrsDb)
}

// Name returns the name the table was created with, the file name when read from file
func (cet *ChannelEstimationErrorTable) Name() string {
	return cet.name
}

// Desc returns the serializable form of the table
func (cet *ChannelEstimationErrorTable) Desc() *CeErrorTableDesc {
	ctd := &CeErrorTableDesc{Name: cet.name, Samples: make([]CeErrorSampleDesc, cet.Len())}
	for idx := range cet.sinrsDb {
		ctd.Samples[idx] = CeErrorSampleDesc{SinrDb: cet.sinrsDb[idx], MeanDb: cet.meansDb[idx], StdDevDb: cet.stdsDb[idx]}
	}
	return ctd
}

// ChannelEstimationError perturbs SINR estimates of one receiver.  The table is shared,
// the lookup cache and the random stream are owned by the instance
type ChannelEstimationError struct {
	table           *ChannelEstimationErrorTable
	lastSampleIndex int
	rng             RandomSource
	collector       *FadingCollector
}

// CreateChannelEstimationError is a constructor.  A nil rng is replaced by an rngstream stream
func CreateChannelEstimationError(table *ChannelEstimationErrorTable, rng RandomSource) *ChannelEstimationError {
	if table == nil || table.Len() == 0 {
		panic(fmt.Errorf("channel estimation error created without a table"))
	}
	cee := new(ChannelEstimationError)
	cee.table = table
	cee.rng = sourceOrDefault(rng, "ceerror/"+table.name)
	return cee
}

// CreateChannelEstimationErrorFromFile reads the table from file.  A missing or malformed file
// means the scenario cannot run, and panics
func CreateChannelEstimationErrorFromFile(filename string, rng RandomSource) *ChannelEstimationError {
	table, err := ReadCeErrorTable(filename)
	if err != nil {
		panic(err)
	}
	return CreateChannelEstimationError(table, rng)
}

// SetCollector makes the model report every error it adds to c
func (cee *ChannelEstimationError) SetCollector(c *FadingCollector) {
	cee.collector = c
}

// Table returns the shared calibration table
func (cee *ChannelEstimationError) Table() *ChannelEstimationErrorTable {
	return cee.table
}

// AddError returns sinrDb plus a gaussian error whose mean and standard deviation are
// looked up at sinrDb
func (cee *ChannelEstimationError) AddError(sinrDb float64) float64 {
	mean, std := cee.LookupParameters(sinrDb)
	errDb := normalRV(cee.rng, mean, std)
	cee.collector.observeCeError(errDb)
	return sinrDb + errDb
}

// LookupParameters returns the error mean and standard deviation at sinrDb, interpolating
// linearly between the bracketing rows.  An exact match returns the row; a SINR outside
// the table takes the boundary row
func (cee *ChannelEstimationError) LookupParameters(sinrDb float64) (float64, float64) {
	t := cee.table
	last := t.Len() - 1
	if !(sinrDb > t.sinrsDb[0]) {
		cee.lastSampleIndex = 0
		return t.meansDb[0], t.stdsDb[0]
	}
	if sinrDb >= t.sinrsDb[last] {
		cee.lastSampleIndex = last
		return t.meansDb[last], t.stdsDb[last]
	}

	// scan from the cached position to the last row at or below sinrDb
	idx := cee.lastSampleIndex
	for idx < last && t.sinrsDb[idx+1] <= sinrDb {
		idx += 1
	}
	for idx > 0 && t.sinrsDb[idx] > sinrDb {
		idx -= 1
	}
	cee.lastSampleIndex = idx

	lo, hi := t.sinrsDb[idx], t.sinrsDb[idx+1]
	frac := (sinrDb - lo) / (hi - lo)
	mean := t.meansDb[idx] + frac*(t.meansDb[idx+1]-t.meansDb[idx])
	std := t.stdsDb[idx] + frac*(t.stdsDb[idx+1]-t.stdsDb[idx])
	return mean, std
}
