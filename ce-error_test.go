package satlink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func testCeTable(t *testing.T) *ChannelEstimationErrorTable {
	t.Helper()
	table, err := CreateCeErrorTable(&CeErrorTableDesc{
		Name: "test",
		Samples: []CeErrorSampleDesc{
			{SinrDb: 0.0, MeanDb: 0.1, StdDevDb: 0.5},
			{SinrDb: 5.0, MeanDb: 0.2, StdDevDb: 0.3},
			{SinrDb: 10.0, MeanDb: 0.4, StdDevDb: 0.1},
		},
	})
	require.NoError(t, err)
	return table
}

func TestLookupParameters(t *testing.T) {
	cee := CreateChannelEstimationError(testCeTable(t), CreateSeededSource(1))

	tests := []struct {
		name     string
		sinrDb   float64
		mean     float64
		std      float64
	}{
		{"first row", 0.0, 0.1, 0.5},
		{"exact middle row", 5.0, 0.2, 0.3},
		{"last row", 10.0, 0.4, 0.1},
		{"interpolated", 2.5, 0.15, 0.4},
		{"interpolated upper", 7.5, 0.3, 0.2},
		{"below the table", -20.0, 0.1, 0.5},
		{"above the table", 35.0, 0.4, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, std := cee.LookupParameters(tt.sinrDb)
			assert.InDelta(t, tt.mean, mean, 1e-12)
			assert.InDelta(t, tt.std, std, 1e-12)
		})
	}
}

func TestLookupCacheMatchesFreshLookup(t *testing.T) {
	table := testCeTable(t)
	cached := CreateChannelEstimationError(table, CreateSeededSource(1))
	sinrs := []float64{-1, 0.5, 1.5, 4.9, 5.0, 6.0, 9.9, 12.0, 7.0, 3.0, 0.2, 8.0}
	for _, sinr := range sinrs {
		fresh := CreateChannelEstimationError(table, CreateSeededSource(1))
		wantMean, wantStd := fresh.LookupParameters(sinr)
		mean, std := cached.LookupParameters(sinr)
		assert.Equal(t, wantMean, mean, "sinr %g", sinr)
		assert.Equal(t, wantStd, std, "sinr %g", sinr)
	}
}

func TestAddError(t *testing.T) {
	table, err := CreateCeErrorTable(&CeErrorTableDesc{Samples: []CeErrorSampleDesc{
		{SinrDb: -5.0, MeanDb: -0.5, StdDevDb: 0.0},
		{SinrDb: 15.0, MeanDb: 1.5, StdDevDb: 0.0},
	}})
	require.NoError(t, err)
	cee := CreateChannelEstimationError(table, CreateSeededSource(3))

	// with no spread the error is the interpolated mean
	assert.InDelta(t, 5.5, cee.AddError(5.0), 1e-12)
	assert.InDelta(t, -10.5, cee.AddError(-10.0), 1e-12)

	noisy := CreateChannelEstimationError(testCeTable(t), CreateSeededSource(3))
	errs := make([]float64, 10000)
	for i := range errs {
		errs[i] = noisy.AddError(10.0) - 10.0
	}
	mean, std := stat.MeanStdDev(errs, nil)
	assert.InDelta(t, 0.4, mean, 0.01)
	assert.InDelta(t, 0.1, std, 0.01)
}

func TestCreateCeErrorTableRejects(t *testing.T) {
	_, err := CreateCeErrorTable(&CeErrorTableDesc{})
	assert.Error(t, err)

	_, err = CreateCeErrorTable(&CeErrorTableDesc{Samples: []CeErrorSampleDesc{
		{SinrDb: 5.0, MeanDb: 0.0, StdDevDb: 0.1},
		{SinrDb: 1.0, MeanDb: 0.0, StdDevDb: 0.1},
	}})
	assert.Error(t, err)

	_, err = CreateCeErrorTable(&CeErrorTableDesc{Samples: []CeErrorSampleDesc{
		{SinrDb: 1.0, MeanDb: 0.0, StdDevDb: -0.1},
	}})
	assert.Error(t, err)

	assert.Panics(t, func() { CreateChannelEstimationError(nil, nil) })
}

func TestParseCeErrorText(t *testing.T) {
	text := `# sinr mean std
-2.0  0.05  0.40

0.0, 0.10, 0.35
	4.5	0.20	0.30
`
	ctd, err := ParseCeErrorText(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, []CeErrorSampleDesc{
		{SinrDb: -2.0, MeanDb: 0.05, StdDevDb: 0.40},
		{SinrDb: 0.0, MeanDb: 0.10, StdDevDb: 0.35},
		{SinrDb: 4.5, MeanDb: 0.20, StdDevDb: 0.30},
	}, ctd.Samples)

	_, err = ParseCeErrorText(strings.NewReader("1.0 2.0\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = ParseCeErrorText(strings.NewReader("# header\n1.0 2.0 x\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestReadCeErrorTable(t *testing.T) {
	dir := t.TempDir()

	textFile := filepath.Join(dir, "ce-error.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("0 0.1 0.5\n5 0.2 0.3\n10 0.4 0.1\n"), 0644))
	table, err := ReadCeErrorTable(textFile)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, textFile, table.Name())

	yamlFile := filepath.Join(dir, "ce-error.yaml")
	require.NoError(t, table.Desc().WriteToFile(yamlFile))
	fromYAML, err := ReadCeErrorTable(yamlFile)
	require.NoError(t, err)
	assert.Equal(t, table.Desc(), fromYAML.Desc())

	_, err = ReadCeErrorTable(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
	assert.Panics(t, func() { CreateChannelEstimationErrorFromFile(filepath.Join(dir, "missing.txt"), nil) })

	cee := CreateChannelEstimationErrorFromFile(textFile, CreateSeededSource(1))
	mean, _ := cee.LookupParameters(5.0)
	assert.Equal(t, 0.2, mean)
	assert.Same(t, cee.Table(), cee.Table())
}
