package domain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSeries(t *testing.T) {
	csvData := strings.Join([]string{
		"DATE,value,other",
		"2024-01-01,1.5,9",
		"2024-01-02,2.5,9",
		"2024-01-03,3.5,9",
	}, "\n")

	series, err := LoadSeries(strings.NewReader(csvData), "value")
	require.NoError(t, err)

	require.Equal(t, 3, series.Len())
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, series.Values())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), series.Points()[1].Date)
}

func TestLoadSeries_ShortDateFormat(t *testing.T) {
	csvData := "Date,gdp\n1/2/24,100\n1/3/24,110\n"

	series, err := LoadSeries(strings.NewReader(csvData), "gdp")
	require.NoError(t, err)

	require.Equal(t, 2, series.Len())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), series.Points()[0].Date)
}

func TestLoadSeries_SkipsUnparsableRows(t *testing.T) {
	csvData := strings.Join([]string{
		"date,value",
		"2024-01-01,1",
		"not-a-date,2",
		"2024-01-03,",
		"2024-01-04,abc",
		"2024-01-05",
		"2024-01-06,6",
	}, "\n")

	series, err := LoadSeries(strings.NewReader(csvData), "value")
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 6}, series.Values())
}

func TestLoadSeries_MissingColumn(t *testing.T) {
	csvData := "date,value\n2024-01-01,1\n"

	_, err := LoadSeries(strings.NewReader(csvData), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestLoadSeries_MissingDateColumn(t *testing.T) {
	csvData := "when,value\n2024-01-01,1\n"

	_, err := LoadSeries(strings.NewReader(csvData), "value")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestLoadSeries_DisorderedDatesAreDataErrors(t *testing.T) {
	// Broken input data must stay recoverable for multi-series callers, so it
	// reports as unavailable data rather than an invalid argument.
	tests := []struct {
		name string
		csv  string
	}{
		{"out of order", "date,value\n2024-01-02,1\n2024-01-01,2\n"},
		{"duplicate date", "date,value\n2024-01-01,1\n2024-01-01,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeries(strings.NewReader(tt.csv), "value")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataUnavailable)
			assert.NotErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestLoadSeriesCSV_MissingFile(t *testing.T) {
	_, err := LoadSeriesCSV(filepath.Join(t.TempDir(), "absent.csv"), "value")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadSeriesCSV_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,value\n2024-01-01,4\n2024-01-02,5\n"), 0o644))

	series, err := LoadSeriesCSV(path, "value")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, series.Values())
}
