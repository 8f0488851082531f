package domain

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// seriesDateLayouts are the accepted date formats for series CSV inputs:
// ISO dates and the short month/day/year form used by some upstream exports.
var seriesDateLayouts = []string{DateLayout, "1/2/06"}

// LoadSeriesCSV reads one named numeric column of a CSV file as a TimeSeries.
// The date column is whichever header equals "date" case-insensitively.
// A missing or unreadable file fails with ErrDataUnavailable, as does a file
// whose surviving dates are not strictly increasing; an absent value column
// fails with ErrColumnNotFound. Rows whose date or value cannot be parsed
// (including empty missing-value cells) are skipped. Bad input data never
// surfaces as ErrInvalidArgument: that error is reserved for caller-supplied
// parameters, and multi-series callers recover data errors per series.
func LoadSeriesCSV(path, column string) (TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return TimeSeries{}, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, path, err)
	}
	defer f.Close()

	series, err := LoadSeries(f, column)
	if err != nil {
		return TimeSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// LoadSeries reads a TimeSeries from CSV data on r. See LoadSeriesCSV.
func LoadSeries(r io.Reader, column string) (TimeSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return TimeSeries{}, fmt.Errorf("%w: reading header: %v", ErrDataUnavailable, err)
	}

	dateIdx, valueIdx := -1, -1
	for i, name := range header {
		if strings.EqualFold(name, "date") {
			dateIdx = i
		}
		if name == column {
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return TimeSeries{}, fmt.Errorf("%w: date", ErrColumnNotFound)
	}
	if valueIdx < 0 {
		return TimeSeries{}, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	var points []Point
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return TimeSeries{}, fmt.Errorf("%w: reading rows: %v", ErrDataUnavailable, err)
		}
		if dateIdx >= len(row) || valueIdx >= len(row) {
			continue
		}

		date, ok := parseSeriesDate(row[dateIdx])
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[valueIdx]), 64)
		if err != nil {
			continue
		}
		points = append(points, Point{Date: date, Value: value})
	}

	series, err := NewTimeSeries(points)
	if err != nil {
		return TimeSeries{}, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	return series, nil
}

func parseSeriesDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range seriesDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
