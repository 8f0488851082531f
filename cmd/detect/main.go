// Command detect runs the anomaly detector over one column of a CSV file and
// prints the contiguous anomaly segments as JSON date pairs.
//
// Usage:
//
//	go run ./cmd/detect -input dataset/gdp.csv -column value
//	go run ./cmd/detect -input dataset/aggregated_weather.csv -column East_TMIN \
//	  -method moving_average -window 7
//
// Recoverable ingestion problems (missing file, absent column) print an empty
// list and exit zero, matching the multi-series batch contract; invalid
// parameters exit nonzero.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	input := flag.String("input", "", "CSV file with a date column")
	column := flag.String("column", "", "numeric column to analyze")
	method := flag.String("method", string(domain.MethodStatisticalOutlier),
		"detection method: isolation_forest or moving_average")
	contamination := flag.Float64("contamination", 0.05, "expected anomaly fraction (isolation_forest)")
	window := flag.Int("window", 7, "rolling window size (moving_average)")
	seed := flag.Int64("seed", 42, "random seed (isolation_forest)")
	out := flag.String("out", "", "output path; stdout when empty")
	flag.Parse()

	if *input == "" || *column == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -input, -column")
	}

	segments := []domain.AnomalySegment{}

	series, err := domain.LoadSeriesCSV(*input, *column)
	switch {
	case errors.Is(err, domain.ErrDataUnavailable), errors.Is(err, domain.ErrColumnNotFound):
		log.Printf("warning: %v", err)
	case err != nil:
		return err
	default:
		segments, err = domain.DetectAnomalies(series, domain.Method(*method), domain.DetectorParams{
			Contamination: *contamination,
			Window:        *window,
			Seed:          *seed,
		})
		if err != nil {
			return err
		}
		if segments == nil {
			segments = []domain.AnomalySegment{}
		}
	}

	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if *out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0o644)
}
