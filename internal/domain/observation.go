package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for observation dates.
const DateLayout = "2006-01-02"

// Station is a weather station as returned by the discovery search.
// Immutable once fetched.
type Station struct {
	ID        string
	Latitude  float64
	Longitude float64
}

// Variable identifies a daily weather measurement.
type Variable string

const (
	VarTMIN Variable = "TMIN"
	VarTMAX Variable = "TMAX"
	VarPRCP Variable = "PRCP"
	VarAWND Variable = "AWND"
	VarSNOW Variable = "SNOW"
	VarSNWD Variable = "SNWD"

	// VarTAVG is derived at finalization as (TMIN+TMAX)/2 and never appears
	// in source records.
	VarTAVG Variable = "TAVG"
)

// Variables lists the source measurement kinds in canonical column order.
var Variables = []Variable{VarTMIN, VarTMAX, VarPRCP, VarAWND, VarSNOW, VarSNWD}

// DailyObservation is one station/date/variable measurement. Missing values
// are omitted upstream, never represented as zero, so every DailyObservation
// carries a real reading.
type DailyObservation struct {
	StationID string
	Date      string // DateLayout
	Variable  Variable
	Value     float64
}

// DateRange is an inclusive [Start, End] date window in DateLayout form.
type DateRange struct {
	Start string
	End   string
}

// NewDateRange validates both endpoints and their ordering.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q", ErrInvalidArgument, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q", ErrInvalidArgument, end)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("%w: date range %s..%s is inverted", ErrInvalidArgument, start, end)
	}
	return DateRange{Start: start, End: end}, nil
}
