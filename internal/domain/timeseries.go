package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Point is one dated value in a time series.
type Point struct {
	Date  time.Time
	Value float64
}

// TimeSeries is an ordered sequence of (date, value) pairs, strictly
// increasing by date with no duplicates. Construct with NewTimeSeries.
type TimeSeries struct {
	points []Point
}

// NewTimeSeries validates ordering and uniqueness of dates.
func NewTimeSeries(points []Point) (TimeSeries, error) {
	for i := 1; i < len(points); i++ {
		if !points[i].Date.After(points[i-1].Date) {
			return TimeSeries{}, fmt.Errorf("%w: series dates not strictly increasing at index %d (%s)",
				ErrInvalidArgument, i, points[i].Date.Format(DateLayout))
		}
	}
	return TimeSeries{points: points}, nil
}

// Len returns the number of points.
func (s TimeSeries) Len() int { return len(s.points) }

// Points returns the underlying points, oldest first.
func (s TimeSeries) Points() []Point { return s.points }

// Values returns just the values, in date order.
func (s TimeSeries) Values() []float64 {
	vals := make([]float64, len(s.points))
	for i, p := range s.points {
		vals[i] = p.Value
	}
	return vals
}

// AnomalySegment is a maximal run of consecutive anomalous dates, inclusive
// on both ends. Created fresh per detection run and never mutated afterward.
type AnomalySegment struct {
	Start string
	End   string
}

// MarshalJSON renders the segment as the two-element ["start","end"] array
// the downstream enrichment step consumes.
func (s AnomalySegment) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{s.Start, s.End})
}

// UnmarshalJSON accepts the same two-element array form.
func (s *AnomalySegment) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("anomaly segment: %w", err)
	}
	s.Start, s.End = pair[0], pair[1]
	return nil
}

// extractSegments collapses a boolean anomaly flag sequence into contiguous
// date-range segments. flags[i] corresponds to points[i]; a segment opens on
// the first flagged date after a gap, closes on the date preceding the first
// unflagged date after a run, and a segment still open at the end of the
// series closes on the last date. Segments come out chronological and
// non-overlapping.
func extractSegments(points []Point, flags []bool) []AnomalySegment {
	var segments []AnomalySegment
	openAt := -1

	for i := range points {
		switch {
		case flags[i] && openAt < 0:
			openAt = i
		case !flags[i] && openAt >= 0:
			segments = append(segments, AnomalySegment{
				Start: points[openAt].Date.Format(DateLayout),
				End:   points[i-1].Date.Format(DateLayout),
			})
			openAt = -1
		}
	}
	if openAt >= 0 {
		segments = append(segments, AnomalySegment{
			Start: points[openAt].Date.Format(DateLayout),
			End:   points[len(points)-1].Date.Format(DateLayout),
		})
	}
	return segments
}
