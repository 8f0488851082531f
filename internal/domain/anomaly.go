package domain

import (
	"fmt"
	"math"
)

// Method selects an outlier-scoring strategy for DetectAnomalies.
type Method string

const (
	// MethodStatisticalOutlier scores each point with a seeded isolation
	// forest and flags the configured contamination fraction.
	MethodStatisticalOutlier Method = "isolation_forest"

	// MethodRollingBand flags points outside a rolling mean ± 3·std band.
	MethodRollingBand Method = "moving_average"
)

// DetectorParams tunes the two detection methods.
type DetectorParams struct {
	// Contamination is the expected proportion of anomalous points used to
	// set the isolation-forest decision boundary. Must be in (0, 1).
	Contamination float64

	// Window is the rolling-statistics window for MethodRollingBand.
	// Must be at least 2 for a defined sample standard deviation.
	Window int

	// Seed feeds the isolation forest's random source so runs are
	// reproducible.
	Seed int64
}

// DefaultDetectorParams mirrors the historical defaults: 5% contamination,
// a 7-day window, and a fixed seed.
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{Contamination: 0.05, Window: 7, Seed: 42}
}

// DetectAnomalies scores each point of the series as normal or anomalous
// under the chosen method, then collapses the flags into contiguous date
// segments. A series with no anomalies yields an empty list. Unknown methods
// and out-of-range parameters fail with ErrInvalidArgument.
//
// The two methods can disagree on anomaly boundaries for the same series;
// callers pick one method per series and must not merge results from both
// without an explicit merge policy.
func DetectAnomalies(series TimeSeries, method Method, params DetectorParams) ([]AnomalySegment, error) {
	var flags []bool

	switch method {
	case MethodStatisticalOutlier:
		if params.Contamination <= 0 || params.Contamination >= 1 {
			return nil, fmt.Errorf("%w: contamination %v outside (0, 1)", ErrInvalidArgument, params.Contamination)
		}
		flags = isolationForestFlags(series.Values(), params.Contamination, params.Seed)
	case MethodRollingBand:
		if params.Window < 2 {
			return nil, fmt.Errorf("%w: rolling window %d must be at least 2", ErrInvalidArgument, params.Window)
		}
		flags = rollingBandFlags(series.Values(), params.Window)
	default:
		return nil, fmt.Errorf("%w: unknown detection method %q", ErrInvalidArgument, method)
	}

	return extractSegments(series.Points(), flags), nil
}

// rollingBandFlags flags values outside mean ± 3·std of the window values
// strictly preceding each point. Excluding the current point keeps a spike
// from inflating its own band and escaping detection. Points without a full
// window of history are never flagged; there is no NaN sentinel to compare
// against a threshold.
func rollingBandFlags(values []float64, window int) []bool {
	flags := make([]bool, len(values))
	for i := window; i < len(values); i++ {
		mean, std := meanStd(values[i-window : i])
		upper := mean + 3*std
		lower := mean - 3*std
		flags[i] = values[i] > upper || values[i] < lower
	}
	return flags
}

// meanStd returns the mean and sample standard deviation of values.
// len(values) must be at least 2.
func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
