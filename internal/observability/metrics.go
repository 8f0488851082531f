package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline and the anomaly detector.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Paginated retrieval metrics.
	PagesFetched   prometheus.Counter
	FetchErrors    prometheus.Counter
	RateLimitWaits *prometheus.CounterVec // labels: reason={retry_after,low_water,default}

	// Aggregation metrics.
	StationsDiscovered  prometheus.Counter
	StationsSkipped     *prometheus.CounterVec // labels: reason={fetch_failed,out_of_range}
	ObservationsFolded  prometheus.Counter
	AggregationDuration prometheus.Histogram
	ObsCacheLookups     *prometheus.CounterVec // labels: result={hit,miss}

	// Detection metrics.
	SeriesAnalyzed    *prometheus.CounterVec // labels: outcome={ok,skipped}
	SegmentsFound     prometheus.Counter
	DetectionDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.PagesFetched,
		m.FetchErrors,
		m.RateLimitWaits,
		m.StationsDiscovered,
		m.StationsSkipped,
		m.ObservationsFolded,
		m.AggregationDuration,
		m.ObsCacheLookups,
		m.SeriesAnalyzed,
		m.SegmentsFound,
		m.DetectionDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// construct as many instances as they need without "already registered"
// panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geoclimate",
			Name:      "pipeline_running",
			Help:      "1 while an aggregation run is active, 0 otherwise.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "pages_fetched_total",
			Help:      "Total pages retrieved from remote data sources.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "fetch_errors_total",
			Help:      "Total non-recoverable transport or protocol failures.",
		}),
		RateLimitWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "rate_limit_waits_total",
			Help:      "Backoff suspensions between page requests, by reason.",
		}, []string{"reason"}),
		StationsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "stations_discovered_total",
			Help:      "Stations returned by the bounding-box discovery search.",
		}),
		StationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "stations_skipped_total",
			Help:      "Stations excluded from aggregation, by reason.",
		}, []string{"reason"}),
		ObservationsFolded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "observations_folded_total",
			Help:      "Daily observations folded into regional accumulators.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geoclimate",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a complete multi-station aggregation run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}),
		ObsCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "observation_cache_lookups_total",
			Help:      "Per-station observation cache lookups, by result.",
		}, []string{"result"}),
		SeriesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "series_analyzed_total",
			Help:      "Time series runs through the anomaly detector, by outcome.",
		}, []string{"outcome"}),
		SegmentsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geoclimate",
			Name:      "anomaly_segments_total",
			Help:      "Contiguous anomaly segments emitted across all series.",
		}),
		DetectionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "geoclimate",
			Name:      "detection_duration_seconds",
			Help:      "Duration of anomaly detection for a single series.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}
