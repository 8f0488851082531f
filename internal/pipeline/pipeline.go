// Package pipeline orchestrates one aggregation-and-detection run: discover
// stations inside the configured bounding box, fold their observations into
// regional daily rows, write the summary table, then scan the GDP series and
// each regional weather variable for anomalous intervals.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/geoclimate-etl/internal/aggregate"
	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

// WeatherCSVName and AnomaliesJSONName are the run's output artifacts,
// relative to the configured output directory.
const (
	WeatherCSVName    = "aggregated_weather.csv"
	AnomaliesJSONName = "anomalies.json"
)

// detectVariables are the regional weather variables scanned for anomalies.
var detectVariables = []domain.Variable{domain.VarTMIN, domain.VarTMAX, domain.VarPRCP}

// StationLister discovers stations inside a bounding box.
type StationLister interface {
	Stations(ctx context.Context, box domain.Box) ([]domain.Station, error)
}

// RegionAggregator folds station observations into regional daily rows.
type RegionAggregator interface {
	Aggregate(ctx context.Context, stations []domain.Station, r domain.DateRange) ([]aggregate.RegionDayRow, error)
}

// SegmentPublisher hands finalized segments to the enrichment collaborator.
type SegmentPublisher interface {
	PublishSegments(ctx context.Context, series string, method domain.Method, segments []domain.AnomalySegment) error
}

// Params are the per-run settings.
type Params struct {
	CenterLat float64
	CenterLon float64
	DeltaLat  float64
	DeltaLon  float64

	Range      domain.DateRange
	OutputDir  string
	GDPCSVPath string

	Method   domain.Method
	Detector domain.DetectorParams
}

// Pipeline runs the aggregation and detection stages.
type Pipeline struct {
	lister     StationLister
	aggregator RegionAggregator
	publisher  SegmentPublisher // nil disables the Kafka hand-off
	params     Params
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
}

// New creates a Pipeline. publisher may be nil.
func New(lister StationLister, aggregator RegionAggregator, publisher SegmentPublisher,
	params Params, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		lister:     lister,
		aggregator: aggregator,
		publisher:  publisher,
		params:     params,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a run has produced at least one regional
// row.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no aggregation run has completed yet")
	}
	return nil
}

// Run executes one complete pipeline pass. Bad geometry or detector
// configuration is fatal; everything else fails at the granularity of one
// station or one series and the run continues.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	box, err := domain.BoundingBox(p.params.CenterLat, p.params.CenterLon, p.params.DeltaLat, p.params.DeltaLon)
	if err != nil {
		return fmt.Errorf("station bounding box: %w", err)
	}

	stations, err := p.lister.Stations(ctx, box)
	if err != nil {
		return fmt.Errorf("station discovery: %w", err)
	}
	p.logger.Info("stations discovered", "count", len(stations),
		"north", box.North, "south", box.South)

	rows, err := p.aggregator.Aggregate(ctx, stations, p.params.Range)
	if err != nil {
		return fmt.Errorf("aggregation: %w", err)
	}

	weatherCSV := filepath.Join(p.params.OutputDir, WeatherCSVName)
	if err := aggregate.WriteCSVFile(weatherCSV, rows); err != nil {
		return fmt.Errorf("write weather table: %w", err)
	}
	p.logger.Info("regional weather table written", "path", weatherCSV, "rows", len(rows))

	if len(rows) > 0 {
		p.ready.Store(true)
	}

	results, err := p.detectAll(ctx, rows, weatherCSV)
	if err != nil {
		return err
	}

	anomaliesJSON := filepath.Join(p.params.OutputDir, AnomaliesJSONName)
	if err := writeSegmentsJSON(anomaliesJSON, results); err != nil {
		return fmt.Errorf("write anomaly segments: %w", err)
	}
	p.logger.Info("anomaly segments written", "path", anomaliesJSON, "series", len(results))

	p.publishAll(ctx, results)
	return nil
}

// detectAll scans the GDP series and each observed regional weather variable.
// One series' missing input never loses the others' results: recoverable
// ingestion failures contribute an empty segment list.
func (p *Pipeline) detectAll(ctx context.Context, rows []aggregate.RegionDayRow, weatherCSV string) (map[string][]domain.AnomalySegment, error) {
	results := make(map[string][]domain.AnomalySegment)

	segs, err := p.detectSeries(p.params.GDPCSVPath, "value", "gdp")
	if err != nil {
		return nil, err
	}
	results["gdp"] = segs

	for _, region := range aggregate.Regions(rows) {
		for _, v := range detectVariables {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			column := aggregate.ColumnName(region, v)
			segs, err := p.detectSeries(weatherCSV, column, column)
			if err != nil {
				return nil, err
			}
			results[column] = segs
		}
	}
	return results, nil
}

// detectSeries loads one CSV column and runs the configured detector over it.
// Missing files and absent columns are recovered as an empty segment list;
// bad detector configuration propagates as a fatal error.
func (p *Pipeline) detectSeries(path, column, name string) ([]domain.AnomalySegment, error) {
	start := time.Now()

	series, err := domain.LoadSeriesCSV(path, column)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) || errors.Is(err, domain.ErrColumnNotFound) {
			p.logger.Warn("series unavailable, skipping", "series", name, "error", err)
			p.metrics.SeriesAnalyzed.WithLabelValues("skipped").Inc()
			return []domain.AnomalySegment{}, nil
		}
		return nil, fmt.Errorf("load series %s: %w", name, err)
	}

	segments, err := domain.DetectAnomalies(series, p.params.Method, p.params.Detector)
	if err != nil {
		return nil, fmt.Errorf("detect %s: %w", name, err)
	}

	p.metrics.SeriesAnalyzed.WithLabelValues("ok").Inc()
	p.metrics.SegmentsFound.Add(float64(len(segments)))
	p.metrics.DetectionDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("series analyzed", "series", name, "points", series.Len(), "segments", len(segments))

	if segments == nil {
		segments = []domain.AnomalySegment{}
	}
	return segments, nil
}

// publishAll hands each series' segments to the publisher. Publish failures
// are logged and do not fail the run; the JSON artifact already persisted.
func (p *Pipeline) publishAll(ctx context.Context, results map[string][]domain.AnomalySegment) {
	if p.publisher == nil {
		return
	}
	for series, segments := range results {
		if err := p.publisher.PublishSegments(ctx, series, p.params.Method, segments); err != nil {
			p.logger.Error("segment publish failed", "series", series, "error", err)
		}
	}
}

// writeSegmentsJSON persists the per-series segment lists in the
// [["start","end"],...] shape the enrichment step consumes unmodified.
func writeSegmentsJSON(path string, results map[string][]domain.AnomalySegment) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
