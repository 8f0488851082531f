// Package aggregate folds per-station daily weather readings into regional
// daily summary rows.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

// ObservationSource retrieves one station's daily observations.
type ObservationSource interface {
	DailyObservations(ctx context.Context, stationID string, r domain.DateRange) ([]domain.DailyObservation, error)
}

// Cell is one (region, variable) value of a finalized row. Present is false
// when no station contributed that variable for the region/date; the column
// still exists so downstream joins align on a stable column set.
type Cell struct {
	Value   float64
	Present bool
}

// RegionDayRow is one finalized output row: every (region, variable) column
// for a single date, keyed by "{Region}_{Variable}".
type RegionDayRow struct {
	Date  string
	Cells map[string]Cell
}

// accKey identifies one running accumulator during a single run.
type accKey struct {
	date     string
	region   domain.Region
	variable domain.Variable
}

// acc keeps an exact integer count with a float sum; the mean is taken once
// at finalization instead of incrementally, so ordering across stations
// cannot drift the result.
type acc struct {
	sum   float64
	count int
}

// Aggregator retrieves, classifies, and folds station observations into
// regional daily rows.
type Aggregator struct {
	source     ObservationSource
	classifier domain.RegionClassifier

	// Optional great-circle selection filter: stations farther than radiusM
	// meters from (centerLat, centerLon) are skipped. Zero disables it.
	centerLat float64
	centerLon float64
	radiusM   float64

	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Aggregator.
func New(source ObservationSource, classifier domain.RegionClassifier, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		source:     source,
		classifier: classifier,
		logger:     logger,
		metrics:    metrics,
	}
}

// WithRadiusFilter restricts aggregation to stations within radiusM meters of
// the given center.
func (a *Aggregator) WithRadiusFilter(lat, lon, radiusM float64) *Aggregator {
	a.centerLat, a.centerLon, a.radiusM = lat, lon, radiusM
	return a
}

// Aggregate folds every station's observations in the date range into
// regional daily rows, sorted by date ascending. A station whose retrieval
// fails is logged and skipped; one station never aborts the run. Only
// context cancellation stops aggregation early.
func (a *Aggregator) Aggregate(ctx context.Context, stations []domain.Station, r domain.DateRange) ([]RegionDayRow, error) {
	start := time.Now()
	accs := make(map[accKey]*acc)
	observed := make(map[string]map[domain.Region]bool) // date -> regions seen

	for _, station := range stations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if a.excluded(station) {
			a.metrics.StationsSkipped.WithLabelValues("out_of_range").Inc()
			continue
		}

		region := a.classifier.Classify(station.Latitude, station.Longitude)

		obs, err := a.source.DailyObservations(ctx, station.ID, r)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			a.logger.Warn("station retrieval failed, skipping station",
				"station", station.ID, "region", region, "error", err)
			a.metrics.StationsSkipped.WithLabelValues("fetch_failed").Inc()
			continue
		}

		for _, o := range obs {
			key := accKey{date: o.Date, region: region, variable: o.Variable}
			cell := accs[key]
			if cell == nil {
				cell = &acc{}
				accs[key] = cell
			}
			cell.sum += o.Value
			cell.count++

			if observed[o.Date] == nil {
				observed[o.Date] = make(map[domain.Region]bool)
			}
			observed[o.Date][region] = true
		}
		a.metrics.ObservationsFolded.Add(float64(len(obs)))
	}

	rows := finalize(accs, observed)
	a.metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("aggregation complete",
		"stations", len(stations), "rows", len(rows), "duration", time.Since(start))
	return rows, nil
}

func (a *Aggregator) excluded(s domain.Station) bool {
	if a.radiusM <= 0 {
		return false
	}
	return domain.HaversineDistance(a.centerLat, a.centerLon, s.Latitude, s.Longitude) > a.radiusM
}

// finalize emits one row per date. For every (date, region) pair observed at
// least once, all six variable columns exist: means where stations
// contributed, explicit missing markers where none did. TAVG derives from
// TMIN and TMAX only when both are present.
func finalize(accs map[accKey]*acc, observed map[string]map[domain.Region]bool) []RegionDayRow {
	dates := make([]string, 0, len(observed))
	for date := range observed {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	rows := make([]RegionDayRow, 0, len(dates))
	for _, date := range dates {
		row := RegionDayRow{Date: date, Cells: make(map[string]Cell)}
		for region := range observed[date] {
			for _, v := range domain.Variables {
				col := ColumnName(region, v)
				if cell, ok := accs[accKey{date: date, region: region, variable: v}]; ok && cell.count > 0 {
					row.Cells[col] = Cell{Value: cell.sum / float64(cell.count), Present: true}
				} else {
					row.Cells[col] = Cell{}
				}
			}

			tmin := row.Cells[ColumnName(region, domain.VarTMIN)]
			tmax := row.Cells[ColumnName(region, domain.VarTMAX)]
			tavg := Cell{}
			if tmin.Present && tmax.Present {
				tavg = Cell{Value: (tmin.Value + tmax.Value) / 2, Present: true}
			}
			row.Cells[ColumnName(region, domain.VarTAVG)] = tavg
		}
		rows = append(rows, row)
	}
	return rows
}

// ColumnName is the output column for a (region, variable) pair.
func ColumnName(region domain.Region, v domain.Variable) string {
	return string(region) + "_" + string(v)
}

// Regions returns the regions appearing in any row, sorted by name.
func Regions(rows []RegionDayRow) []domain.Region {
	seen := make(map[domain.Region]bool)
	for _, row := range rows {
		for col := range row.Cells {
			for i := range col {
				if col[i] == '_' {
					seen[domain.Region(col[:i])] = true
					break
				}
			}
		}
	}
	regions := make([]domain.Region, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
	return regions
}
