package noaa

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/fetch"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

// Catalog exposes the two NCEI retrievals the pipeline needs, station
// discovery and per-station daily observations, each driven through the
// paginated fetch loop with the shared backoff policy.
type Catalog struct {
	client  *Client
	wrap    func(fetch.PageSource) fetch.PageSource
	policy  fetch.Policy
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCatalog builds a Catalog. wrap decorates each page source before
// fetching (the pipeline installs the steady-state rate limiter there);
// pass nil for no decoration.
func NewCatalog(client *Client, wrap func(fetch.PageSource) fetch.PageSource, policy fetch.Policy,
	clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Catalog {
	if wrap == nil {
		wrap = func(s fetch.PageSource) fetch.PageSource { return s }
	}
	return &Catalog{
		client:  client,
		wrap:    wrap,
		policy:  policy,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Stations retrieves every station inside the bounding box. Undecodable
// records are dropped with a warning rather than failing the discovery.
func (c *Catalog) Stations(ctx context.Context, box domain.Box) ([]domain.Station, error) {
	fetcher := fetch.New(c.wrap(c.client.StationSearch(box)), c.policy, c.clock, c.logger, c.metrics)

	var stations []domain.Station
	dropped := 0
	err := fetcher.Each(ctx, func(raw json.RawMessage) error {
		station, ok := decodeStation(raw)
		if !ok {
			dropped++
			return nil
		}
		stations = append(stations, station)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		c.logger.Warn("dropped station records missing id or coordinates", "count", dropped)
	}
	c.metrics.StationsDiscovered.Add(float64(len(stations)))
	return stations, nil
}

// DailyObservations retrieves one station's observations for the inclusive
// date range, in provider-returned order.
func (c *Catalog) DailyObservations(ctx context.Context, stationID string, r domain.DateRange) ([]domain.DailyObservation, error) {
	fetcher := fetch.New(c.wrap(c.client.DailySummaries(stationID, r)), c.policy, c.clock, c.logger, c.metrics)

	var obs []domain.DailyObservation
	err := fetcher.Each(ctx, func(raw json.RawMessage) error {
		obs = append(obs, decodeDailyRecord(raw, stationID)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return obs, nil
}
