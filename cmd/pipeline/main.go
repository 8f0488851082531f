package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geoclimate-etl/internal/adapter/httpserv"
	kafkaadapter "github.com/couchcryptid/geoclimate-etl/internal/adapter/kafka"
	"github.com/couchcryptid/geoclimate-etl/internal/adapter/noaa"
	"github.com/couchcryptid/geoclimate-etl/internal/aggregate"
	"github.com/couchcryptid/geoclimate-etl/internal/config"
	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/fetch"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
	"github.com/couchcryptid/geoclimate-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	client := noaa.NewClient(cfg.NOAAToken, cfg.NOAABaseURL, cfg.FetchTimeout, logger, metrics)

	// Transport-level pacing guard; the fetch policy's signal-driven waits
	// sit above it.
	wrap := func(s fetch.PageSource) fetch.PageSource {
		return noaa.NewRateLimitedSource(s, 2, 1)
	}
	policy := fetch.Policy{
		LowWaterMark:  cfg.LowWaterMark,
		LowWaterDelay: cfg.LowWaterDelay,
		DefaultDelay:  cfg.RequestInterval,
	}
	catalog := noaa.NewCatalog(client, wrap, policy, clock, logger, metrics)
	cached := noaa.NewCachedObservationSource(catalog, cfg.ObsCacheEntries, metrics)

	aggregator := aggregate.New(cached, domain.QuadrantClassifier{}, logger, metrics)
	if cfg.StationRadiusM > 0 {
		aggregator.WithRadiusFilter(cfg.CenterLat, cfg.CenterLon, cfg.StationRadiusM)
		logger.Info("station radius filter enabled", "radius_m", cfg.StationRadiusM)
	}

	var publisher pipeline.SegmentPublisher
	var segmentWriter *kafkaadapter.SegmentWriter
	if cfg.KafkaEnabled {
		segmentWriter = kafkaadapter.NewSegmentWriter(cfg.KafkaBrokers, cfg.KafkaSegmentTopic, clock, logger)
		publisher = segmentWriter
		logger.Info("kafka segment hand-off enabled", "topic", cfg.KafkaSegmentTopic)
	} else {
		logger.Info("kafka segment hand-off disabled")
	}

	params := pipeline.Params{
		CenterLat:  cfg.CenterLat,
		CenterLon:  cfg.CenterLon,
		DeltaLat:   cfg.DeltaLat,
		DeltaLon:   cfg.DeltaLon,
		Range:      cfg.DateRange(),
		OutputDir:  cfg.OutputDir,
		GDPCSVPath: cfg.GDPCSVPath,
		Method:     cfg.DetectMethod,
		Detector: domain.DetectorParams{
			Contamination: cfg.Contamination,
			Window:        cfg.RollingWindow,
			Seed:          cfg.RandomSeed,
		},
	}
	p := pipeline.New(catalog, aggregator, publisher, params, logger, metrics)

	srv := httpserv.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- p.Run(ctx)
	}()

	select {
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pipeline run failed", "error", err)
		} else {
			logger.Info("pipeline run complete")
		}
	case <-ctx.Done():
		logger.Info("shutdown requested, waiting for pipeline to stop")
		<-runErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if segmentWriter != nil {
		if err := segmentWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
