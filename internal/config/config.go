package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables
// (with an optional .env file for local runs).
type Config struct {
	// NOAA retrieval.
	NOAAToken    string
	NOAABaseURL  string
	FetchTimeout time.Duration

	// Date window and station selection geometry.
	StartDate       string
	EndDate         string
	CenterLat       float64
	CenterLon       float64
	DeltaLat        float64
	DeltaLon        float64
	StationRadiusM  float64 // 0 disables the haversine filter
	ObsCacheEntries int

	// Backoff policy.
	RequestInterval time.Duration
	LowWaterDelay   time.Duration
	LowWaterMark    int

	// Anomaly detection.
	DetectMethod  domain.Method
	Contamination float64
	RollingWindow int
	RandomSeed    int64
	GDPCSVPath    string

	// Outputs.
	OutputDir string

	// Kafka hand-off (feature-flagged).
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaSegmentTopic string

	// Process plumbing.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is honored but never overrides
// real environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := envDuration("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	requestInterval, err := envDuration("REQUEST_INTERVAL", time.Second)
	if err != nil {
		return nil, err
	}
	lowWaterDelay, err := envDuration("LOW_WATER_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}
	lowWaterMark, err := envInt("LOW_WATER_MARK", 5)
	if err != nil {
		return nil, err
	}

	centerLat, err := envFloat("CENTER_LAT", 36.89)
	if err != nil {
		return nil, err
	}
	centerLon, err := envFloat("CENTER_LON", -95.94)
	if err != nil {
		return nil, err
	}
	deltaLat, err := envFloat("DELTA_LAT", 12.5)
	if err != nil {
		return nil, err
	}
	deltaLon, err := envFloat("DELTA_LON", 29.06)
	if err != nil {
		return nil, err
	}
	radius, err := envFloat("MAX_STATION_RADIUS_M", 0)
	if err != nil {
		return nil, err
	}
	cacheEntries, err := envInt("OBS_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	contamination, err := envFloat("CONTAMINATION", 0.05)
	if err != nil {
		return nil, err
	}
	window, err := envInt("ROLLING_WINDOW", 7)
	if err != nil {
		return nil, err
	}
	seed, err := envInt("RANDOM_SEED", 42)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		NOAAToken:    os.Getenv("NOAA_TOKEN"),
		NOAABaseURL:  os.Getenv("NOAA_BASE_URL"),
		FetchTimeout: fetchTimeout,

		StartDate:       envOrDefault("START_DATE", "2000-01-01"),
		EndDate:         envOrDefault("END_DATE", "2023-12-31"),
		CenterLat:       centerLat,
		CenterLon:       centerLon,
		DeltaLat:        deltaLat,
		DeltaLon:        deltaLon,
		StationRadiusM:  radius,
		ObsCacheEntries: cacheEntries,

		RequestInterval: requestInterval,
		LowWaterDelay:   lowWaterDelay,
		LowWaterMark:    lowWaterMark,

		DetectMethod:  domain.Method(envOrDefault("DETECT_METHOD", string(domain.MethodStatisticalOutlier))),
		Contamination: contamination,
		RollingWindow: window,
		RandomSeed:    int64(seed),
		GDPCSVPath:    envOrDefault("GDP_CSV", "dataset/gdp.csv"),

		OutputDir: envOrDefault("OUTPUT_DIR", "dataset"),

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      splitNonEmpty(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSegmentTopic: envOrDefault("KAFKA_SEGMENT_TOPIC", "anomaly-segments"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.NOAAToken == "" {
		return errors.New("NOAA_TOKEN is required")
	}
	if _, err := domain.NewDateRange(c.StartDate, c.EndDate); err != nil {
		return fmt.Errorf("START_DATE/END_DATE: %w", err)
	}
	if c.DeltaLat < 0 || c.DeltaLon < 0 {
		return errors.New("DELTA_LAT and DELTA_LON must be non-negative")
	}
	if c.Contamination <= 0 || c.Contamination >= 1 {
		return errors.New("CONTAMINATION must be in (0, 1)")
	}
	if c.RollingWindow < 2 {
		return errors.New("ROLLING_WINDOW must be at least 2")
	}
	switch c.DetectMethod {
	case domain.MethodStatisticalOutlier, domain.MethodRollingBand:
	default:
		return fmt.Errorf("DETECT_METHOD %q is not a known method", c.DetectMethod)
	}
	if c.LowWaterMark < 0 {
		return errors.New("LOW_WATER_MARK must be non-negative")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	return nil
}

// DateRange returns the validated retrieval window.
func (c *Config) DateRange() domain.DateRange {
	r, _ := domain.NewDateRange(c.StartDate, c.EndDate)
	return r
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return f, nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
