package domain

import (
	"time"
)

// Config holds the complete FuelGuard configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Detection DetectionConfig `koanf:"detection"`
	Alert     AlertConfig     `koanf:"alert"`

	Repository RepositoryConfig `koanf:"repository"`
	Cache      CacheConfig      `koanf:"cache"`
	EventBus   EventBusConfig   `koanf:"eventbus"`

	Logging LoggingConfig `koanf:"logging"`
	Tracing TracingConfig `koanf:"tracing"`

	// Tenants lists the tenant IDs the async worker subscribes to.
	Tenants []string `koanf:"tenants"`

	// Providers maps fuel-card provider names to credential sets.
	// Providers listed here are registered with the sync service.
	Providers map[string]map[string]string `koanf:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds

	// RateLimitPerMinute caps requests per tenant per minute.
	// Zero disables rate limiting.
	RateLimitPerMinute int `koanf:"rate_limit_per_minute"`
}

// SeverityBand maps a risk score range to a severity tier. Bands are
// ordered; a score belongs to the first band whose UpTo is >= score.
// Score 0 is never banded: it means no anomaly.
type SeverityBand struct {
	UpTo     int      `koanf:"up_to"`
	Severity Severity `koanf:"severity"`
}

// DetectionConfig holds the tunable thresholds of the rule set plus the
// rule weights and severity banding. All values are per-deployment
// overridable; evaluator logic never changes with tenant tuning.
type DetectionConfig struct {
	// DoubleDipWindowMinutes is the window within which a second
	// fueling of the same vehicle counts as double-dipping.
	DoubleDipWindowMinutes int `koanf:"double_dip_window_minutes"`

	// PriceDeviationMultiple is the number of sample standard
	// deviations from the provider/fuel-type mean beyond which a
	// price is anomalous.
	PriceDeviationMultiple float64 `koanf:"price_deviation_multiple"`

	// PriceMinSamples is the minimum same-provider, same-fuel-type
	// sample size required before price statistics are computed.
	PriceMinSamples int `koanf:"price_min_samples"`

	// FrequencyThreshold is the number of fuelings per vehicle in the
	// frequency window above which the excess-frequency rule fires.
	FrequencyThreshold int `koanf:"frequency_threshold"`

	// FrequencyWindowHours is the rolling window for the
	// excess-frequency rule.
	FrequencyWindowHours int `koanf:"frequency_window_hours"`

	// MaxTravelSpeedKmh is the plausible straight-line speed bound
	// for the impossible-travel rule.
	MaxTravelSpeedKmh float64 `koanf:"max_travel_speed_kmh"`

	// Holidays is an optional holiday calendar, dates in YYYY-MM-DD.
	Holidays []string `koanf:"holidays"`

	// Weights overrides rule weights by rule ID. Missing or
	// non-positive entries fall back to the built-in weights.
	Weights map[string]int `koanf:"weights"`

	// SeverityBands overrides the score-to-severity banding.
	SeverityBands []SeverityBand `koanf:"severity_bands"`
}

// AlertConfig controls which detection results escalate to the alert
// topic. Expression is a CEL expression over the detection result; see
// package alert for the available variables.
type AlertConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Expression string `koanf:"expression"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
}

// DefaultConfig returns the default single-node configuration:
// SQLite storage, in-memory cache, channel event bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			ReadTimeout:        30,
			WriteTimeout:       30,
			RateLimitPerMinute: 0,
		},
		Detection: DefaultDetectionConfig(),
		Alert: AlertConfig{
			Enabled:    true,
			Expression: "risk_score >= 50",
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./fuelguard.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fuelguard",
		},
		Tenants: []string{"default"},
	}
}

// DefaultDetectionConfig returns the stock rule thresholds and banding.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		DoubleDipWindowMinutes: 30,
		PriceDeviationMultiple: 2.0,
		PriceMinSamples:        3,
		FrequencyThreshold:     3,
		FrequencyWindowHours:   24,
		MaxTravelSpeedKmh:      150.0,
		SeverityBands: []SeverityBand{
			{UpTo: 24, Severity: SeverityLow},
			{UpTo: 49, Severity: SeverityMedium},
			{UpTo: 74, Severity: SeverityHigh},
			{UpTo: 100, Severity: SeverityCritical},
		},
	}
}

// DistributedConfig returns a configuration for multi-node deployments:
// PostgreSQL storage, Redis two-phase cache, NATS event bus.
func DistributedConfig() *Config {
	cfg := DefaultConfig()
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "fuelguard",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
