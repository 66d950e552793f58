// Package config loads the FuelGuard configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables, in ascending precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// EnvPrefix namespaces FuelGuard environment variables.
// FUELGUARD_SERVER_PORT maps to server.port.
const EnvPrefix = "FUELGUARD_"

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "FUELGUARD_CONFIG"

// DefaultConfigPaths lists where a config file is searched, first hit
// wins.
var DefaultConfigPaths = []string{
	"fuelguard.yaml",
	"fuelguard.yml",
	"/etc/fuelguard/config.yaml",
	"/etc/fuelguard/config.yml",
}

// sliceConfigPaths are keys that arrive from the environment as
// comma-separated strings but unmarshal as slices.
var sliceConfigPaths = []string{
	"detection.holidays",
	"tenants",
}

// Load builds the configuration from defaults, an optional YAML file,
// and FUELGUARD_-prefixed environment variables.
func Load() (*domain.Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadFile(path string) (*domain.Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(domain.DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Only the first underscore becomes a separator; section names are
	// single words while leaf keys keep their underscores.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		if s == ConfigPathEnvVar {
			return ""
		}
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &domain.Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the components cannot start with.
func Validate(cfg *domain.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", cfg.Server.Port)
	}

	switch cfg.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("repository.driver %q not supported", cfg.Repository.Driver)
	}

	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.type %q not supported", cfg.Cache.Type)
	}

	switch cfg.EventBus.Type {
	case "channel", "nats":
	default:
		return fmt.Errorf("eventbus.type %q not supported", cfg.EventBus.Type)
	}

	d := cfg.Detection
	if d.DoubleDipWindowMinutes <= 0 {
		return fmt.Errorf("detection.double_dip_window_minutes must be positive")
	}
	if d.PriceDeviationMultiple <= 0 {
		return fmt.Errorf("detection.price_deviation_multiple must be positive")
	}
	if d.MaxTravelSpeedKmh <= 0 {
		return fmt.Errorf("detection.max_travel_speed_kmh must be positive")
	}

	prev := 0
	for i, band := range d.SeverityBands {
		if band.UpTo <= prev && i > 0 {
			return fmt.Errorf("detection.severity_bands must be strictly ascending")
		}
		prev = band.UpTo
	}

	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// splitSliceFields converts comma-separated env values into slices for
// the known slice-typed keys.
func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
