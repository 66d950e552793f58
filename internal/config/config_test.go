package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fuelguard/fuelguard/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Repository.Driver)
	}
	if cfg.Detection.DoubleDipWindowMinutes != 30 {
		t.Errorf("double dip window = %d, want 30", cfg.Detection.DoubleDipWindowMinutes)
	}
	if len(cfg.Detection.SeverityBands) != 4 {
		t.Errorf("severity bands = %d, want 4", len(cfg.Detection.SeverityBands))
	}
	if cfg.Alert.Expression != "risk_score >= 50" {
		t.Errorf("alert expression = %q", cfg.Alert.Expression)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fuelguard.yaml")
	yaml := `
server:
  port: 9090
detection:
  frequency_threshold: 5
  holidays:
    - "2025-06-20"
    - "2025-12-25"
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Detection.FrequencyThreshold != 5 {
		t.Errorf("frequency threshold = %d, want 5", cfg.Detection.FrequencyThreshold)
	}
	if len(cfg.Detection.Holidays) != 2 {
		t.Errorf("holidays = %v, want two entries", cfg.Detection.Holidays)
	}
	// Untouched keys keep their defaults.
	if cfg.Detection.DoubleDipWindowMinutes != 30 {
		t.Errorf("double dip window = %d, want default 30", cfg.Detection.DoubleDipWindowMinutes)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("FUELGUARD_SERVER_PORT", "7070")
	t.Setenv("FUELGUARD_DETECTION_MAX_TRAVEL_SPEED_KMH", "120")
	t.Setenv("FUELGUARD_DETECTION_HOLIDAYS", "2025-06-20, 2025-12-25")
	t.Setenv("FUELGUARD_TENANTS", "acme, globex")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Detection.MaxTravelSpeedKmh != 120 {
		t.Errorf("max speed = %v, want 120", cfg.Detection.MaxTravelSpeedKmh)
	}
	want := []string{"2025-06-20", "2025-12-25"}
	if len(cfg.Detection.Holidays) != 2 || cfg.Detection.Holidays[0] != want[0] || cfg.Detection.Holidays[1] != want[1] {
		t.Errorf("holidays = %v, want %v", cfg.Detection.Holidays, want)
	}
	if len(cfg.Tenants) != 2 || cfg.Tenants[0] != "acme" || cfg.Tenants[1] != "globex" {
		t.Errorf("tenants = %v, want [acme globex]", cfg.Tenants)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{"bad port", func(c *domain.Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *domain.Config) { c.Repository.Driver = "oracle" }},
		{"bad cache", func(c *domain.Config) { c.Cache.Type = "memcached" }},
		{"bad bus", func(c *domain.Config) { c.EventBus.Type = "kafka" }},
		{"bad window", func(c *domain.Config) { c.Detection.DoubleDipWindowMinutes = -1 }},
		{"bad deviation", func(c *domain.Config) { c.Detection.PriceDeviationMultiple = 0 }},
		{"unordered bands", func(c *domain.Config) {
			c.Detection.SeverityBands[1].UpTo = c.Detection.SeverityBands[0].UpTo
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Validate(domain.DefaultConfig()); err != nil {
		t.Errorf("default config must validate, got %v", err)
	}
	if err := Validate(domain.DistributedConfig()); err != nil {
		t.Errorf("distributed config must validate, got %v", err)
	}
}
