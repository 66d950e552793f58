// FuelGuard - fuel-card fraud detection for vehicle fleets.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fuelguard/fuelguard/internal/alert"
	"github.com/fuelguard/fuelguard/internal/api"
	"github.com/fuelguard/fuelguard/internal/bus"
	"github.com/fuelguard/fuelguard/internal/cache"
	"github.com/fuelguard/fuelguard/internal/config"
	"github.com/fuelguard/fuelguard/internal/detect"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/provider"
	"github.com/fuelguard/fuelguard/internal/repository"
	"github.com/fuelguard/fuelguard/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting fuelguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"tenants", len(cfg.Tenants),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize detection engine
	detector := detect.New(cfg.Detection, logger)
	slog.Info("detection engine initialized",
		"double_dip_window_minutes", cfg.Detection.DoubleDipWindowMinutes,
		"max_travel_speed_kmh", cfg.Detection.MaxTravelSpeedKmh,
	)

	// Initialize alert policy
	policy, err := alert.New(cfg.Alert)
	if err != nil {
		slog.Error("failed to compile alert policy", "error", err)
		os.Exit(1)
	}
	slog.Info("alert policy initialized",
		"enabled", cfg.Alert.Enabled,
		"expression", policy.Expression(),
	)

	// Register fuel-card providers from configuration
	syncSvc := provider.NewService(repo, busImpl)
	for name, creds := range cfg.Providers {
		client, err := provider.New(name, provider.Credentials(creds))
		if err != nil {
			slog.Error("failed to create provider client", "provider", name, "error", err)
			os.Exit(1)
		}
		if err := client.ValidateCredentials(ctx); err != nil {
			slog.Error("provider credentials rejected", "provider", name, "error", err)
			os.Exit(1)
		}
		syncSvc.Register(client)
		slog.Info("provider registered", "provider", name)
	}

	// Start the async detection worker
	asyncWorker := worker.NewWorker(busImpl, repo, cacheImpl, detector, policy)
	workerCfg := worker.Config{
		TenantIDs:   cfg.Tenants,
		SnapshotTTL: cfg.Cache.LocalTTL,
	}
	if err := asyncWorker.Start(workerCfg); err != nil {
		slog.Error("failed to start async worker", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, detector, syncSvc, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("fuelguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := asyncWorker.Stop(); err != nil {
		slog.Error("failed to stop async worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fuelguard shutdown complete")
}

func newLogger(w io.Writer, cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FuelGuard - fuel-card fraud detection")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /detect                  - Score a batch of transactions")
	fmt.Println("    POST /transactions            - Ingest a transaction for async scoring")
	fmt.Println("    GET  /transactions/{id}       - Get transaction by ID")
	fmt.Println("    PUT  /vehicles                - Upsert fleet vehicles")
	fmt.Println("    PUT  /projects                - Upsert projects")
	fmt.Println("    PUT  /workers                 - Upsert workers")
	fmt.Println("    GET  /anomalies               - List detected anomalies")
	fmt.Println("    POST /anomalies/{id}/review   - Review an anomaly")
	fmt.Println("    POST /providers/{name}/sync   - Pull provider transactions")
	fmt.Println("    GET  /stats                   - Detection statistics")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println("    GET  /metrics                 - Prometheus metrics")
	fmt.Println()
}
