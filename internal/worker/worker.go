// Package worker provides async transaction processing off the event
// bus. Each ingested transaction is persisted, scored against the
// vehicle's recent history, and the verdict published downstream.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuelguard/fuelguard/internal/alert"
	"github.com/fuelguard/fuelguard/internal/detect"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/metrics"
)

// Worker consumes ingested transactions from the EventBus and runs the
// detection pipeline on each.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	detector *detect.Detector
	policy   *alert.Policy

	snapshotTTL   time.Duration
	historyWindow time.Duration

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process.
	TenantIDs []string

	// SnapshotTTL bounds how stale the cached reference snapshot may
	// get before the worker reloads it from the repository.
	SnapshotTTL time.Duration

	// HistoryWindow bounds how far back vehicle history is loaded for
	// the cross-transaction rules.
	HistoryWindow time.Duration
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, detector *detect.Detector, policy *alert.Policy) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:           bus,
		repo:          repo,
		cache:         cache,
		detector:      detector,
		policy:        policy,
		snapshotTTL:   5 * time.Minute,
		historyWindow: 48 * time.Hour,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.SnapshotTTL > 0 {
		w.snapshotTTL = cfg.SnapshotTTL
	}
	if cfg.HistoryWindow > 0 {
		w.historyWindow = cfg.HistoryWindow
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processTransaction(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicTransactionIngested,
	)

	return nil
}

// processTransaction runs one ingested transaction through the
// pipeline: persist, score against history, store and publish the
// verdict.
func (w *Worker) processTransaction(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if tx.TenantID != "" {
		tenantID = tx.TenantID
	}

	slog.Debug("processing transaction",
		"transaction_id", tx.ID,
		"tenant_id", tenantID,
		"vehicle_id", tx.VehicleID,
	)

	if err := w.repo.SaveTransaction(ctx, tenantID, &tx); err != nil {
		slog.Error("failed to save transaction",
			"transaction_id", tx.ID,
			"error", err,
		)
		return err
	}

	snapshot, err := w.loadSnapshot(ctx, tenantID)
	if err != nil {
		slog.Error("failed to load reference snapshot",
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	history, err := w.repo.ListTransactionsByVehicle(ctx, tenantID, tx.VehicleID, tx.Timestamp.Add(-w.historyWindow))
	if err != nil {
		slog.Error("failed to load vehicle history",
			"vehicle_id", tx.VehicleID,
			"error", err,
		)
		return err
	}

	result, err := w.detector.Evaluate(ctx, tx, snapshot, history)
	if err != nil {
		slog.Error("detection failed",
			"transaction_id", tx.ID,
			"error", err,
		)
		return err
	}

	metrics.RecordResult(&result, metrics.SourceStream)

	anomaly := &domain.Anomaly{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		AnomalyResult: result,
		Status:        domain.ReviewPending,
	}
	if err := w.repo.SaveAnomaly(ctx, tenantID, anomaly); err != nil {
		slog.Error("failed to save detection result",
			"transaction_id", tx.ID,
			"error", err,
		)
	}

	resultPayload, _ := json.Marshal(anomaly)
	if result.IsAnomalous {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAnomalyDetected, resultPayload); err != nil {
			slog.Error("failed to publish anomaly",
				"transaction_id", tx.ID,
				"error", err,
			)
		}
	}

	if w.policy != nil {
		escalate, err := w.policy.ShouldAlert(&result)
		if err != nil {
			slog.Error("alert policy evaluation failed",
				"transaction_id", tx.ID,
				"error", err,
			)
		} else if escalate {
			metrics.AlertsPublished.Inc()
			if err := w.bus.Publish(ctx, tenantID, domain.TopicAlert, resultPayload); err != nil {
				slog.Error("failed to publish alert",
					"transaction_id", tx.ID,
					"error", err,
				)
			}
		}
	}

	slog.Info("transaction processed",
		"transaction_id", tx.ID,
		"tenant_id", tenantID,
		"risk_score", result.RiskScore,
		"severity", result.Severity,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// loadSnapshot returns the tenant's reference data, cache-first.
func (w *Worker) loadSnapshot(ctx context.Context, tenantID string) (*domain.RefSnapshot, error) {
	if w.cache != nil {
		snap, err := w.cache.GetSnapshot(ctx, tenantID)
		if err == nil && snap != nil {
			return snap, nil
		}
		if err != nil {
			slog.Warn("snapshot cache read failed",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	vehicles, err := w.repo.ListVehicles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	projects, err := w.repo.ListProjects(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	workers, err := w.repo.ListWorkers(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	snap := &domain.RefSnapshot{
		Vehicles: vehicles,
		Projects: projects,
		Workers:  workers,
	}

	if w.cache != nil {
		if err := w.cache.SetSnapshot(ctx, tenantID, snap, w.snapshotTTL); err != nil {
			slog.Warn("snapshot cache write failed",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	return snap, nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
