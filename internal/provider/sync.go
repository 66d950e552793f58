package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/repository"
)

// SyncResult records the outcome of one provider sync run.
type SyncResult struct {
	Provider    string    `json:"provider"`
	TenantID    string    `json:"tenant_id"`
	Fetched     int       `json:"fetched"`
	Created     int       `json:"created"`
	Skipped     int       `json:"skipped"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

// Service pulls provider transactions into the repository and hands
// the new ones to the event bus so the worker scores them.
type Service struct {
	repo    domain.Repository
	bus     domain.EventBus
	clients map[string]Client
}

// NewService creates a provider sync service.
func NewService(repo domain.Repository, bus domain.EventBus) *Service {
	return &Service{
		repo:    repo,
		bus:     bus,
		clients: make(map[string]Client),
	}
}

// Register adds a provider client. A later registration for the same
// provider replaces the earlier one.
func (s *Service) Register(client Client) {
	s.clients[client.Name()] = client
}

// Providers returns the registered provider names.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	return names
}

// Sync pulls one provider's transactions for the date range. Already
// imported transactions are skipped; new ones are persisted and
// published for async detection.
func (s *Service) Sync(ctx context.Context, tenantID string, name string, from, to time.Time) (*SyncResult, error) {
	client, ok := s.clients[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	result := &SyncResult{
		Provider:  name,
		TenantID:  tenantID,
		StartedAt: time.Now().UTC(),
	}

	slog.Info("provider sync started",
		"provider", name,
		"tenant_id", tenantID,
		"from", from,
		"to", to,
	)

	txs, err := client.FetchTransactions(ctx, from, to)
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now().UTC()
		s.publishResult(ctx, tenantID, result)
		return result, fmt.Errorf("fetch from %s failed: %w", name, err)
	}
	result.Fetched = len(txs)

	for i := range txs {
		tx := &txs[i]
		tx.TenantID = tenantID

		_, err := s.repo.GetTransaction(ctx, tenantID, tx.ID)
		if err == nil {
			result.Skipped++
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			result.Error = err.Error()
			result.CompletedAt = time.Now().UTC()
			s.publishResult(ctx, tenantID, result)
			return result, fmt.Errorf("duplicate check failed: %w", err)
		}

		if err := s.repo.SaveTransaction(ctx, tenantID, tx); err != nil {
			result.Error = err.Error()
			result.CompletedAt = time.Now().UTC()
			s.publishResult(ctx, tenantID, result)
			return result, fmt.Errorf("save transaction %s failed: %w", tx.ID, err)
		}
		result.Created++

		if s.bus != nil {
			payload, _ := json.Marshal(tx)
			if err := s.bus.Publish(ctx, tenantID, domain.TopicTransactionIngested, payload); err != nil {
				slog.Error("failed to publish synced transaction",
					"transaction_id", tx.ID,
					"error", err,
				)
			}
		}
	}

	result.CompletedAt = time.Now().UTC()
	s.publishResult(ctx, tenantID, result)

	slog.Info("provider sync completed",
		"provider", name,
		"tenant_id", tenantID,
		"fetched", result.Fetched,
		"created", result.Created,
		"skipped", result.Skipped,
	)

	return result, nil
}

// SyncAll syncs every registered provider. One provider's failure does
// not stop the others.
func (s *Service) SyncAll(ctx context.Context, tenantID string, from, to time.Time) []SyncResult {
	results := make([]SyncResult, 0, len(s.clients))
	for name := range s.clients {
		result, err := s.Sync(ctx, tenantID, name, from, to)
		if err != nil {
			slog.Error("provider sync failed",
				"provider", name,
				"tenant_id", tenantID,
				"error", err,
			)
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results
}

func (s *Service) publishResult(ctx context.Context, tenantID string, result *SyncResult) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, tenantID, domain.TopicProviderSynced, payload); err != nil {
		slog.Error("failed to publish sync result",
			"provider", result.Provider,
			"error", err,
		)
	}
}
