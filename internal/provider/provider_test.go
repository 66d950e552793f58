package provider

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/bus"
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/repository"
)

func validCredentials(name string) Credentials {
	switch name {
	case domain.ProviderOKQ8:
		return Credentials{"client_id": "cid", "client_secret": "secret"}
	case domain.ProviderPreem:
		return Credentials{"api_key": "key"}
	case domain.ProviderShell:
		return Credentials{"username": "fleet", "password": "pw"}
	case domain.ProviderCircleK:
		return Credentials{"partner_id": "p1", "api_token": "tok"}
	}
	return nil
}

func TestClients(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	names := []string{
		domain.ProviderOKQ8,
		domain.ProviderPreem,
		domain.ProviderShell,
		domain.ProviderCircleK,
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			client, err := New(name, validCredentials(name))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if client.Name() != name {
				t.Errorf("name = %s", client.Name())
			}
			if err := client.ValidateCredentials(ctx); err != nil {
				t.Fatalf("ValidateCredentials failed: %v", err)
			}

			txs, err := client.FetchTransactions(ctx, from, to)
			if err != nil {
				t.Fatalf("FetchTransactions failed: %v", err)
			}
			if len(txs) == 0 {
				t.Fatal("expected at least one transaction")
			}

			for _, tx := range txs {
				if tx.ID == "" {
					t.Error("transaction must carry an id")
				}
				if tx.Provider != name {
					t.Errorf("provider = %s, want %s", tx.Provider, name)
				}
				if tx.Liters <= 0 || tx.PricePerLiter <= 0 {
					t.Errorf("implausible volume or price: %+v", tx)
				}
				if tx.Timestamp.Before(from) || tx.Timestamp.After(to) {
					t.Errorf("timestamp %v outside sync range", tx.Timestamp)
				}
			}
		})
	}
}

func TestClientCredentialValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name  string
		creds Credentials
	}{
		{domain.ProviderOKQ8, Credentials{"client_id": "cid"}},
		{domain.ProviderOKQ8, Credentials{"client_id": "invalid", "client_secret": "s"}},
		{domain.ProviderPreem, Credentials{}},
		{domain.ProviderPreem, Credentials{"api_key": "invalid"}},
		{domain.ProviderShell, Credentials{"username": "u"}},
		{domain.ProviderCircleK, Credentials{"partner_id": "p"}},
	}

	for _, tc := range cases {
		client, err := New(tc.name, tc.creds)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", tc.name, err)
		}
		if err := client.ValidateCredentials(ctx); err == nil {
			t.Errorf("%s: expected credential validation to fail for %v", tc.name, tc.creds)
		}
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("texaco", nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSyncService(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "fuelguard-sync-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	ingested := make(chan *domain.Message, 100)
	eventBus.Subscribe(ctx, tenantID, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		ingested <- msg
		return nil
	})
	synced := make(chan *domain.Message, 10)
	eventBus.Subscribe(ctx, tenantID, domain.TopicProviderSynced, func(ctx context.Context, msg *domain.Message) error {
		synced <- msg
		return nil
	})

	svc := NewService(repo, eventBus)
	svc.Register(NewOKQ8Client(validCredentials(domain.ProviderOKQ8)))

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	result, err := svc.Sync(ctx, tenantID, domain.ProviderOKQ8, from, to)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if result.Fetched == 0 || result.Created != result.Fetched {
		t.Errorf("unexpected result: %+v", result)
	}

	// Every created transaction is persisted and published.
	txs, err := repo.ListTransactionsByVehicle(ctx, tenantID, "ABC123", from.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListTransactionsByVehicle failed: %v", err)
	}
	if len(txs) != result.Created {
		t.Errorf("persisted %d transactions, want %d", len(txs), result.Created)
	}

	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a sync result on the bus")
	}

	// A second run over the same range skips the stored transactions
	// but may also fetch fresh mock ids; only assert the overlap.
	again, err := svc.Sync(ctx, tenantID, domain.ProviderOKQ8, from, to)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if again.Created+again.Skipped != again.Fetched {
		t.Errorf("created %d + skipped %d != fetched %d", again.Created, again.Skipped, again.Fetched)
	}
}

func TestSyncUnknownProvider(t *testing.T) {
	svc := NewService(nil, nil)
	if _, err := svc.Sync(context.Background(), "tenant-001", "texaco", time.Now(), time.Now()); err == nil {
		t.Error("expected error for unregistered provider")
	}
}

func TestSyncAllContinuesOnFailure(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "fuelguard-syncall-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	defer repo.Close()

	svc := NewService(repo, nil)
	svc.Register(NewPreemClient(Credentials{"api_key": "invalid"}))
	svc.Register(NewShellClient(validCredentials(domain.ProviderShell)))

	from := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	results := svc.SyncAll(context.Background(), "tenant-001", from, from.Add(time.Hour))

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var failed, succeeded int
	for _, r := range results {
		if r.Error != "" {
			failed++
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 1 {
		t.Errorf("failed = %d, succeeded = %d", failed, succeeded)
	}
}
