package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// ShellClient integrates the Shell Fleet Card API. Mock-backed.
// Shell exports no driver identity, so DriverID stays empty.
type ShellClient struct {
	creds Credentials
	rng   *rand.Rand
}

// NewShellClient creates a Shell client.
func NewShellClient(creds Credentials) *ShellClient {
	return &ShellClient{
		creds: creds,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the provider identifier.
func (c *ShellClient) Name() string { return domain.ProviderShell }

// ValidateCredentials checks the Shell Fleet username and password.
func (c *ShellClient) ValidateCredentials(ctx context.Context) error {
	for _, key := range []string{"username", "password"} {
		if c.creds[key] == "" {
			return fmt.Errorf("%w: shell requires %s", ErrAuth, key)
		}
	}
	return nil
}

// FetchTransactions returns transactions for the date range.
func (c *ShellClient) FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	cardID := c.creds["card_number"]
	if cardID == "" {
		cardID = "SHELL123"
	}

	n := 1 + c.rng.Intn(2)
	txs := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		liters := round2(35 + c.rng.Float64()*40)
		price := round2(18.5 + c.rng.Float64())
		txs = append(txs, domain.Transaction{
			ID:            fmt.Sprintf("SH-%06d", 100000+c.rng.Intn(900000)),
			Provider:      domain.ProviderShell,
			CardID:        cardID,
			VehicleID:     "DEF456",
			Timestamp:     randomTime(c.rng, from, to),
			Liters:        liters,
			PricePerLiter: price,
			TotalAmount:   round2(liters * price),
			FuelType:      "diesel",
			StationID:     fmt.Sprintf("SHELL-%04d", 1000+c.rng.Intn(9000)),
			StationLat:    59.33,
			StationLon:    18.07,
		})
	}

	return txs, nil
}
