package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// PreemClient integrates the Preem Partner API. Mock-backed.
type PreemClient struct {
	creds Credentials
	rng   *rand.Rand
}

// NewPreemClient creates a Preem client.
func NewPreemClient(creds Credentials) *PreemClient {
	return &PreemClient{
		creds: creds,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the provider identifier.
func (c *PreemClient) Name() string { return domain.ProviderPreem }

// ValidateCredentials checks the Preem API key.
func (c *PreemClient) ValidateCredentials(ctx context.Context) error {
	if c.creds["api_key"] == "" {
		return fmt.Errorf("%w: preem requires api_key", ErrAuth)
	}
	if c.creds["api_key"] == "invalid" {
		return fmt.Errorf("%w: preem rejected api_key", ErrAuth)
	}
	return nil
}

// FetchTransactions returns transactions for the date range.
func (c *PreemClient) FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	cardID := c.creds["card_number"]
	if cardID == "" {
		cardID = "9876543210"
	}

	n := 1 + c.rng.Intn(2)
	txs := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		liters := round2(40 + c.rng.Float64()*50)
		price := round2(18 + c.rng.Float64()*2)
		txs = append(txs, domain.Transaction{
			ID:            fmt.Sprintf("PREEM-%05d", 10000+c.rng.Intn(90000)),
			Provider:      domain.ProviderPreem,
			CardID:        cardID,
			VehicleID:     "XYZ789",
			DriverID:      "W-ANNA",
			Timestamp:     randomTime(c.rng, from, to),
			Liters:        liters,
			PricePerLiter: price,
			TotalAmount:   round2(liters * price),
			FuelType:      "diesel",
			StationID:     fmt.Sprintf("PREEM-%03d", 100+c.rng.Intn(900)),
			StationLat:    57.7089,
			StationLon:    11.9746,
		})
	}

	return txs, nil
}
