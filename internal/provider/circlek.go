package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// CircleKClient integrates the Circle K Partner API. Mock-backed.
type CircleKClient struct {
	creds Credentials
	rng   *rand.Rand
}

// NewCircleKClient creates a Circle K client.
func NewCircleKClient(creds Credentials) *CircleKClient {
	return &CircleKClient{
		creds: creds,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the provider identifier.
func (c *CircleKClient) Name() string { return domain.ProviderCircleK }

// ValidateCredentials checks the partner id and API token.
func (c *CircleKClient) ValidateCredentials(ctx context.Context) error {
	if c.creds["partner_id"] == "" || c.creds["api_token"] == "" {
		return fmt.Errorf("%w: circlek requires partner_id and api_token", ErrAuth)
	}
	return nil
}

// FetchTransactions returns transactions for the date range.
func (c *CircleKClient) FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	cardID := c.creds["fleet_card"]
	if cardID == "" {
		cardID = "CK987654"
	}

	n := 1 + c.rng.Intn(3)
	txs := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		liters := round2(45 + c.rng.Float64()*40)
		price := round2(18.2 + c.rng.Float64()*1.6)
		txs = append(txs, domain.Transaction{
			ID:            fmt.Sprintf("CK-%06d", 100000+c.rng.Intn(900000)),
			Provider:      domain.ProviderCircleK,
			CardID:        cardID,
			VehicleID:     "GHI789",
			Timestamp:     randomTime(c.rng, from, to),
			Liters:        liters,
			PricePerLiter: price,
			TotalAmount:   round2(liters * price),
			FuelType:      "diesel",
			StationID:     fmt.Sprintf("CK-%04d", 1000+c.rng.Intn(9000)),
			StationLat:    59.32,
			StationLon:    18.08,
		})
	}

	return txs, nil
}
