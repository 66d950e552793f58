package provider

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// OKQ8Client integrates OKQ8's fleet card API. The production API is
// OAuth2-based; this client runs against mock data until the partner
// agreement lands.
type OKQ8Client struct {
	creds Credentials
	rng   *rand.Rand
}

// NewOKQ8Client creates an OKQ8 client.
func NewOKQ8Client(creds Credentials) *OKQ8Client {
	return &OKQ8Client{
		creds: creds,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the provider identifier.
func (c *OKQ8Client) Name() string { return domain.ProviderOKQ8 }

// ValidateCredentials checks the OAuth2 client credentials.
func (c *OKQ8Client) ValidateCredentials(ctx context.Context) error {
	for _, key := range []string{"client_id", "client_secret"} {
		if c.creds[key] == "" {
			return fmt.Errorf("%w: okq8 requires %s", ErrAuth, key)
		}
	}
	if c.creds["client_id"] == "invalid" {
		return fmt.Errorf("%w: okq8 rejected client_id", ErrAuth)
	}
	return nil
}

// FetchTransactions returns transactions for the date range.
func (c *OKQ8Client) FetchTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	cardID := c.creds["card_id"]
	if cardID == "" {
		cardID = "1234567890"
	}

	n := 1 + c.rng.Intn(3)
	txs := make([]domain.Transaction, 0, n)
	for i := 0; i < n; i++ {
		liters := round2(30 + c.rng.Float64()*50)
		price := round2(17.5 + c.rng.Float64()*2)
		txs = append(txs, domain.Transaction{
			ID:            fmt.Sprintf("OKQ8-%05d", 10000+c.rng.Intn(90000)),
			Provider:      domain.ProviderOKQ8,
			CardID:        cardID,
			VehicleID:     "ABC123",
			DriverID:      "W-ERIK",
			Timestamp:     randomTime(c.rng, from, to),
			Liters:        liters,
			PricePerLiter: price,
			TotalAmount:   round2(liters * price),
			FuelType:      "diesel",
			StationID:     fmt.Sprintf("OKQ8-%03d", 100+c.rng.Intn(900)),
			StationLat:    59.3293 + (c.rng.Float64()-0.5)*0.2,
			StationLon:    18.0686 + (c.rng.Float64()-0.5)*0.2,
		})
	}

	return txs, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func randomTime(rng *rand.Rand, from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(rng.Int63n(int64(span)))).UTC()
}
