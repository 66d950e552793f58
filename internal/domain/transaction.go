package domain

import (
	"time"
)

// Supported fuel-card providers.
const (
	ProviderOKQ8    = "okq8"
	ProviderPreem   = "preem"
	ProviderShell   = "shell"
	ProviderCircleK = "circlek"
)

// Transaction is a single fuel purchase reported by a card provider.
// Transactions are immutable inputs to the detection engine; upstream
// ingestion is responsible for schema validation (positive liters and
// price, well-formed timestamp) before detection runs.
type Transaction struct {
	ID       string `json:"transaction_id"`
	TenantID string `json:"tenant_id,omitempty"`
	Provider string `json:"provider"`
	CardID   string `json:"card_id"`

	VehicleID string `json:"vehicle_id"`
	DriverID  string `json:"driver_id,omitempty"`

	// Timestamp is the purchase time in UTC.
	Timestamp time.Time `json:"timestamp"`

	Liters        float64 `json:"liters"`
	PricePerLiter float64 `json:"price_per_liter"`
	TotalAmount   float64 `json:"total_amount"`
	FuelType      string  `json:"fuel_type"`

	StationID  string  `json:"station_id"`
	StationLat float64 `json:"station_lat"`
	StationLon float64 `json:"station_lon"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DetectRequest is the API payload for synchronous batch detection.
// It carries the transactions to score plus whole reference snapshots;
// the engine never fetches reference data itself.
type DetectRequest struct {
	Transactions []Transaction `json:"transactions"`
	Vehicles     []Vehicle     `json:"vehicles"`
	Projects     []Project     `json:"projects"`
	Workers      []Worker      `json:"workers"`
}

// DetectResponse is the API response for batch detection. Results holds
// one entry per well-formed input transaction, in input order; Errors
// reports transactions the engine rejected, without failing the batch.
type DetectResponse struct {
	Results []AnomalyResult   `json:"results"`
	Errors  []EvaluationError `json:"errors,omitempty"`
}
