package domain

import (
	"fmt"
	"time"
)

// Severity is the triage tier derived from a result's risk score.
type Severity string

const (
	SeverityNone     Severity = "None"
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// AnomalyResult is the detection engine's verdict for one transaction.
// The engine produces it exactly once per well-formed input transaction;
// the review workflow never patches these fields, a re-run produces a
// new result.
type AnomalyResult struct {
	TransactionID string   `json:"transaction_id"`
	VehicleID     string   `json:"vehicle_id,omitempty"`
	IsAnomalous   bool     `json:"is_anomalous"`
	Severity      Severity `json:"severity"`

	// RiskScore is 0-100, the capped sum of fired rule weights.
	RiskScore int `json:"risk_score"`

	// Reasons holds one human-readable string per fired rule, ordered
	// by descending rule weight.
	Reasons []string `json:"reasons"`

	// RuleIDs identifies the fired rules in the same order as Reasons.
	RuleIDs []string `json:"rule_ids,omitempty"`

	DetectedAt time.Time `json:"detected_at"`
}

// Review workflow statuses. Owned by the review subsystem, stored
// alongside the engine's write-once fields.
const (
	ReviewPending       = "pending"
	ReviewConfirmed     = "confirmed"
	ReviewFalsePositive = "false_positive"
	ReviewResolved      = "resolved"
)

// Anomaly is a persisted detection result plus the review-workflow
// fields attached by back-office reviewers after the fact.
type Anomaly struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id,omitempty"`

	AnomalyResult

	Reviewed    bool       `json:"reviewed"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes string     `json:"review_notes,omitempty"`
	Status      string     `json:"status"`
}

// AnomalyReview is the payload reviewers submit when triaging an anomaly.
type AnomalyReview struct {
	ReviewedBy  string `json:"reviewed_by"`
	ReviewNotes string `json:"review_notes,omitempty"`
	Status      string `json:"status"`
}

// AnomalyFilter narrows anomaly listings.
type AnomalyFilter struct {
	Severity Severity
	Status   string
	Reviewed *bool
	Since    time.Time
	Until    time.Time
	Offset   int
	Limit    int
}

// EvaluationError reports a transaction the engine excluded from a
// batch. One malformed record never fails detection for the rest.
type EvaluationError struct {
	Index         int    `json:"index"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

func (e EvaluationError) Error() string {
	return fmt.Sprintf("transaction %q (index %d): %s", e.TransactionID, e.Index, e.Reason)
}

// StatsSummary aggregates detection outcomes for reporting.
type StatsSummary struct {
	TotalTransactions int     `json:"total_transactions"`
	TotalAnomalies    int     `json:"total_anomalies"`
	AverageRiskScore  float64 `json:"average_risk_score"`
	CriticalAnomalies int     `json:"critical_anomalies"`
	HighAnomalies     int     `json:"high_anomalies"`
	MediumAnomalies   int     `json:"medium_anomalies"`
	LowAnomalies      int     `json:"low_anomalies"`
}
