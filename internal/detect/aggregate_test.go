package detect

import (
	"reflect"
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/rules"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		weights []int
		want    int
	}{
		{"no flags", nil, 0},
		{"single rule", []int{30}, 30},
		{"sums weights", []int{30, 25, 20}, 75},
		{"caps at one hundred", []int{35, 30, 30, 25}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := make([]rules.Flag, len(tt.weights))
			for i, w := range tt.weights {
				flags[i] = rules.Flag{Weight: w}
			}
			if got := score(flags); got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeverityFor(t *testing.T) {
	bands := domain.DefaultDetectionConfig().SeverityBands

	tests := []struct {
		score int
		want  domain.Severity
	}{
		{0, domain.SeverityNone},
		{1, domain.SeverityLow},
		{24, domain.SeverityLow},
		{25, domain.SeverityMedium},
		{49, domain.SeverityMedium},
		{50, domain.SeverityHigh},
		{74, domain.SeverityHigh},
		{75, domain.SeverityCritical},
		{100, domain.SeverityCritical},
	}

	for _, tt := range tests {
		if got := severityFor(tt.score, bands); got != tt.want {
			t.Errorf("severityFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}

	// Missing banding falls back to the stock bands.
	if got := severityFor(60, nil); got != domain.SeverityHigh {
		t.Errorf("severityFor(60, nil) = %s, want High", got)
	}
}

func TestBuildResultOrdering(t *testing.T) {
	tx := domain.Transaction{ID: "T1", VehicleID: "V001"}
	now := time.Now().UTC()

	// Deliberately unordered, with a weight tie between double_dipping
	// and geofence_violation that priority must break.
	flags := []rules.Flag{
		{RuleID: rules.RuleWeekendFueling, Reason: "weekend", Weight: 10},
		{RuleID: rules.RuleDoubleDipping, Reason: "double dip", Weight: 25},
		{RuleID: rules.RuleInactiveVehicle, Reason: "inactive", Weight: 35},
		{RuleID: rules.RuleGeofence, Reason: "geofence", Weight: 25},
	}

	result := buildResult(&tx, flags, domain.DefaultDetectionConfig(), now)

	wantRules := []string{
		rules.RuleInactiveVehicle,
		rules.RuleGeofence,
		rules.RuleDoubleDipping,
		rules.RuleWeekendFueling,
	}
	if !reflect.DeepEqual(result.RuleIDs, wantRules) {
		t.Errorf("rule order = %v, want %v", result.RuleIDs, wantRules)
	}

	wantReasons := []string{"inactive", "geofence", "double dip", "weekend"}
	if !reflect.DeepEqual(result.Reasons, wantReasons) {
		t.Errorf("reason order = %v, want %v", result.Reasons, wantReasons)
	}

	if result.RiskScore != 95 {
		t.Errorf("risk score = %d, want 95", result.RiskScore)
	}
	if result.Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want Critical", result.Severity)
	}
	if !result.IsAnomalous {
		t.Error("expected anomalous result")
	}
}

func TestBuildResultClean(t *testing.T) {
	tx := domain.Transaction{ID: "T1", VehicleID: "V001"}

	result := buildResult(&tx, nil, domain.DefaultDetectionConfig(), time.Now().UTC())

	if result.IsAnomalous {
		t.Error("no flags must not be anomalous")
	}
	if result.RiskScore != 0 {
		t.Errorf("risk score = %d, want 0", result.RiskScore)
	}
	if result.Severity != domain.SeverityNone {
		t.Errorf("severity = %s, want None", result.Severity)
	}
	if result.Reasons == nil || len(result.Reasons) != 0 {
		t.Errorf("reasons = %v, want empty non-nil slice", result.Reasons)
	}
}
