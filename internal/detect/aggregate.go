package detect

import (
	"sort"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/rules"
)

// maxRiskScore caps the summed rule weights.
const maxRiskScore = 100

// score sums the fired rule weights, capped at maxRiskScore.
func score(flags []rules.Flag) int {
	total := 0
	for _, f := range flags {
		total += f.Weight
	}
	if total > maxRiskScore {
		return maxRiskScore
	}
	return total
}

// severityFor maps a risk score onto the configured severity bands. A
// zero score is always SeverityNone regardless of banding.
func severityFor(riskScore int, bands []domain.SeverityBand) domain.Severity {
	if riskScore <= 0 {
		return domain.SeverityNone
	}

	if len(bands) == 0 {
		bands = domain.DefaultDetectionConfig().SeverityBands
	}
	for _, b := range bands {
		if riskScore <= b.UpTo {
			return b.Severity
		}
	}
	return bands[len(bands)-1].Severity
}

// orderFlags sorts fired rules by descending weight, breaking ties by
// rule priority, so the strongest signal leads the reason list.
func orderFlags(flags []rules.Flag) {
	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Weight != flags[j].Weight {
			return flags[i].Weight > flags[j].Weight
		}
		return rules.Priority(flags[i].RuleID) < rules.Priority(flags[j].RuleID)
	})
}

// buildResult assembles the verdict for one transaction from its fired
// rules. Reasons and RuleIDs stay index-aligned.
func buildResult(tx *domain.Transaction, flags []rules.Flag, cfg domain.DetectionConfig, now time.Time) domain.AnomalyResult {
	orderFlags(flags)

	riskScore := score(flags)

	result := domain.AnomalyResult{
		TransactionID: tx.ID,
		VehicleID:     tx.VehicleID,
		IsAnomalous:   riskScore > 0,
		Severity:      severityFor(riskScore, cfg.SeverityBands),
		RiskScore:     riskScore,
		Reasons:       make([]string, 0, len(flags)),
		DetectedAt:    now,
	}

	for _, f := range flags {
		result.Reasons = append(result.Reasons, f.Reason)
		result.RuleIDs = append(result.RuleIDs, f.RuleID)
	}

	return result
}
