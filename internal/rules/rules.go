// Package rules implements the fraud detection rule set.
//
// Each rule is a pure, stateless evaluator over one transaction plus
// its evaluation context. Rules are independent: no rule's firing
// suppresses another's evaluation, and a rule whose reference data does
// not resolve (unknown vehicle, project, or driver) abstains rather
// than firing, biasing toward precision when master data is incomplete.
package rules

import (
	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/refdata"
)

// Rule identifiers, listed in fixed priority order. Priority breaks
// ties between fired rules of equal weight when ordering reasons.
const (
	RuleOutOfHours       = "out_of_hours"
	RuleGeofence         = "geofence_violation"
	RuleTankCapacity     = "tank_capacity"
	RuleInactiveVehicle  = "inactive_vehicle"
	RuleDoubleDipping    = "double_dipping"
	RulePriceAnomaly     = "price_anomaly"
	RuleExcessFrequency  = "excess_frequency"
	RuleWeekendFueling   = "weekend_fueling"
	RuleImpossibleTravel = "impossible_travel"
)

// Context carries everything a rule may consult besides the transaction
// under test. It is built once per batch (or per single evaluation) and
// only read by evaluators.
type Context struct {
	// Index resolves vehicles, projects, and workers from the batch's
	// reference snapshot.
	Index *refdata.Index

	// History is the chronologically sorted set of all transactions
	// for the same vehicle in the batch, including the transaction
	// under test at position Pos. Sorted by timestamp ascending, ties
	// broken by transaction id.
	History []domain.Transaction
	Pos     int

	// Prices holds batch-level price statistics per provider and fuel
	// type for the price-anomaly rule.
	Prices *PriceStats

	Config domain.DetectionConfig
}

// Flag is a single fired rule: the points it contributes to the risk
// score and the human-readable reason reviewers see.
type Flag struct {
	RuleID string
	Reason string
	Weight int
}

// evalFunc evaluates one rule. It returns the reason string and whether
// the rule fired. Evaluators never error: every comparison has a
// defined outcome for well-formed input, including empty history and
// missing reference data.
type evalFunc func(tx *domain.Transaction, rc *Context) (string, bool)

// Rule couples a rule id with its evaluator and built-in weight.
type Rule struct {
	ID     string
	Weight int
	eval   evalFunc
}

// Evaluate runs the rule and, if it fired, returns a flag carrying the
// effective weight (deployment override or built-in).
func (r Rule) Evaluate(tx *domain.Transaction, rc *Context) *Flag {
	reason, fired := r.eval(tx, rc)
	if !fired {
		return nil
	}

	weight := r.Weight
	if override, ok := rc.Config.Weights[r.ID]; ok && override > 0 {
		weight = override
	}

	return &Flag{RuleID: r.ID, Reason: reason, Weight: weight}
}

// all is the closed rule set in priority order. The set is fixed domain
// knowledge; deployments tune weights and thresholds, never membership.
var all = []Rule{
	{ID: RuleOutOfHours, Weight: 20, eval: checkOutOfHours},
	{ID: RuleGeofence, Weight: 25, eval: checkGeofence},
	{ID: RuleTankCapacity, Weight: 30, eval: checkTankCapacity},
	{ID: RuleInactiveVehicle, Weight: 35, eval: checkInactiveVehicle},
	{ID: RuleDoubleDipping, Weight: 25, eval: checkDoubleDipping},
	{ID: RulePriceAnomaly, Weight: 15, eval: checkPriceAnomaly},
	{ID: RuleExcessFrequency, Weight: 10, eval: checkExcessFrequency},
	{ID: RuleWeekendFueling, Weight: 10, eval: checkWeekendFueling},
	{ID: RuleImpossibleTravel, Weight: 30, eval: checkImpossibleTravel},
}

// All returns the rule set in priority order.
func All() []Rule {
	return all
}

// Priority returns the priority index of a rule id, lower is higher
// priority. Unknown ids sort last.
func Priority(ruleID string) int {
	for i, r := range all {
		if r.ID == ruleID {
			return i
		}
	}
	return len(all)
}
