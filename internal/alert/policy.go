// Package alert decides which detection results escalate to the alert
// topic. The escalation policy is a CEL expression evaluated over each
// result, so operations teams can tune paging thresholds without a
// redeploy.
package alert

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// DefaultExpression escalates High and Critical results.
const DefaultExpression = "risk_score >= 50"

// Policy is a compiled escalation expression. Safe for concurrent use.
type Policy struct {
	enabled bool
	expr    string
	program cel.Program
}

// New compiles an escalation policy. An empty expression falls back to
// DefaultExpression. Compilation errors surface here, at startup, not
// per evaluation.
func New(cfg domain.AlertConfig) (*Policy, error) {
	expr := cfg.Expression
	if expr == "" {
		expr = DefaultExpression
	}

	env, err := cel.NewEnv(
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("severity", cel.StringType),
		cel.Variable("is_anomalous", cel.BoolType),
		cel.Variable("vehicle_id", cel.StringType),
		cel.Variable("rule_ids", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile alert expression %q: %w", expr, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("alert expression %q must return bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build alert program: %w", err)
	}

	return &Policy{enabled: cfg.Enabled, expr: expr, program: program}, nil
}

// Expression returns the policy's source expression.
func (p *Policy) Expression() string {
	return p.expr
}

// ShouldAlert reports whether a detection result escalates. A disabled
// policy never escalates.
func (p *Policy) ShouldAlert(result *domain.AnomalyResult) (bool, error) {
	if !p.enabled {
		return false, nil
	}

	ruleIDs := result.RuleIDs
	if ruleIDs == nil {
		ruleIDs = []string{}
	}

	out, _, err := p.program.Eval(map[string]any{
		"risk_score":   result.RiskScore,
		"severity":     string(result.Severity),
		"is_anomalous": result.IsAnomalous,
		"vehicle_id":   result.VehicleID,
		"rule_ids":     ruleIDs,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate alert expression: %w", err)
	}

	escalate, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("alert expression returned %T, expected bool", out.Value())
	}
	return escalate, nil
}
