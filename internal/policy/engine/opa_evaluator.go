package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/open-policy-agent/opa/v1/rego"

	devicedomain "ewaste-tracker/backend/internal/device/domain"
	"ewaste-tracker/backend/internal/policy/repository"
)

const allowQuery = "data.ewaste.lifecycle.allow"

// DefaultPolicy allows requests to move a device to Collected or Recycled.
// Disposed is only ever set by registration.
const DefaultPolicy = `package ewaste.lifecycle

default allow := false

allowed_targets := {"Collected", "Recycled"}

allow if {
	input.new_status in allowed_targets
}
`

// OPAEvaluator evaluates lifecycle transitions with an OPA Rego policy
// compiled once at construction.
type OPAEvaluator struct {
	query  rego.PreparedEvalQuery
	source string
}

// NewOPAEvaluator compiles the policy from repo, or DefaultPolicy when repo is
// nil or has none configured.
func NewOPAEvaluator(ctx context.Context, repo repository.Repository) (*OPAEvaluator, error) {
	name, rules := "lifecycle_default.rego", DefaultPolicy
	if repo != nil {
		p, err := repo.Get(ctx)
		if err != nil {
			return nil, err
		}
		if p != nil {
			name, rules = p.Name, p.Rules
		}
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Module(name, rules),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile lifecycle policy %s: %w", name, err)
	}
	slog.Info("policy: lifecycle policy compiled", "module", name)
	return &OPAEvaluator{query: pq, source: name}, nil
}

// AllowTransition evaluates the allow rule for the transition.
func (e *OPAEvaluator) AllowTransition(ctx context.Context, deviceID uint64, target devicedomain.Status) (bool, error) {
	input := map[string]interface{}{
		"device_id":  deviceID,
		"new_status": string(target),
	}
	return e.eval(ctx, input)
}

// HealthCheck evaluates a probe transition to verify the compiled policy
// still yields a decision. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.eval(ctx, map[string]interface{}{
		"device_id":  0,
		"new_status": string(devicedomain.StatusCollected),
	}); err != nil {
		return fmt.Errorf("lifecycle policy %s: %w", e.source, err)
	}
	return nil
}

func (e *OPAEvaluator) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
