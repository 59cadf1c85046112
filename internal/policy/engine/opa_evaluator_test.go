package engine

import (
	"context"
	"errors"
	"testing"

	devicedomain "ewaste-tracker/backend/internal/device/domain"
	"ewaste-tracker/backend/internal/policy/domain"
)

// stubPolicyRepo implements repository.Repository for tests.
type stubPolicyRepo struct {
	policy *domain.Policy
	err    error
}

func (s *stubPolicyRepo) Get(ctx context.Context) (*domain.Policy, error) {
	return s.policy, s.err
}

func TestOPAEvaluator_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewOPAEvaluator(ctx, nil)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	tests := []struct {
		target devicedomain.Status
		want   bool
	}{
		{devicedomain.StatusCollected, true},
		{devicedomain.StatusRecycled, true},
		{devicedomain.StatusDisposed, false},
		{devicedomain.Status("Shredded"), false},
		{devicedomain.Status(""), false},
	}
	for _, tt := range tests {
		got, err := e.AllowTransition(ctx, 1, tt.target)
		if err != nil {
			t.Fatalf("AllowTransition(%q): %v", tt.target, err)
		}
		if got != tt.want {
			t.Errorf("AllowTransition(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
	if err := e.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

const collectOnlyPolicy = `package ewaste.lifecycle

default allow := false

allow if input.new_status == "Collected"
`

func TestOPAEvaluator_OverridePolicy(t *testing.T) {
	ctx := context.Background()
	repo := &stubPolicyRepo{policy: &domain.Policy{Name: "collect_only.rego", Rules: collectOnlyPolicy}}
	e, err := NewOPAEvaluator(ctx, repo)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if ok, _ := e.AllowTransition(ctx, 1, devicedomain.StatusCollected); !ok {
		t.Error("Collected denied by override policy")
	}
	if ok, _ := e.AllowTransition(ctx, 1, devicedomain.StatusRecycled); ok {
		t.Error("Recycled allowed by override policy")
	}
}

func TestOPAEvaluator_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewOPAEvaluator(ctx, &stubPolicyRepo{err: errors.New("read failed")}); err == nil {
		t.Error("repository error: want error")
	}
	bad := &stubPolicyRepo{policy: &domain.Policy{Name: "bad.rego", Rules: "package ewaste.lifecycle\n\nallow if {"}}
	if _, err := NewOPAEvaluator(ctx, bad); err == nil {
		t.Error("unparseable policy: want error")
	}
}

func TestOPAEvaluator_NonBooleanDecision(t *testing.T) {
	ctx := context.Background()
	repo := &stubPolicyRepo{policy: &domain.Policy{
		Name:  "string.rego",
		Rules: "package ewaste.lifecycle\n\nallow := \"yes\"\n",
	}}
	e, err := NewOPAEvaluator(ctx, repo)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	if _, err := e.AllowTransition(ctx, 1, devicedomain.StatusCollected); err == nil {
		t.Error("non-boolean decision: want error")
	}
	if err := e.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck with non-boolean decision: want error")
	}
}
