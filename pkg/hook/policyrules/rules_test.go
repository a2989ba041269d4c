package policyrules

import (
	"context"
	"testing"

	"github.com/hookwarden/hookwarden/pkg/hook"
)

func TestEvaluator_DeniesOnMatchingRule(t *testing.T) {
	spec := RuleSetSpec{
		Name: "test-rules",
		Rules: []CallDenialSpec{
			{Module: "leaf", Function: "f", ArgIndex: -1},
		},
	}
	eval, err := NewEvaluator(context.Background(), spec)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	ok, reason := eval.EvaluateCall(hook.ModuleId("leaf"), "f", nil, nil)
	if ok {
		t.Fatalf("expected the rule to deny leaf.f, got permit")
	}
	if reason == "" {
		t.Errorf("expected a non-empty denial reason")
	}
}

func TestEvaluator_PermitsUnmatchedCall(t *testing.T) {
	spec := RuleSetSpec{
		Name: "test-rules",
		Rules: []CallDenialSpec{
			{Module: "leaf", Function: "f"},
		},
	}
	eval, err := NewEvaluator(context.Background(), spec)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	ok, _ := eval.EvaluateCall(hook.ModuleId("leaf"), "g", nil, nil)
	if !ok {
		t.Fatalf("expected leaf.g to be permitted, got denial")
	}
}
