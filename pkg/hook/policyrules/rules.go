package policyrules

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/hookwarden/hookwarden/pkg/hook"
)

// Input is the structured value passed to the compiled Rego module as
// `input`: the call-site shape this domain needs.
type Input struct {
	Module   string `json:"module"`
	Function string `json:"function"`
	Args     []any  `json:"args"`
}

// Evaluator compiles one RuleSetSpec into a prepared Rego query and
// exposes it as a hook.SupplementalRule: a single compiled query reused
// across calls, since supplemental rules here apply globally rather than
// per tenant.
type Evaluator struct {
	name  string
	query rego.PreparedEvalQuery
}

// NewEvaluator compiles spec into a ready-to-use Evaluator.
func NewEvaluator(ctx context.Context, spec RuleSetSpec) (*Evaluator, error) {
	module, err := GenerateModule(spec)
	if err != nil {
		return nil, err
	}
	prepared, err := prepare(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("policyrules: preparing query for %q: %w", spec.Name, err)
	}
	return &Evaluator{name: spec.Name, query: prepared}, nil
}

// prepare compiles a Rego module into a PreparedEvalQuery against
// data.hookwarden.decision, compiled once and reused across every
// subsequent evaluation.
func prepare(ctx context.Context, module string) (rego.PreparedEvalQuery, error) {
	r := rego.New(
		rego.Query("data.hookwarden.decision"),
		rego.Module("hookwarden.rego", module),
	)
	return r.PrepareForEval(ctx)
}

// EvaluateCall implements hook.SupplementalRule. It fails open (permits,
// with an empty reason) on an evaluation error or a malformed result; the
// error itself is not reported. A misconfigured supplemental rule must
// never be able to silently deny every call.
func (e *Evaluator) EvaluateCall(module hook.ModuleId, fn string, args []any, kwargs map[string]any) (bool, string) {
	ctx := context.Background()
	input := Input{Module: string(module), Function: fn, Args: args}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil || len(results) == 0 {
		return true, ""
	}

	decision, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return true, ""
	}

	denied, _ := decision["deny"].(bool)
	if !denied {
		return true, ""
	}
	reason, _ := decision["reason"].(string)
	if reason == "" {
		reason = "supplemental rule " + e.name
	}
	return false, reason
}
