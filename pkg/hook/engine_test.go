package hook

import (
	"errors"
	"testing"
)

// recordingAnalysis implements ImportObserver/CallObserver/ReturnObserver
// and records every event it sees.
type recordingAnalysis struct {
	name    string
	imports []string
	calls   []string
	returns []string
	panicOn string // event kind that triggers a panic, if non-empty
}

func (a *recordingAnalysis) Name() string { return a.name }

func (a *recordingAnalysis) OnImport(parent, name ModuleId) {
	if a.panicOn == "import" {
		panic("boom")
	}
	a.imports = append(a.imports, string(parent)+"->"+string(name))
}

func (a *recordingAnalysis) OnCall(module ModuleId, fn string, args []any, kwargs map[string]any) {
	if a.panicOn == "call" {
		panic("boom")
	}
	a.calls = append(a.calls, string(module)+"."+fn)
}

func (a *recordingAnalysis) OnReturn(module ModuleId, fn string, result any) {
	if a.panicOn == "return" {
		panic("boom")
	}
	a.returns = append(a.returns, string(module)+"."+fn)
}

// scenario 1: a learn run derives dependencies/events/allowlist exactly.
func TestEngine_LearnScenario1(t *testing.T) {
	e := NewEngine(Learn)

	if err := e.OnImport(nil, "leaf"); err != nil {
		t.Fatalf("OnImport: %v", err)
	}
	if err := e.OnCall("leaf", "f", nil, nil); err != nil {
		t.Fatalf("OnCall: %v", err)
	}
	e.OnReturn("leaf", "f", 7)

	report := e.BuildReport()

	if got := report.Dependencies[RootModule]; len(got) != 1 || got[0] != "leaf" {
		t.Fatalf("dependencies[__main__] = %v, want [leaf]", got)
	}

	wantEvents := map[string]bool{"call:f": false, "return:f": false}
	for _, tag := range report.Events["leaf"] {
		if _, ok := wantEvents[tag]; ok {
			wantEvents[tag] = true
		}
	}
	for tag, seen := range wantEvents {
		if !seen {
			t.Errorf("events[leaf] missing %q, got %v", tag, report.Events["leaf"])
		}
	}

	if got := report.Allowlist[RootModule]; len(got) != 1 || got[0] != "leaf" {
		t.Errorf("allowlist[__main__] = %v, want [leaf]", got)
	}
	if got := report.Allowlist["leaf"]; len(got) != 1 || got[0] != "f" {
		t.Errorf("allowlist[leaf] = %v, want [f]", got)
	}
}

// scenario 2 / P4: a round trip with the learned allowlist succeeds with
// no denials.
func TestEngine_EnforceRoundTrip(t *testing.T) {
	e := NewEngine(Enforce)
	e.LoadAllowlist(map[ModuleId][]string{
		RootModule: {"leaf"},
		"leaf":     {"f"},
	})

	if err := e.OnImport(nil, "leaf"); err != nil {
		t.Fatalf("OnImport: unexpected denial %v", err)
	}
	if err := e.OnCall("leaf", "f", nil, nil); err != nil {
		t.Fatalf("OnCall: unexpected denial %v", err)
	}
	e.OnReturn("leaf", "f", 7)
}

// scenario 3 / P5: removing an allowlist entry forces a denial.
func TestEngine_EnforceDeniesMissingCall(t *testing.T) {
	e := NewEngine(Enforce)
	e.LoadAllowlist(map[ModuleId][]string{
		RootModule: {"leaf"},
		"leaf":     {},
	})

	if err := e.OnImport(nil, "leaf"); err != nil {
		t.Fatalf("OnImport: unexpected denial %v", err)
	}

	err := e.OnCall("leaf", "f", nil, nil)
	var denied *PolicyDenied
	if !errors.As(err, &denied) {
		t.Fatalf("OnCall: expected PolicyDenied, got %v", err)
	}
	if denied.Kind != DenialCall || denied.Module != "leaf" || denied.Name != "f" {
		t.Errorf("unexpected denial shape: %+v", denied)
	}
}

// scenario 4: a root-level import absent from the allowlist is denied,
// even though its parent is the root module.
func TestEngine_EnforceDeniesRootLevelImport(t *testing.T) {
	e := NewEngine(Enforce)
	e.LoadAllowlist(map[ModuleId][]string{
		RootModule: {},
	})

	err := e.OnImport(nil, "forbidden")
	var denied *PolicyDenied
	if !errors.As(err, &denied) {
		t.Fatalf("OnImport: expected PolicyDenied, got %v", err)
	}
	if denied.Kind != DenialImport || denied.Parent != RootModule || denied.Name != "forbidden" {
		t.Errorf("unexpected denial shape: %+v", denied)
	}
}

// scenario 6 / P2: an analysis that panics on every on_call does not
// alter the dependency graph or event set, and the call still proceeds.
func TestEngine_AnalysisPanicIsIsolated(t *testing.T) {
	bad := &recordingAnalysis{name: "bad", panicOn: "call"}
	good := &recordingAnalysis{name: "good"}

	e := NewEngine(Learn, WithAnalyses(bad, good))

	if err := e.OnImport(nil, "leaf"); err != nil {
		t.Fatalf("OnImport: %v", err)
	}
	if err := e.OnCall("leaf", "f", nil, nil); err != nil {
		t.Fatalf("OnCall: %v", err)
	}
	e.OnReturn("leaf", "f", 7)

	report := e.BuildReport()
	if got := report.Allowlist["leaf"]; len(got) != 1 || got[0] != "f" {
		t.Fatalf("graph/event state corrupted by analysis panic: allowlist[leaf] = %v", got)
	}
	if len(good.calls) != 1 || good.calls[0] != "leaf.f" {
		t.Errorf("well-behaved analysis did not observe the call: %v", good.calls)
	}
}

// P7: no event is emitted for activity the engine itself triggers while
// already processing an event (reentrancy suppression).
func TestEngine_ReentrancySuppressesNestedEvents(t *testing.T) {
	rec := &reentrantAnalysis{}
	e := NewEngine(Learn, WithAnalyses(rec))
	rec.engine = e

	if err := e.OnCall("leaf", "f", nil, nil); err != nil {
		t.Fatalf("OnCall: %v", err)
	}
	if rec.nestedErr != nil {
		t.Fatalf("nested OnCall unexpectedly errored: %v", rec.nestedErr)
	}

	for _, tag := range e.graph.Events("leaf") {
		if tag == "call:nested" {
			t.Errorf("nested on_call fired while already processing an event: events = %v", e.graph.Events("leaf"))
		}
	}
}

// reentrantAnalysis calls back into the engine from inside OnCall, the
// exact recursive pattern the reentrancy flag exists to suppress.
type reentrantAnalysis struct {
	engine    *Engine
	nestedErr error
}

func (a *reentrantAnalysis) Name() string { return "reentrant" }

func (a *reentrantAnalysis) OnCall(module ModuleId, fn string, args []any, kwargs map[string]any) {
	a.nestedErr = a.engine.OnCall("leaf", "nested", nil, nil)
}
