package hook

import (
	"context"
	"errors"
	"testing"
)

// scenario 5 / P3: wrapping the same method twice (through the class
// export's lazy resolution) returns the identical proxy.
func TestClassExport_MethodIdentity(t *testing.T) {
	e := NewEngine(Learn)
	factory := NewWrapperFactory(e)

	calls := 0
	raw := Callable(func(args []any, kwargs map[string]any) (any, error) {
		calls++
		return nil, nil
	})

	ce := NewClassExport(factory, "shapes", "C", map[string]Callable{"m": raw})

	first, ok := ce.Method("m")
	if !ok {
		t.Fatalf("Method(m) not found")
	}
	second, ok := ce.Method("m")
	if !ok {
		t.Fatalf("Method(m) not found on second access")
	}
	if first != second {
		t.Errorf("Method(m) returned different proxies across accesses")
	}

	if _, err := first.Call(nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := second.Call(nil, nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if calls != 2 {
		t.Errorf("original invoked %d times, want 2", calls)
	}
}

// P3: wrapping an already-wrapped callable returns the same proxy rather
// than double-wrapping it.
func TestWrapperFactory_WrapIdempotent(t *testing.T) {
	e := NewEngine(Learn)
	factory := NewWrapperFactory(e)

	raw := Callable(func(args []any, kwargs map[string]any) (any, error) { return nil, nil })
	wc, err := factory.Wrap("leaf", "f", raw)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	again, err := factory.Wrap("leaf", "f", wc)
	if err != nil {
		t.Fatalf("Wrap on already-wrapped: %v", err)
	}
	if again != wc {
		t.Errorf("Wrap on an already-wrapped callable returned a different proxy")
	}
}

// Events fire around a synchronous call, and a policy denial aborts the
// call before the original runs.
func TestWrapperFactory_EnforceDenialAbortsCall(t *testing.T) {
	e := NewEngine(Enforce)
	e.LoadAllowlist(map[ModuleId][]string{"leaf": {}})
	factory := NewWrapperFactory(e)

	invoked := false
	raw := Callable(func(args []any, kwargs map[string]any) (any, error) {
		invoked = true
		return nil, nil
	})
	wc, err := factory.Wrap("leaf", "f", raw)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	_, callErr := wc.Call(nil, nil)
	var denied *PolicyDenied
	if !errors.As(callErr, &denied) {
		t.Fatalf("Call: expected PolicyDenied, got %v", callErr)
	}
	if invoked {
		t.Errorf("original callable was invoked despite a policy denial")
	}
}

// Cancellation: no on_return is emitted for a suspending callable that
// returns an error.
func TestWrapperFactory_SuspendingCancellationSuppressesReturn(t *testing.T) {
	rec := &recordingAnalysis{name: "rec"}
	e := NewEngine(Learn, WithAnalyses(rec))
	factory := NewWrapperFactory(e)

	boom := errors.New("boom")
	raw := SuspendingCallable(func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		return nil, boom
	})
	wc, err := factory.Wrap("leaf", "g", raw)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	if !wc.Suspending {
		t.Fatalf("expected a suspending proxy")
	}

	_, callErr := wc.CallAsync(context.Background(), nil, nil)
	if !errors.Is(callErr, boom) {
		t.Fatalf("CallAsync error = %v, want %v", callErr, boom)
	}
	if len(rec.returns) != 0 {
		t.Errorf("on_return fired for a cancelled/errored suspending call: %v", rec.returns)
	}
	if len(rec.calls) != 1 {
		t.Errorf("on_call should still fire exactly once: %v", rec.calls)
	}
}
