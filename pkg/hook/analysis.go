package hook

// Analysis is any value riding the event stream to derive a secondary
// artifact (per-call timings, return-type histograms, etc). The plug-in
// contract is structural (any value supplying on_import/on_call/
// on_return, with missing methods treated as no-ops), so instead of one
// fat interface, each event has its own optional observer interface,
// checked with a type assertion. A concrete analysis implements whichever
// it cares about.
type Analysis interface {
	// Name identifies the analysis in diagnostics when it faults.
	Name() string
}

// ImportObserver is implemented by analyses that care about on_import.
type ImportObserver interface {
	Analysis
	OnImport(parent, name ModuleId)
}

// CallObserver is implemented by analyses that care about on_call.
type CallObserver interface {
	Analysis
	OnCall(module ModuleId, fn string, args []any, kwargs map[string]any)
}

// ReturnObserver is implemented by analyses that care about on_return.
type ReturnObserver interface {
	Analysis
	OnReturn(module ModuleId, fn string, result any)
}

// analysisBus fans an event out to every registered analysis under a
// failure barrier: a panic inside one analysis's callback is recovered,
// logged, and the bus continues as if that analysis had silently accepted
// the event. This is a swallow-all fan-out: one event reaches many
// sinks, generalized from a single fixed method into three distinct
// optional ones.
type analysisBus struct {
	analyses []Analysis
	diag     *Diagnostics
}

func newAnalysisBus(diag *Diagnostics, analyses ...Analysis) *analysisBus {
	return &analysisBus{analyses: analyses, diag: diag}
}

func (b *analysisBus) fanImport(parent, name ModuleId) {
	for _, a := range b.analyses {
		obs, ok := a.(ImportObserver)
		if !ok {
			continue
		}
		b.guard(a, "on_import", parent, func() { obs.OnImport(parent, name) })
	}
}

func (b *analysisBus) fanCall(module ModuleId, fn string, args []any, kwargs map[string]any) {
	for _, a := range b.analyses {
		obs, ok := a.(CallObserver)
		if !ok {
			continue
		}
		b.guard(a, "on_call", module, func() { obs.OnCall(module, fn, args, kwargs) })
	}
}

func (b *analysisBus) fanReturn(module ModuleId, fn string, result any) {
	for _, a := range b.analyses {
		obs, ok := a.(ReturnObserver)
		if !ok {
			continue
		}
		b.guard(a, "on_return", module, func() { obs.OnReturn(module, fn, result) })
	}
}

// guard runs fn, recovering and logging any panic as an AnalysisFault
// rather than letting it escape to the caller of on_import/on_call/
// on_return: those must never observe a misbehaving analysis.
func (b *analysisBus) guard(a Analysis, event string, module ModuleId, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.diag.analysisFault(a.Name(), module, event, r)
		}
	}()
	fn()
}
