package hook

import (
	"sync"
)

// SupplementalRule is the narrow interface the optional policyrules
// package satisfies (see pkg/hook/policyrules). It is consulted only in
// Enforce mode, only after the plain allowlist check already permitted
// the call, and can only turn that Permit into a Deny, never the
// reverse.
type SupplementalRule interface {
	// EvaluateCall returns false to additionally deny a call the
	// allowlist already permitted, with a reason for diagnostics.
	EvaluateCall(module ModuleId, fn string, args []any, kwargs map[string]any) (ok bool, reason string)
}

// Engine is the event/policy engine: the single sink for on_import/
// on_call/on_return, applying mode-specific policy and fanning out to
// analyses under a failure barrier.
type Engine struct {
	mode Mode

	graph     *depGraph
	cache     *decisionCache
	bus       *analysisBus
	diag      *Diagnostics
	reentrant *reentrancyGuard

	mu        sync.RWMutex
	allowlist map[ModuleId]map[string]struct{} // nil in Learn mode

	supplemental []SupplementalRule
}

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

// WithAnalyses registers analyses to receive the event fan-out.
func WithAnalyses(analyses ...Analysis) EngineOption {
	return func(e *Engine) { e.bus = newAnalysisBus(e.diag, analyses...) }
}

// WithDiagnostics overrides the default no-op diagnostics sink.
func WithDiagnostics(d *Diagnostics) EngineOption {
	return func(e *Engine) { e.diag = d }
}

// WithSupplementalRules registers additional, enforce-only,
// allowlist-narrowing evaluators.
func WithSupplementalRules(rules ...SupplementalRule) EngineOption {
	return func(e *Engine) { e.supplemental = append(e.supplemental, rules...) }
}

// NewEngine constructs an Engine in the given mode.
func NewEngine(mode Mode, opts ...EngineOption) *Engine {
	e := &Engine{
		mode:      mode,
		graph:     newDepGraph(),
		cache:     newDecisionCache(),
		diag:      NewDiagnostics(nil),
		reentrant: newReentrancyGuard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.bus == nil {
		e.bus = newAnalysisBus(e.diag)
	}
	return e
}

// LoadAllowlist installs the allowlist consulted in Enforce mode. Safe to
// call before the hosted program starts running; calling it again
// invalidates the decision cache (see decisionCache doc comment).
func (e *Engine) LoadAllowlist(raw map[ModuleId][]string) {
	built := make(map[ModuleId]map[string]struct{}, len(raw))
	for m, names := range raw {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		built[m] = set
	}
	e.mu.Lock()
	e.allowlist = built
	e.mu.Unlock()
	e.cache.InvalidateAll()
}

func (e *Engine) allowlistContains(module ModuleId, name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	set, ok := e.allowlist[module]
	if !ok {
		return false
	}
	_, ok = set[name]
	return ok
}

// OnImport records parent->name into the dependency graph (parent
// defaults to RootModule), applies Enforce-mode policy, and fans out to
// analyses. Reentrant calls are a no-op.
func (e *Engine) OnImport(parent *ModuleId, name ModuleId) error {
	if e.reentrant.Active() {
		return nil
	}
	already, leave := e.reentrant.Enter()
	if already {
		return nil
	}
	defer leave()

	p := RootModule
	if parent != nil {
		p = *parent
	}

	isNew := e.graph.AddEdge(p, name)

	if e.mode == Learn && isNew {
		tag := "import:" + string(name)
		if e.graph.AddEvent(p, tag) {
			e.diag.event(p, tag)
		}
	}

	var denyErr error
	if e.mode == Enforce {
		if d, ok := e.cache.Get(kindImportDecision, p, string(name)); ok {
			if d == deny {
				denyErr = &PolicyDenied{Kind: DenialImport, Parent: p, Name: string(name)}
			}
		} else if !e.allowlistContains(p, string(name)) {
			e.cache.Set(kindImportDecision, p, string(name), deny)
			denyErr = &PolicyDenied{Kind: DenialImport, Parent: p, Name: string(name)}
		} else {
			e.cache.Set(kindImportDecision, p, string(name), permit)
		}
	}
	if denyErr != nil {
		e.diag.denied(string(DenialImport), p, string(name))
	}

	e.bus.fanImport(p, name)

	return denyErr
}

// OnCall applies Enforce-mode policy for module.fn and fans out to
// analyses. In Learn mode it records "call:fn" into module's event set.
func (e *Engine) OnCall(module ModuleId, fn string, args []any, kwargs map[string]any) error {
	if e.reentrant.Active() {
		return nil
	}
	already, leave := e.reentrant.Enter()
	if already {
		return nil
	}
	defer leave()

	if e.mode == Learn {
		tag := "call:" + fn
		if e.graph.AddEvent(module, tag) {
			e.diag.event(module, tag)
		}
	}

	var denyErr error
	if e.mode == Enforce {
		var allowed bool
		if d, ok := e.cache.Get(kindCallDecision, module, fn); ok {
			allowed = d == permit
		} else {
			allowed = e.allowlistContains(module, fn)
			if allowed {
				e.cache.Set(kindCallDecision, module, fn, permit)
			} else {
				e.cache.Set(kindCallDecision, module, fn, deny)
			}
		}
		if !allowed {
			denyErr = &PolicyDenied{Kind: DenialCall, Module: module, Name: fn}
		} else if ok, reason := e.evaluateSupplemental(module, fn, args, kwargs); !ok {
			// Supplemental rules may be argument-dependent, so only the
			// allowlist membership above is cached; their verdict is
			// re-evaluated on every call.
			denyErr = &PolicyDenied{Kind: DenialCall, Module: module, Name: fn + " (" + reason + ")"}
		}
	}
	if denyErr != nil {
		e.diag.denied(string(DenialCall), module, fn)
	}

	e.bus.fanCall(module, fn, args, kwargs)

	return denyErr
}

func (e *Engine) evaluateSupplemental(module ModuleId, fn string, args []any, kwargs map[string]any) (bool, string) {
	for _, rule := range e.supplemental {
		if ok, reason := rule.EvaluateCall(module, fn, args, kwargs); !ok {
			return false, reason
		}
	}
	return true, ""
}

// OnReturn records "return:fn" in Learn mode and fans out to analyses.
// There is no policy on return: a function already permitted to be
// called is always permitted to return.
func (e *Engine) OnReturn(module ModuleId, fn string, result any) {
	if e.reentrant.Active() {
		return
	}
	already, leave := e.reentrant.Enter()
	if already {
		return
	}
	defer leave()

	if e.mode == Learn {
		tag := "return:" + fn
		if e.graph.AddEvent(module, tag) {
			e.diag.event(module, tag)
		}
	}

	e.bus.fanReturn(module, fn, result)
}

// Mode returns the engine's configured mode.
func (e *Engine) Mode() Mode { return e.mode }

// HasEdge reports whether parent->child is already recorded in the
// dependency graph, used by the import interceptor's fallback path to
// avoid a duplicate on_import for a module the finder path already
// reported.
func (e *Engine) HasEdge(parent, child ModuleId) bool {
	return e.graph.HasEdge(parent, child)
}

// CacheStats exposes decision-cache hit/miss counters for operational
// visibility.
func (e *Engine) CacheStats() (hits, misses uint64, hitRate float64) {
	return e.cache.Stats()
}

// Report is the in-memory form of the three Learn-mode artifacts, before
// serialization.
type Report struct {
	Dependencies map[ModuleId][]ModuleId
	Events       map[ModuleId][]string
	Allowlist    map[ModuleId][]string
}

// BuildReport derives dependencies, events, and the allowlist from the
// graph accumulated so far. The allowlist is the union, per module, of
// recorded children and observed "call:n" names (the decision on
// union-vs-own-exports is recorded in DESIGN.md).
func (e *Engine) BuildReport() *Report {
	deps := make(map[ModuleId][]ModuleId)
	events := make(map[ModuleId][]string)
	allow := make(map[ModuleId]map[string]struct{})

	for _, parent := range e.graph.Parents() {
		children := e.graph.Children(parent)
		deps[parent] = children
		set, ok := allow[parent]
		if !ok {
			set = make(map[string]struct{})
			allow[parent] = set
		}
		for _, c := range children {
			set[string(c)] = struct{}{}
		}
	}

	for _, module := range e.graph.EventModules() {
		tags := e.graph.Events(module)
		events[module] = tags
		set, ok := allow[module]
		if !ok {
			set = make(map[string]struct{})
			allow[module] = set
		}
		for _, t := range tags {
			if name, isCall := callName(t); isCall {
				set[name] = struct{}{}
			}
		}
	}

	finalAllow := make(map[ModuleId][]string, len(allow))
	for m, set := range allow {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sortStrings(names)
		finalAllow[m] = names
	}

	return &Report{Dependencies: deps, Events: events, Allowlist: finalAllow}
}

// callName splits a "call:name" tag, reporting whether tag was of that
// kind.
func callName(tag string) (name string, ok bool) {
	const prefix = "call:"
	if len(tag) > len(prefix) && tag[:len(prefix)] == prefix {
		return tag[len(prefix):], true
	}
	return "", false
}

// WriteReports serializes dependencies, events, and the derived allowlist
// via writeFn, a caller-supplied artifact sink (e.g. writing three JSON
// files to an outdir). It is a no-op in Enforce mode.
func (e *Engine) WriteReports(writeFn func(*Report) error) error {
	if e.mode != Learn {
		return nil
	}
	return writeFn(e.BuildReport())
}
