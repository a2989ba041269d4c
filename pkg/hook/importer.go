package hook

import "strings"

// ImportInterceptor is the import interceptor: it watches every module
// load the host performs, decides whether the loaded module matches a
// configured target pattern, and if so wraps its non-dunder exports
// through a WrapperFactory before anything else can observe them.
//
// Shaped as a small dispatcher invoked by the host on every relevant
// lifecycle event, delegating the actual decision to a shared policy
// core; the matching and sweep logic is built directly from the
// import-interception requirements below.
type ImportInterceptor struct {
	targets *TargetSet
	engine  *Engine
	factory *WrapperFactory
	foreign *foreignSet
	host    Host
}

// NewImportInterceptor builds an interceptor over targets, emitting
// events through engine and wrapping exports via factory. foreign
// receives every target-matching module the host reports as foreign, for
// the native-call profiler to consult.
func NewImportInterceptor(targets *TargetSet, engine *Engine, factory *WrapperFactory, foreign *foreignSet) *ImportInterceptor {
	return &ImportInterceptor{targets: targets, engine: engine, factory: factory, foreign: foreign}
}

// Install registers the interceptor's finder and import-fallback
// callbacks with host, then sweeps every already-loaded module: a
// target-matching source module has its current exports wrapped in
// place; a target-matching foreign module is recorded for the native
// profiler. Non-matching modules are left untouched here (the broader
// foreign/built-in/frozen sweep for the native profiler is Bootstrap's
// job, not the interceptor's).
func (ic *ImportInterceptor) Install(host Host) {
	ic.host = host
	host.InstallFinder(ic.onResolved)
	host.InstallImportFallback(ic.onFallbackImport)

	for _, rm := range host.LoadedModules() {
		if !ic.targets.Matches(rm.Id) {
			continue
		}
		if rm.Kind == KindForeign {
			ic.foreign.Add(rm.Id)
			continue
		}
		ic.instrumentExports(host, rm.Id)
	}
}

// onResolved is the finder path: called by the host after a module has
// finished executing. A foreign target is recorded for the native
// profiler and never wrapped at the source level. A source target has
// its exports wrapped, and, unless the module has no containing
// package (its parent equals itself), an import edge is recorded.
func (ic *ImportInterceptor) onResolved(resolved ResolvedModule) {
	if !ic.targets.Matches(resolved.Id) {
		return
	}
	if resolved.Kind == KindForeign {
		ic.foreign.Add(resolved.Id)
		return
	}

	ic.instrumentExports(ic.host, resolved.Id)

	if resolved.Parent != resolved.Id {
		parent := resolved.Parent
		_ = ic.engine.OnImport(&parent, resolved.Id)
	}
}

// InstrumentModule wraps a module's current exports in place, the same
// step the finder path and Install's pre-existing-targets sweep apply to
// each matching source module.
func (ic *ImportInterceptor) InstrumentModule(host Host, id ModuleId) {
	ic.instrumentExports(host, id)
}

func (ic *ImportInterceptor) instrumentExports(host Host, id ModuleId) {
	for name, val := range host.Exports(id) {
		if isDunderName(name) {
			continue
		}
		if _, isClass := val.(*ClassExport); isClass {
			// Class exports wrap their methods lazily on first access
			// (see ClassExport.Method); nothing to do at export time.
			continue
		}
		if _, already := val.(*WrappedCallable); already {
			continue
		}
		wrapped, err := ic.factory.Wrap(id, name, val)
		if err != nil {
			// Not every export is callable; Wrap returns an error for
			// every non-callable value (primitives, nested modules), and
			// those are silently left untouched. Only a failure on a
			// callable-shaped value is logged; it too is left unwrapped.
			if isCallableShaped(val) {
				ic.factory.engine.diag.wrapFault(id, name, err)
			}
			continue
		}
		host.SetExport(id, name, wrapped)
	}
}

// onFallbackImport is the fallback path: invoked by the replaced
// top-level import primitive for every import, including ones served
// from the host's module cache (which the finder path never sees again).
// An import event fires only if the dependency graph doesn't already
// carry this edge, avoiding duplicate emission for a module the finder
// path already reported.
func (ic *ImportInterceptor) onFallbackImport(parent, name ModuleId) {
	if ic.engine.HasEdge(parent, name) {
		return
	}
	p := parent
	_ = ic.engine.OnImport(&p, name)
}

// isDunderName reports whether name is a double-underscore host-internal
// name ("__init__", "__doc__"). Only these are skipped when wrapping a
// module's exports; single-underscore convention-private names are
// wrapped like any other callable.
func isDunderName(name string) bool {
	return strings.HasPrefix(name, "__")
}

// isCallableShaped reports whether v is one of the two raw callable
// shapes Wrap accepts, used only to decide whether a Wrap failure is
// worth a diagnostics entry.
func isCallableShaped(v any) bool {
	switch v.(type) {
	case Callable, SuspendingCallable:
		return true
	default:
		return false
	}
}
