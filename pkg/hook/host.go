package hook

// ModuleKind distinguishes a module whose body the host can re-execute
// with wrapped exports (KindSource) from one implemented in a foreign
// binary representation the core cannot wrap at the source level
// (KindForeign).
type ModuleKind int

const (
	KindSource ModuleKind = iota
	KindForeign
)

// ResolvedModule is what the host's module-resolution pipeline hands back
// for a load attempt. Parent equals Id when the module has no containing
// package.
type ResolvedModule struct {
	Id     ModuleId
	Parent ModuleId
	Kind   ModuleKind
}

// FinderFunc is invoked by the host for every uncached module load, after
// the module has finished executing (the finder path).
type FinderFunc func(resolved ResolvedModule)

// FallbackFunc is invoked by the replaced top-level import primitive for
// every import, including ones served from the host's module cache (the
// fallback path).
type FallbackFunc func(parent, name ModuleId)

// NativeEventKind distinguishes entry from exit in the host's per-event
// native-call profiling callback.
type NativeEventKind int

const (
	NativeCallEntry NativeEventKind = iota
	NativeCallExit
)

// NativeProfilerFunc is the per-event callback the host invokes for every
// foreign call entry and exit, on the thread making the call.
type NativeProfilerFunc func(kind NativeEventKind, module ModuleId, name string)

// Host is the narrow boundary the core treats as out of scope: the
// host-runtime APIs for module loading and profiling. The core never
// imports a concrete scripting runtime; a concrete embedding (a Lua, JS,
// or Python-via-cgo host) implements Host to let the core observe it.
type Host interface {
	// Exports returns the currently-exported names of an
	// already-executed module, each mapped to its raw value: a
	// Callable, a SuspendingCallable, a *ClassExport, or an opaque value
	// the interceptor leaves untouched.
	Exports(id ModuleId) map[string]any

	// SetExport replaces a single export in module id's namespace in
	// place.
	SetExport(id ModuleId, name string, value any)

	// LoadedModules enumerates every module already loaded at install
	// time, for the pre-existing-targets bootstrap sweep and the
	// foreign/built-in/frozen sweep.
	LoadedModules() []ResolvedModule

	// InstallFinder inserts fn at the front of the host's
	// module-resolution pipeline.
	InstallFinder(fn FinderFunc)

	// InstallImportFallback replaces the host's top-level import
	// primitive, routing every invocation through fn before delegating
	// to the original.
	InstallImportFallback(fn FallbackFunc)

	// InstallNativeProfiler registers fn as the host's per-event native
	// call profiling callback.
	InstallNativeProfiler(fn NativeProfilerFunc)
}
