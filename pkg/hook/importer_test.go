package hook

// fakeHost is a minimal in-memory Host used by C3/C4/C5 tests. It never
// actually executes a module body: tests populate exports and loaded
// modules directly and invoke the registered callbacks themselves,
// mirroring the shape of the host's real finder/fallback/profiler hooks
// without depending on any concrete scripting runtime.
type fakeHost struct {
	exports  map[ModuleId]map[string]any
	loaded   []ResolvedModule
	finder   FinderFunc
	fallback FallbackFunc
	profiler NativeProfilerFunc
}

func newFakeHost() *fakeHost {
	return &fakeHost{exports: make(map[ModuleId]map[string]any)}
}

func (h *fakeHost) Exports(id ModuleId) map[string]any {
	out := make(map[string]any, len(h.exports[id]))
	for k, v := range h.exports[id] {
		out[k] = v
	}
	return out
}

func (h *fakeHost) SetExport(id ModuleId, name string, value any) {
	if h.exports[id] == nil {
		h.exports[id] = make(map[string]any)
	}
	h.exports[id][name] = value
}

func (h *fakeHost) LoadedModules() []ResolvedModule { return h.loaded }

func (h *fakeHost) InstallFinder(fn FinderFunc) { h.finder = fn }

func (h *fakeHost) InstallImportFallback(fn FallbackFunc) { h.fallback = fn }

func (h *fakeHost) InstallNativeProfiler(fn NativeProfilerFunc) { h.profiler = fn }

func noopCallable(args []any, kwargs map[string]any) (any, error) { return nil, nil }
