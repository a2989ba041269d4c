package hook

import "sync"

// foreignSet is the TrackedForeignSet: the set of modules the native-call
// profiler is allowed to emit events for. Populated by the import
// interceptor for target-matching foreign modules, and by Bootstrap's
// broader sweep of every foreign/built-in/frozen module already loaded at
// install time.
type foreignSet struct {
	mu sync.RWMutex
	m  map[ModuleId]struct{}
}

func newForeignSet() *foreignSet {
	return &foreignSet{m: make(map[ModuleId]struct{})}
}

func (s *foreignSet) Add(id ModuleId) {
	s.mu.Lock()
	s.m[id] = struct{}{}
	s.mu.Unlock()
}

func (s *foreignSet) Contains(id ModuleId) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[id]
	return ok
}

// nativeReturnSentinel is the fixed value reported for on_return on a
// foreign call: the profiling callback the host exposes for
// binary-implemented callables fires on entry and exit but does not hand
// back the actual return value, so there is nothing meaningful to report
// beyond the fact that the call returned.
type nativeReturnSentinel struct{}

// NativeReturnSentinel is the value OnReturn is given for every foreign
// call, in place of an unavailable real return value.
var NativeReturnSentinel = nativeReturnSentinel{}

// NativeProfiler is the native-call profiler: it registers one callback
// with the host's native-call profiling hook and turns entry/exit events
// into on_call/on_return, subject to two filters: the calling
// goroutine's reentrancy flag must be clear, and the callable's owning
// module must be in the tracked foreign set.
//
// A single small dispatch method consulted from exactly one place, with
// all the actual decision logic (the engine, the foreign-set filter)
// living in already-tested helpers rather than inline in the callback.
type NativeProfiler struct {
	engine  *Engine
	foreign *foreignSet
}

// NewNativeProfiler builds a NativeProfiler over foreign, emitting events
// through engine.
func NewNativeProfiler(engine *Engine, foreign *foreignSet) *NativeProfiler {
	return &NativeProfiler{engine: engine, foreign: foreign}
}

// Install registers the profiler's callback with host.
func (p *NativeProfiler) Install(host Host) {
	host.InstallNativeProfiler(p.onEvent)
}

func (p *NativeProfiler) onEvent(kind NativeEventKind, module ModuleId, name string) {
	if !p.foreign.Contains(module) {
		return
	}
	switch kind {
	case NativeCallEntry:
		_ = p.engine.OnCall(module, name, nil, nil)
	case NativeCallExit:
		p.engine.OnReturn(module, name, NativeReturnSentinel)
	}
}
