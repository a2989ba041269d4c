package hook

import (
	"fmt"
	"sync"
)

// Agent bundles the live components produced by Install (engine, import
// interceptor, native profiler; the wrapper factory is held by the
// import interceptor), plus the host handle needed to flush and tear
// them down.
type Agent struct {
	Engine   *Engine
	importer *ImportInterceptor
	native   *NativeProfiler
	host     Host
}

var (
	installedMu     sync.Mutex
	installedAgents = make(map[Host]*Agent)
)

// Install is the one-shot bootstrap: it loads the target
// configuration and, in Enforce mode, the allowlist; constructs an
// Engine; wires the import interceptor and native profiler against host;
// rewraps every already-loaded target module; and registers the native
// profiler against every foreign/built-in/frozen module already loaded,
// regardless of target match. It returns an *Agent whose Shutdown method
// must be called exactly once, explicitly, before the process exits;
// there is no at-exit registry here, per the adaptation note in
// DESIGN.md.
//
// Calling Install a second time on the same host without an intervening
// Shutdown returns the already-constructed *Agent unchanged (mode,
// config, and options from the second call are ignored), rather than
// re-wrapping everything and double-registering callbacks with host.
// Distinct hosts get distinct agents.
func Install(host Host, mode Mode, cfg ConfigFile, allow *AllowlistFile, opts ...EngineOption) (*Agent, error) {
	installedMu.Lock()
	defer installedMu.Unlock()
	if agent, ok := installedAgents[host]; ok {
		return agent, nil
	}

	targets := NewTargetSet(cfg.Targets)
	engine := NewEngine(mode, opts...)
	if mode == Enforce && allow != nil {
		engine.LoadAllowlist(allow.Allowlist)
	}

	factory := NewWrapperFactory(engine)
	foreign := newForeignSet()
	importer := NewImportInterceptor(targets, engine, factory, foreign)
	native := NewNativeProfiler(engine, foreign)

	importer.Install(host)
	native.Install(host)

	// Broader sweep: every already-loaded foreign/built-in/frozen module
	// becomes eligible for native-call profiling, independent of target
	// matching; ImportInterceptor.Install only does this for modules
	// that also match a configured target.
	for _, rm := range host.LoadedModules() {
		if rm.Kind == KindForeign {
			foreign.Add(rm.Id)
		}
	}

	agent := &Agent{Engine: engine, importer: importer, native: native, host: host}
	installedAgents[host] = agent
	return agent, nil
}

// InstallFromPaths is Install with the two input artifacts read from
// disk: configPath ({"targets": [...]}) and, in Enforce mode,
// allowlistPath ({"allowlist": {...}}). A missing config file leaves the
// core inert; a missing allowlist in Enforce mode denies everything.
func InstallFromPaths(host Host, mode Mode, configPath, allowlistPath string, opts ...EngineOption) (*Agent, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	var allow *AllowlistFile
	if mode == Enforce {
		loaded, err := LoadAllowlist(allowlistPath)
		if err != nil {
			return nil, err
		}
		allow = &loaded
	}
	return Install(host, mode, cfg, allow, opts...)
}

// Shutdown flushes Learn-mode reports via writeFn (ignored in Enforce
// mode, see Engine.WriteReports) and unregisters the agent so a later
// Install on the same host builds a fresh one (e.g. between test cases).
func (a *Agent) Shutdown(writeFn func(*Report) error) error {
	defer func() {
		installedMu.Lock()
		delete(installedAgents, a.host)
		installedMu.Unlock()
	}()
	if writeFn == nil {
		return nil
	}
	if err := a.Engine.WriteReports(writeFn); err != nil {
		return fmt.Errorf("hook: writing reports: %w", err)
	}
	return nil
}
