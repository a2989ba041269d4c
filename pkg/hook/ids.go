// Package hook implements an in-process instrumentation and policy-enforcement
// agent for a hosted dynamic runtime. It observes module imports, function
// calls, and function returns, and operates in learn mode (record an
// allowlist) or enforce mode (reject anything outside a learned allowlist).
package hook

import "strings"

// ModuleId names a module, e.g. "pkg.sub.leaf". RootModule denotes the
// root script, the synthetic parent of every top-level import.
type ModuleId string

// RootModule is the synthetic identifier for the hosted program's entry
// point, equivalent to Python's __main__.
const RootModule ModuleId = "__main__"

// Mode selects the engine's policy: Learn records the observed dependency
// graph and call surface; Enforce rejects anything absent from a
// previously learned Allowlist.
type Mode int

const (
	// Learn records the dependency graph, event set, and derives the
	// allowlist at shutdown. No import or call is ever denied.
	Learn Mode = iota
	// Enforce consults a pre-loaded Allowlist and denies any import or
	// call not present in it.
	Enforce
)

func (m Mode) String() string {
	switch m {
	case Learn:
		return "learn"
	case Enforce:
		return "enforce"
	default:
		return "unknown"
	}
}

// TargetPattern matches a ModuleId, either exactly or by dotted prefix
// ("pkg.*" matches any module whose fully qualified name begins with
// "pkg."). This is a domain-suffix wildcard matcher turned around: a
// dotted-prefix match on module names instead of a dotted-suffix match
// on domain names.
type TargetPattern string

// IsPrefixPattern reports whether the pattern is of the form "pkg.*", or
// is the bare "*" that matches every module.
func (p TargetPattern) IsPrefixPattern() bool {
	return strings.HasSuffix(string(p), ".*") || string(p) == "*"
}

// Matches reports whether id is matched by the pattern: either an exact
// equal, or (for a "pkg.*" pattern) id starts with "pkg.". The bare root
// "pkg" itself does not match "pkg.*"; it needs its own exact pattern.
func (p TargetPattern) Matches(id ModuleId) bool {
	s := string(p)
	if !p.IsPrefixPattern() {
		return s == string(id)
	}
	if s == "*" {
		return true
	}
	prefix := strings.TrimSuffix(s, "*") // "pkg."
	return strings.HasPrefix(string(id), prefix)
}

// TargetSet is a configured collection of target patterns, consulted by
// the import interceptor to decide which modules to instrument.
type TargetSet struct {
	patterns []TargetPattern
}

// NewTargetSet builds a TargetSet from raw pattern strings.
func NewTargetSet(patterns []string) *TargetSet {
	ts := &TargetSet{patterns: make([]TargetPattern, 0, len(patterns))}
	for _, p := range patterns {
		ts.patterns = append(ts.patterns, TargetPattern(p))
	}
	return ts
}

// Matches reports whether any configured pattern matches id.
func (ts *TargetSet) Matches(id ModuleId) bool {
	if ts == nil {
		return false
	}
	for _, p := range ts.patterns {
		if p.Matches(id) {
			return true
		}
	}
	return false
}

// Empty reports whether the set carries no patterns: an inert core, the
// state a missing config file bootstraps into.
func (ts *TargetSet) Empty() bool {
	return ts == nil || len(ts.patterns) == 0
}
