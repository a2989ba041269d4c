package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ============================================================================
// Config artifact
// ============================================================================

// ConfigFile is the on-disk shape of the target-pattern configuration:
// { "targets": ["leaf", "pkg.*"] }. A missing file is not an error; it
// yields an empty TargetSet and an inert core.
type ConfigFile struct {
	// Targets lists the exact module names or "pkg.*" prefix patterns to
	// instrument.
	Targets []string `json:"targets"`
}

// LoadConfig reads the config artifact at path. A missing file yields an
// empty ConfigFile and no error; any other read or parse failure is
// reported.
func LoadConfig(path string) (ConfigFile, error) {
	var cfg ConfigFile
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("hook: reading config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ConfigFile{}, fmt.Errorf("hook: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ============================================================================
// Allowlist artifact
// ============================================================================

// AllowlistFile is the on-disk shape of the allowlist: a per-module list
// of permitted names, read in Enforce mode and written in Learn mode.
// Names within each module are sorted and deduplicated.
type AllowlistFile struct {
	Allowlist map[ModuleId][]string `json:"allowlist"`
}

// LoadAllowlist reads the allowlist artifact at path. A missing file
// yields an empty allowlist and no error. In Enforce mode that means
// every import and call will be denied, which is the documented behavior
// for a missing allowlist, not a failure of the load itself.
func LoadAllowlist(path string) (AllowlistFile, error) {
	out := AllowlistFile{Allowlist: make(map[ModuleId][]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("hook: reading allowlist %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return AllowlistFile{Allowlist: make(map[ModuleId][]string)}, fmt.Errorf("hook: parsing allowlist %s: %w", path, err)
	}
	if out.Allowlist == nil {
		out.Allowlist = make(map[ModuleId][]string)
	}
	return out, nil
}

// ============================================================================
// Dependencies artifact (Learn mode only)
// ============================================================================

// DependenciesFile is the on-disk shape of the dependency graph report:
// parent module -> sorted list of child modules.
type DependenciesFile struct {
	Dependencies map[ModuleId][]ModuleId `json:"dependencies"`
}

// ============================================================================
// Events artifact (Learn mode only)
// ============================================================================

// EventsFile is the on-disk shape of the event-set report: module ->
// { "kind:name": true, ... }, where key presence is the truth value.
type EventsFile map[ModuleId]map[string]bool

// MarshalEventsFile builds an EventsFile from the tag lists recorded per
// module (each tag already of the form "kind:name").
func MarshalEventsFile(tagsByModule map[ModuleId][]string) ([]byte, error) {
	out := make(EventsFile, len(tagsByModule))
	for m, tags := range tagsByModule {
		set := make(map[string]bool, len(tags))
		for _, t := range tags {
			set[t] = true
		}
		out[m] = set
	}
	return json.MarshalIndent(out, "", "  ")
}

// ============================================================================
// Report writer
// ============================================================================

// Artifact file names written at the end of a Learn run.
const (
	DependenciesFileName = "dependencies.json"
	EventsFileName       = "events.json"
	AllowlistFileName    = "allowlist.json"
)

// ReportWriter returns a sink for Engine.WriteReports that serializes
// the three Learn-mode artifacts as JSON files under outdir.
func ReportWriter(outdir string) func(*Report) error {
	return func(r *Report) error {
		deps, err := json.MarshalIndent(DependenciesFile{Dependencies: r.Dependencies}, "", "  ")
		if err != nil {
			return fmt.Errorf("hook: marshaling dependencies: %w", err)
		}
		events, err := MarshalEventsFile(r.Events)
		if err != nil {
			return fmt.Errorf("hook: marshaling events: %w", err)
		}
		allow, err := json.MarshalIndent(AllowlistFile{Allowlist: r.Allowlist}, "", "  ")
		if err != nil {
			return fmt.Errorf("hook: marshaling allowlist: %w", err)
		}

		for _, out := range []struct {
			name string
			data []byte
		}{
			{DependenciesFileName, deps},
			{EventsFileName, events},
			{AllowlistFileName, allow},
		} {
			path := filepath.Join(outdir, out.name)
			if err := os.WriteFile(path, out.data, 0o644); err != nil {
				return fmt.Errorf("hook: writing %s: %w", path, err)
			}
		}
		return nil
	}
}
