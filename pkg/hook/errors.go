package hook

import "fmt"

// DenialKind distinguishes the two shapes a policy denial can take.
type DenialKind string

const (
	DenialImport DenialKind = "import"
	DenialCall   DenialKind = "call"
)

// PolicyDenied is returned from OnImport/OnCall in Enforce mode when the
// edge or call name is absent from the loaded Allowlist. It must
// propagate to the caller and abort the offending host operation;
// unlike AnalysisFault/WrapFault, it is never swallowed by the engine.
type PolicyDenied struct {
	Kind   DenialKind
	Parent ModuleId // set for DenialImport
	Module ModuleId // set for DenialCall
	Name   string   // child module name (import) or function name (call)
}

func (e *PolicyDenied) Error() string {
	switch e.Kind {
	case DenialImport:
		return fmt.Sprintf("policy denied: import %s -> %s", e.Parent, e.Name)
	case DenialCall:
		return fmt.Sprintf("policy denied: call %s.%s", e.Module, e.Name)
	default:
		return "policy denied"
	}
}
