package policyrules

import (
	"strings"
	"testing"
)

func TestGenerateModule_RendersPackageAndRules(t *testing.T) {
	spec := RuleSetSpec{
		Name: "argument-limits",
		Rules: []CallDenialSpec{
			{Module: "leaf", Function: "f", ArgIndex: -1},
			{Module: "leaf", Function: "g", ArgIndex: 0, DeniedValues: []string{"admin"}},
		},
	}

	module, err := GenerateModule(spec)
	if err != nil {
		t.Fatalf("GenerateModule: %v", err)
	}

	if !strings.Contains(module, "package hookwarden") {
		t.Errorf("generated module missing package declaration:\n%s", module)
	}
	if !strings.Contains(module, `input.module == "leaf"`) {
		t.Errorf("generated module missing module match for leaf:\n%s", module)
	}
	if !strings.Contains(module, `input.function == "g"`) {
		t.Errorf("generated module missing function match for g:\n%s", module)
	}
	if !strings.Contains(module, `"admin"`) {
		t.Errorf("generated module missing denied value literal:\n%s", module)
	}
}

func TestGenerateModule_EmptyRuleSetStillValidShape(t *testing.T) {
	module, err := GenerateModule(RuleSetSpec{Name: "empty"})
	if err != nil {
		t.Fatalf("GenerateModule: %v", err)
	}
	if !strings.Contains(module, "default deny := false") {
		t.Errorf("generated module missing default deny clause:\n%s", module)
	}
}
