// Package policyrules generates and evaluates supplemental, enforce-only
// denial rules expressed as Rego, for calls an allowlist has already
// permitted. It is consulted by the core's Engine as a SupplementalRule
// (see hook.WithSupplementalRules) and can only narrow an allowlist
// Permit into a Deny, never grant a permission the allowlist withheld.
//
// Built as a text/template rendered over a spec struct: per-module,
// per-function call-name denial rules compiled to a small Rego module.
package policyrules

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// CallDenialSpec describes one supplemental denial rule: calls to
// Module.Function are denied whenever ArgIndex (if >= 0) holds one of
// DeniedValues, or unconditionally when ArgIndex is negative.
type CallDenialSpec struct {
	Module       string
	Function     string
	ArgIndex     int
	DeniedValues []string
}

// RuleSetSpec is the input to GenerateModule: the full collection of
// supplemental denial rules for one compiled Rego module.
type RuleSetSpec struct {
	Name  string
	Rules []CallDenialSpec
}

const ruleTemplate = `# generated supplemental call-denial rules: {{.Name}}
package hookwarden

import future.keywords.if
import future.keywords.in

default deny := false
default reason := ""

{{range $i, $r := .Rules}}
deny if {
    input.module == "{{$r.Module}}"
    input.function == "{{$r.Function}}"
{{- if ge $r.ArgIndex 0}}
    some v in {{$r.DeniedValuesRego}}
    input.args[{{$r.ArgIndex}}] == v
{{- end}}
}
{{end}}

reason := "denied by supplemental call-denial rule" if deny

decision := {"deny": deny, "reason": reason}
`

type renderedRule struct {
	Module       string
	Function     string
	ArgIndex     int
	DeniedValues []string
}

func (r renderedRule) DeniedValuesRego() string {
	quoted := make([]string, len(r.DeniedValues))
	for i, v := range r.DeniedValues {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

var tmpl = template.Must(template.New("hookwarden-rules").Parse(ruleTemplate))

// GenerateModule renders spec into a Rego module implementing
// data.hookwarden.decision := {"deny": bool, "reason": string}.
func GenerateModule(spec RuleSetSpec) (string, error) {
	rules := make([]renderedRule, len(spec.Rules))
	for i, r := range spec.Rules {
		rules[i] = renderedRule{
			Module:       r.Module,
			Function:     r.Function,
			ArgIndex:     r.ArgIndex,
			DeniedValues: r.DeniedValues,
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Name  string
		Rules []renderedRule
	}{Name: spec.Name, Rules: rules}); err != nil {
		return "", fmt.Errorf("policyrules: rendering template: %w", err)
	}
	return buf.String(), nil
}
