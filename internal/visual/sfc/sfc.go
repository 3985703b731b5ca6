// Package sfc transpiles a Sequential Function Chart JSON model into
// Structured Text source (spec §4.8). A chart's steps become a CASE
// dispatch over a synthesized "current step" variable: each step's actions
// run while the step is active, and its outgoing transitions assign the
// next step number once their condition holds.
package sfc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Var is one declared program variable.
type Var struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Step is one SFC step: a name, whether it's the chart's initial step, and
// the ST statement text run on every cycle the step is active.
type Step struct {
	Name    string   `json:"name"`
	Initial bool     `json:"initial,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// Transition is one directed edge between two steps, guarded by an ST
// boolean expression.
type Transition struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition"`
}

// Model is the top-level SFC JSON document.
type Model struct {
	Program     string       `json:"program"`
	Vars        []Var        `json:"vars"`
	Steps       []Step       `json:"steps"`
	Transitions []Transition `json:"transitions"`
}

// stepVarName is the synthesized DINT variable holding the active step
// index.
const stepVarName = "_sfc_step"

// Transpile parses an SFC JSON model and emits equivalent ST source: a
// CASE statement over a synthesized step-index variable, one branch per
// step, each branch running its actions then checking its outgoing
// transitions in declaration order and advancing on the first one whose
// condition holds.
func Transpile(text string) (string, error) {
	var m Model
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return "", errors.Wrap(err, "parse SFC model")
	}
	if m.Program == "" {
		return "", errors.New("SFC model: missing \"program\" name")
	}
	if len(m.Steps) == 0 {
		return "", errors.New("SFC model: no steps declared")
	}

	index := make(map[string]int, len(m.Steps))
	initial := -1
	for i, s := range m.Steps {
		if s.Name == "" {
			return "", errors.Errorf("SFC model: step %d has no name", i)
		}
		if _, dup := index[s.Name]; dup {
			return "", errors.Errorf("SFC model: duplicate step name %q", s.Name)
		}
		index[s.Name] = i
		if s.Initial {
			if initial >= 0 {
				return "", errors.New("SFC model: more than one initial step")
			}
			initial = i
		}
	}
	if initial < 0 {
		return "", errors.New("SFC model: no initial step marked")
	}

	transByFrom := make(map[string][]Transition)
	for i, t := range m.Transitions {
		if _, ok := index[t.From]; !ok {
			return "", errors.Errorf("SFC model: transition %d: dangling \"from\" step %q", i, t.From)
		}
		if _, ok := index[t.To]; !ok {
			return "", errors.Errorf("SFC model: transition %d: dangling \"to\" step %q", i, t.To)
		}
		if t.Condition == "" {
			return "", errors.Errorf("SFC model: transition %d: missing condition", i)
		}
		transByFrom[t.From] = append(transByFrom[t.From], t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PROGRAM %s\n", m.Program)
	b.WriteString("VAR\n")
	for _, v := range m.Vars {
		fmt.Fprintf(&b, "  %s : %s;\n", v.Name, v.Type)
	}
	fmt.Fprintf(&b, "  %s : DINT := %d;\n", stepVarName, initial)
	b.WriteString("END_VAR\n")

	fmt.Fprintf(&b, "CASE %s OF\n", stepVarName)
	for i, s := range m.Steps {
		fmt.Fprintf(&b, "%d:\n", i)
		for _, act := range s.Actions {
			act = strings.TrimSpace(act)
			if act == "" {
				continue
			}
			if !strings.HasSuffix(act, ";") {
				act += ";"
			}
			fmt.Fprintf(&b, "  %s\n", act)
		}
		for j, t := range transByFrom[s.Name] {
			kw := "ELSIF"
			if j == 0 {
				kw = "IF"
			}
			fmt.Fprintf(&b, "  %s %s THEN\n    %s := %d;\n", kw, t.Condition, stepVarName, index[t.To])
		}
		if len(transByFrom[s.Name]) > 0 {
			b.WriteString("  END_IF;\n")
		}
	}
	b.WriteString("END_CASE;\n")
	b.WriteString("END_PROGRAM\n")
	return b.String(), nil
}
