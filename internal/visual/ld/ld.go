// Package ld transpiles a Ladder Diagram JSON model into Structured Text
// source (spec §4.8). The resulting ST text re-enters the normal
// lex/parse/codegen pipeline unchanged — this package never builds or
// touches internal/ast directly, it only emits source text, the same
// "text is the interchange format" idiom internal/codegen uses for the
// assembler boundary.
package ld

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

// Node is one element of a rung's contact network: either a leaf contact
// referencing a variable, or an AND/OR group of child nodes (series and
// parallel branches of a ladder rung).
type Node struct {
	Kind     string  `json:"type"` // "contact" | "and" | "or"
	Var      string  `json:"var,omitempty"`
	Negated  bool    `json:"negated,omitempty"`
	Children []*Node `json:"nodes,omitempty"`
}

// Coil is a rung's output: a plain coil, a set (latch) coil, or a reset
// coil.
type Coil struct {
	Var  string `json:"var"`
	Mode string `json:"mode,omitempty"` // "out" (default) | "set" | "reset"
}

// Rung is one horizontal ladder line: a contact network driving one or
// more coils.
type Rung struct {
	Network *Node  `json:"network"`
	Coils   []Coil `json:"coils"`
}

// Model is the top-level LD JSON document.
type Model struct {
	Program string `json:"program"`
	Vars    []Var  `json:"vars"`
	Rungs   []Rung `json:"rungs"`
}

// Transpile parses an LD JSON model and emits equivalent ST source.
func Transpile(text string) (string, error) {
	var m Model
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return "", errors.Wrap(err, "parse LD model")
	}
	if m.Program == "" {
		return "", errors.New("LD model: missing \"program\" name")
	}
	declared := make(map[string]bool, len(m.Vars))
	for _, v := range m.Vars {
		declared[v.Name] = true
	}
	for i, r := range m.Rungs {
		if r.Network == nil {
			return "", errors.Errorf("LD model: rung %d has no network (dangling rung)", i)
		}
		if err := checkDangling(r.Network, declared); err != nil {
			return "", errors.Wrapf(err, "LD model: rung %d", i)
		}
		if len(r.Coils) == 0 {
			return "", errors.Errorf("LD model: rung %d drives no coil (dangling rung)", i)
		}
		for _, c := range r.Coils {
			if !declared[c.Var] {
				return "", errors.Errorf("LD model: rung %d: undeclared coil variable %q", i, c.Var)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PROGRAM %s\n", m.Program)
	if len(m.Vars) > 0 {
		b.WriteString("VAR\n")
		for _, v := range m.Vars {
			fmt.Fprintf(&b, "  %s : %s;\n", v.Name, v.Type)
		}
		b.WriteString("END_VAR\n")
	}
	for i, r := range m.Rungs {
		expr := renderNode(r.Network)
		fmt.Fprintf(&b, "(* rung %d *)\n", i)
		for _, c := range r.Coils {
			switch c.Mode {
			case "set":
				fmt.Fprintf(&b, "IF %s THEN\n  %s := TRUE;\nEND_IF;\n", expr, c.Var)
			case "reset":
				fmt.Fprintf(&b, "IF %s THEN\n  %s := FALSE;\nEND_IF;\n", expr, c.Var)
			default:
				fmt.Fprintf(&b, "%s := %s;\n", c.Var, expr)
			}
		}
	}
	b.WriteString("END_PROGRAM\n")
	return b.String(), nil
}

func checkDangling(n *Node, declared map[string]bool) error {
	if n == nil {
		return errors.New("dangling connection: empty node")
	}
	switch n.Kind {
	case "contact":
		if n.Var == "" {
			return errors.New("dangling connection: contact with no variable")
		}
		if !declared[n.Var] {
			return errors.Errorf("undeclared variable %q", n.Var)
		}
	case "and", "or":
		if len(n.Children) == 0 {
			return errors.Errorf("dangling connection: %q group with no children", n.Kind)
		}
		for _, c := range n.Children {
			if err := checkDangling(c, declared); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("unknown node type %q", n.Kind)
	}
	return nil
}

func renderNode(n *Node) string {
	switch n.Kind {
	case "contact":
		if n.Negated {
			return fmt.Sprintf("NOT %s", n.Var)
		}
		return n.Var
	case "and":
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = renderNode(c)
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	case "or":
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = renderNode(c)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}
	return "FALSE"
}
