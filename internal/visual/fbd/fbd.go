// Package fbd transpiles a Function Block Diagram JSON model into
// Structured Text source (spec §4.8), the same "emit ST text, re-enter the
// normal pipeline" shape as internal/visual/ld and internal/visual/sfc.
package fbd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Var is one declared program variable.
type Var struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Block is one function-block or function instance in the diagram. Inputs
// maps a port name to either a literal/variable expression or another
// block's output reference ("blockID.PORT").
type Block struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Inputs map[string]string `json:"inputs"`
}

// OutputBinding assigns a program variable from a block's output port.
type OutputBinding struct {
	Var    string `json:"var"`
	Source string `json:"source"` // "blockID.PORT"
}

// Model is the top-level FBD JSON document.
type Model struct {
	Program string          `json:"program"`
	Vars    []Var           `json:"vars"`
	Blocks  []Block         `json:"blocks"`
	Outputs []OutputBinding `json:"outputs"`
}

// Transpile parses an FBD JSON model and emits equivalent ST source: one
// FB-instance variable declaration and one call statement per block, plus
// one assignment per output binding.
func Transpile(text string) (string, error) {
	var m Model
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return "", errors.Wrap(err, "parse FBD model")
	}
	if m.Program == "" {
		return "", errors.New("FBD model: missing \"program\" name")
	}

	declared := make(map[string]bool, len(m.Vars))
	for _, v := range m.Vars {
		declared[v.Name] = true
	}
	blockByID := make(map[string]*Block, len(m.Blocks))
	for i := range m.Blocks {
		bk := &m.Blocks[i]
		if bk.ID == "" {
			return "", errors.Errorf("FBD model: block %d has no id", i)
		}
		blockByID[bk.ID] = bk
	}

	resolvePort := func(ref string) (string, error) {
		dot := strings.LastIndex(ref, ".")
		if dot < 0 {
			if !declared[ref] {
				return "", errors.Errorf("undeclared variable %q", ref)
			}
			return ref, nil
		}
		id, port := ref[:dot], ref[dot+1:]
		if _, ok := blockByID[id]; !ok {
			return "", errors.Errorf("dangling connection: block %q not found", id)
		}
		return id + "." + port, nil
	}

	for _, bk := range m.Blocks {
		keys := make([]string, 0, len(bk.Inputs))
		for k := range bk.Inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, port := range keys {
			ref := bk.Inputs[port]
			if ref == "" {
				return "", errors.Errorf("FBD model: block %q: dangling input %q", bk.ID, port)
			}
			if !isLiteral(ref) {
				if _, err := resolvePort(ref); err != nil {
					return "", errors.Wrapf(err, "FBD model: block %q input %q", bk.ID, port)
				}
			}
		}
	}
	for i, ob := range m.Outputs {
		if !declared[ob.Var] {
			return "", errors.Errorf("FBD model: output %d: undeclared variable %q", i, ob.Var)
		}
		if _, err := resolvePort(ob.Source); err != nil {
			return "", errors.Wrapf(err, "FBD model: output %d", i)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PROGRAM %s\n", m.Program)
	b.WriteString("VAR\n")
	for _, v := range m.Vars {
		fmt.Fprintf(&b, "  %s : %s;\n", v.Name, v.Type)
	}
	for _, bk := range m.Blocks {
		fmt.Fprintf(&b, "  %s : %s;\n", bk.ID, bk.Type)
	}
	b.WriteString("END_VAR\n")

	for _, bk := range m.Blocks {
		keys := make([]string, 0, len(bk.Inputs))
		for k := range bk.Inputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]string, len(keys))
		for i, port := range keys {
			args[i] = fmt.Sprintf("%s := %s", port, bk.Inputs[port])
		}
		fmt.Fprintf(&b, "%s(%s);\n", bk.ID, strings.Join(args, ", "))
	}
	for _, ob := range m.Outputs {
		fmt.Fprintf(&b, "%s := %s;\n", ob.Var, ob.Source)
	}
	b.WriteString("END_PROGRAM\n")
	return b.String(), nil
}

// isLiteral reports whether ref looks like a literal (numeric, T#, string,
// TRUE/FALSE) rather than a variable or block-output reference, so those
// aren't checked against the declared-variable set.
func isLiteral(ref string) bool {
	if ref == "TRUE" || ref == "FALSE" {
		return true
	}
	if strings.HasPrefix(ref, "T#") || strings.HasPrefix(ref, "'") {
		return true
	}
	if len(ref) > 0 && (ref[0] == '-' || (ref[0] >= '0' && ref[0] <= '9')) {
		return true
	}
	return false
}
