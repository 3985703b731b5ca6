// Package builtin is the declarative registry of built-in function blocks
// and functions (spec §4.3): timers, counters, edge detectors, bistables,
// generators, process-control primitives, PID, FIFO/LIFO, plus the
// stateless math/selection/bitwise/conversion/scaling/string/system
// functions.
//
// Each entry carries a member layout and a code emitter, looked up once by
// internal/codegen and dispatched on the concrete descriptor — the
// "polymorphism over call sites" design note in spec §9, grounded on the
// teacher's table-plus-init()-registration idiom (asm/asm.go's opcodes/
// opcodeIndex, vm/opcodes.go's opcodes/opcodeIndex) generalized from an
// opcode-name table to a descriptor-name table.
package builtin

import "github.com/db47h/zplc/internal/ast"

// Role classifies one member of an FB's memory layout.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
	RoleInternal
)

// Member is one named, fixed-offset slot inside an FB instance.
type Member struct {
	Name string
	Offset int
	Size   int
	Role   Role
}

// EmitContext is the set of callbacks an FB/function emitter needs from
// internal/codegen: emit a raw assembly line, mint a unique label, and emit
// the bytecode that evaluates an expression (leaving its value on top of
// the stack). Defining the interface here (rather than importing codegen)
// keeps internal/builtin free of a dependency on internal/codegen, which
// depends on internal/builtin for the registry lookup.
type EmitContext interface {
	// Emit appends one line of assembly text (a bare mnemonic, "MNEM
	// operand", or "label:") to the output.
	Emit(asmLine string)
	// NewLabel mints a unique label using prefix as a human-readable hint.
	NewLabel(prefix string) string
	// EmitExpr emits the bytecode sequence that evaluates e, leaving its
	// value on top of the data stack.
	EmitExpr(e ast.Expr) error
	// LoadSuffix returns the LOAD/STORE opcode suffix ("8","16","32","64")
	// for a value of the given byte size, per spec §4.4's load/store
	// suffix rule.
	LoadSuffix(size int) string
}

// FBDef is a built-in function block descriptor (spec §4.3 "Function
// blocks").
type FBDef struct {
	Name    string
	Size    int
	Members []Member
	// Emit inlines the FB's one-cycle bytecode at base, given the call's
	// named parameter list.
	Emit func(ctx EmitContext, base int, params []ast.Param) error
}

// MemberOffset looks up a member by name.
func (d *FBDef) MemberOffset(name string) (Member, bool) {
	for _, m := range d.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// FuncDef is a built-in stateless function descriptor (spec §4.3
// "Functions").
type FuncDef struct {
	Name string
	// Emit evaluates args (each already representable as an expression
	// AST) and emits the bytecode that leaves the function's single
	// result on top of the stack.
	Emit func(ctx EmitContext, args []ast.Expr) error
}

var fbRegistry = map[string]*FBDef{}
var funcRegistry = map[string]*FuncDef{}

func registerFB(d *FBDef)     { fbRegistry[d.Name] = d }
func registerFunc(d *FuncDef) { funcRegistry[d.Name] = d }

// LookupFB returns the descriptor for a built-in function block type name.
func LookupFB(name string) (*FBDef, bool) {
	d, ok := fbRegistry[name]
	return d, ok
}

// LookupFunction returns the descriptor for a built-in function name.
func LookupFunction(name string) (*FuncDef, bool) {
	d, ok := funcRegistry[name]
	return d, ok
}
