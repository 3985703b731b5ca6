// Package symtab builds the symbol table and memory layout for a
// compilation unit (spec §4.4): a four-region, 16-bit byte-addressed
// memory model — Input Process Image at 0x0000, Output Process Image at
// 0x1000, Work Memory at 0x2000 (subdivided per program in multi-task
// builds), Retentive Memory at 0x4000.
//
// There is no pack analogue for a segmented memory map: the teacher's VM
// (vm/mem.go) is a flat cell array with no address regions. The region
// layout, alignment rule and build order below are taken directly from the
// spec; only the error-accumulation shape (a capped ErrorList, mirroring
// asm/parser.go and internal/lex, internal/parse) is grounded on the
// teacher.
package symtab

import (
	"fmt"

	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/builtin"
)

// Region base addresses, spec §3 "Memory layout".
const (
	IPIBase    = 0x0000
	OPIBase    = 0x1000
	WorkBase   = 0x2000
	RetainBase = 0x4000

	IPISize  = 0x1000
	OPISize  = 0x1000
	WorkSize = 0x2000
)

// DefaultInitFlagAddress is the init-flag address used when the code
// generator runs at the process-wide default work base (spec §4.5 step 1).
const DefaultInitFlagAddress = 0x3FFF

// WorkRegionSize is the per-program work-memory window size used by
// internal/link to lay out disjoint windows for multi-task builds (spec
// §4.7 step 2).
const WorkRegionSize = 256

// Error is a single symbol-table diagnostic.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }

// ErrorList aggregates symtab errors, capped like the lexer and parser's
// error lists.
type ErrorList struct {
	Errors []*Error
}

const maxErrors = 10

func (l *ErrorList) add(line int, format string, args ...interface{}) bool {
	if len(l.Errors) >= maxErrors {
		return false
	}
	l.Errors = append(l.Errors, &Error{Line: line, Message: fmt.Sprintf(format, args...)})
	return true
}

func (l *ErrorList) Error() string {
	if len(l.Errors) == 0 {
		return ""
	}
	s := l.Errors[0].Error()
	for _, e := range l.Errors[1:] {
		s += "; " + e.Error()
	}
	return s
}

func (l *ErrorList) HasErrors() bool { return len(l.Errors) > 0 }

// Kind classifies a resolved symbol's storage.
type Kind int

const (
	KindVar Kind = iota
	KindFBInstance
	KindFunction
)

// Symbol is one resolved name: a variable, an FB instance, or a function.
type Symbol struct {
	Name     string
	Kind     Kind
	Addr     int
	Type     *ast.TypeRef // nil for FB instances and functions
	FBType   string       // set when Kind == KindFBInstance
	Size     int
	IsString bool
}

// fieldLayout is one member's resolved offset, size and type inside the
// flattened layout of a STRUCT or user FB (member name -> fieldLayout).
type fieldLayout struct {
	offset int
	size   int
	typ    *ast.TypeRef
}

// Table is the symbol table for one compilation unit, built against a
// specific program's work-memory base (spec §4.4's "parameterized by the
// program's work-memory base").
type Table struct {
	WorkBase int

	structs map[string]map[string]fieldLayout
	structSize map[string]int

	fbs     map[string]map[string]fieldLayout
	fbSize  map[string]int

	globals map[string]*Symbol
	funcs   map[string]*ast.Function
	// locals holds the per-function and per-program scratch scopes, keyed
	// by the owning function/program name.
	locals map[string]map[string]*Symbol

	nextWork int
	Errors   ErrorList
}

// New builds a symbol table for unit, allocating Work-region addresses
// starting at workBase. workBase is a construction parameter, never
// mutated afterwards (spec §9 "construction parameter, not mutable
// setting").
func New(unit *ast.Unit, workBase int) *Table {
	t := &Table{
		WorkBase:   workBase,
		structs:    map[string]map[string]fieldLayout{},
		structSize: map[string]int{},
		fbs:        map[string]map[string]fieldLayout{},
		fbSize:     map[string]int{},
		globals:    map[string]*Symbol{},
		funcs:      map[string]*ast.Function{},
		locals:     map[string]map[string]*Symbol{},
		nextWork:   workBase,
	}
	t.build(unit)
	return t
}

func align(size int) int {
	a := size
	if a > 4 {
		a = 4
	}
	if a < 1 {
		a = 1
	}
	return a
}

func roundUp(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

func (t *Table) build(unit *ast.Unit) {
	// (1) STRUCT definitions.
	for _, s := range unit.Structs {
		if _, dup := t.structs[s.Name]; dup {
			t.Errors.add(s.Line, "duplicate STRUCT name %q", s.Name)
			continue
		}
		layout, size := t.layoutMembers(s.Members, s.Line)
		t.structs[s.Name] = layout
		t.structSize[s.Name] = size
	}

	// (2) user FB definitions (input/output/in-out/local, concatenated).
	for _, fb := range unit.FBs {
		if _, dup := t.fbs[fb.Name]; dup {
			t.Errors.add(fb.Line, "duplicate FUNCTION_BLOCK name %q", fb.Name)
			continue
		}
		var all []*ast.VarDecl
		for _, blk := range fb.Blocks {
			all = append(all, blk.Decls...)
		}
		layout, size := t.layoutMembers(all, fb.Line)
		t.fbs[fb.Name] = layout
		t.fbSize[fb.Name] = size
	}

	// (3) global-var blocks.
	for _, blk := range unit.Globals {
		for _, d := range blk.Decls {
			t.allocGlobal(d)
		}
	}

	// (4) user-function parameters/locals + result slot.
	for _, fn := range unit.Functions {
		if _, dup := t.funcs[fn.Name]; dup {
			t.Errors.add(fn.Line, "duplicate FUNCTION name %q", fn.Name)
			continue
		}
		t.funcs[fn.Name] = fn
		scope := map[string]*Symbol{}
		for _, blk := range fn.Blocks {
			for _, d := range blk.Decls {
				t.allocLocal(scope, d)
			}
		}
		// Result slot bound to the function's own name.
		size := elementarySizeOf(fn.ReturnType)
		addr := t.allocWork(size)
		scope[fn.Name] = &Symbol{Name: fn.Name, Kind: KindVar, Addr: addr, Type: fn.ReturnType, Size: size}
		t.locals[fn.Name] = scope
	}

	// (5) per-program variable blocks.
	for _, p := range unit.Programs {
		scope := map[string]*Symbol{}
		for _, blk := range p.Blocks {
			for _, d := range blk.Decls {
				t.allocLocal(scope, d)
			}
		}
		t.locals[p.Name] = scope
	}
}

func (t *Table) layoutMembers(decls []*ast.VarDecl, line int) (map[string]fieldLayout, int) {
	layout := map[string]fieldLayout{}
	offset := 0
	for _, d := range decls {
		size := t.sizeOfTypeRef(d.Type)
		offset = roundUp(offset, align(size))
		if _, dup := layout[d.Name]; dup {
			t.Errors.add(line, "duplicate member name %q", d.Name)
			continue
		}
		layout[d.Name] = fieldLayout{offset: offset, size: size, typ: d.Type}
		offset += size
	}
	return layout, offset
}

func (t *Table) sizeOfTypeRef(tr *ast.TypeRef) int {
	if tr == nil {
		return 4
	}
	switch tr.Kind {
	case ast.TypeElementary:
		return tr.Elem.Size()
	case ast.TypeArray:
		n := 1
		for _, d := range tr.Dims {
			n *= d.Len()
		}
		return n * t.sizeOfTypeRef(tr.ArrElem)
	case ast.TypeNamed:
		if sz, ok := t.structSize[tr.Name]; ok {
			return sz
		}
		if sz, ok := t.fbSize[tr.Name]; ok {
			return sz
		}
		if d, ok := builtin.LookupFB(tr.Name); ok {
			return d.Size
		}
		t.Errors.add(tr.Line, "reference to undefined type %q", tr.Name)
		return 4
	}
	return 4
}

func elementarySizeOf(tr *ast.TypeRef) int {
	if tr == nil {
		return 4
	}
	if tr.Kind == ast.TypeElementary {
		return tr.Elem.Size()
	}
	return 4
}

// allocGlobal assigns an address to one global VAR_GLOBAL declaration: an
// I/O-mapped slot in IPI/OPI if the declaration carries an AT clause,
// otherwise an aligned Work slot.
func (t *Table) allocGlobal(d *ast.VarDecl) {
	if _, dup := t.globals[d.Name]; dup {
		t.Errors.add(d.Line, "duplicate global name %q", d.Name)
		return
	}
	size := t.sizeOfTypeRef(d.Type)
	sym := &Symbol{Name: d.Name, Kind: t.kindOfTypeRef(d.Type), Type: d.Type, Size: size, IsString: isString(d.Type)}
	if sym.Kind == KindFBInstance {
		sym.FBType = d.Type.Name
	}
	if d.IOAddr != nil {
		sym.Addr = t.ioAddress(*d.IOAddr)
	} else {
		sym.Addr = t.allocWork(size)
	}
	t.globals[d.Name] = sym
}

// kindOfTypeRef classifies a declaration's type as a plain variable or a
// function-block instance (user-defined or built-in), for Symbol.Kind.
func (t *Table) kindOfTypeRef(tr *ast.TypeRef) Kind {
	if tr == nil || tr.Kind != ast.TypeNamed {
		return KindVar
	}
	if _, ok := t.structs[tr.Name]; ok {
		return KindVar
	}
	if _, ok := t.fbs[tr.Name]; ok {
		return KindFBInstance
	}
	if _, ok := builtin.LookupFB(tr.Name); ok {
		return KindFBInstance
	}
	return KindVar
}

func (t *Table) allocLocal(scope map[string]*Symbol, d *ast.VarDecl) {
	if _, dup := scope[d.Name]; dup {
		t.Errors.add(d.Line, "duplicate local name %q", d.Name)
		return
	}
	size := t.sizeOfTypeRef(d.Type)
	addr := t.allocWork(size)
	kind := t.kindOfTypeRef(d.Type)
	sym := &Symbol{Name: d.Name, Kind: kind, Addr: addr, Type: d.Type, Size: size, IsString: isString(d.Type)}
	if kind == KindFBInstance {
		sym.FBType = d.Type.Name
	}
	scope[d.Name] = sym
}

func isString(tr *ast.TypeRef) bool {
	return tr != nil && tr.Kind == ast.TypeElementary && tr.Elem == ast.ElemString
}

// ioAddress computes the canonical address for an I/O-mapped declaration
// (spec §4.4): for BOOL, base + byteOffset*8 + bitOffset, materializing
// each bit into its own byte slot; otherwise the plain byte offset.
func (t *Table) ioAddress(a ast.IOAddr) int {
	var base int
	switch a.Area {
	case 'I':
		base = IPIBase
	case 'Q':
		base = OPIBase
	case 'M':
		base = t.WorkBase
	default:
		t.Errors.add(0, "invalid I/O area %q", string(a.Area))
		return 0
	}
	if a.Bit != nil {
		return base + a.Index*8 + *a.Bit
	}
	return base + a.Index
}

// allocWork reserves size bytes in Work memory, aligned to min(size, 4),
// and returns the allocated address.
func (t *Table) allocWork(size int) int {
	a := align(size)
	t.nextWork = roundUp(t.nextWork, a)
	addr := t.nextWork
	t.nextWork += size
	return addr
}

// NextFree returns the first unused Work-memory address, used by
// internal/codegen to place the string-literal pool immediately after the
// last declared variable (spec §4.5 step 2).
func (t *Table) NextFree() int { return t.nextWork }

// AllocFB reserves size bytes in Work memory for one built-in or user FB
// instance and returns its base address.
func (t *Table) AllocFB(size int) int { return t.allocWork(size) }

// StructSize returns the flattened size of a user STRUCT.
func (t *Table) StructSize(name string) (int, bool) {
	sz, ok := t.structSize[name]
	return sz, ok
}

// FBSize returns the flattened size of a user FUNCTION_BLOCK.
func (t *Table) FBSize(name string) (int, bool) {
	sz, ok := t.fbSize[name]
	return sz, ok
}

// LookupGlobal returns a global symbol by name.
func (t *Table) LookupGlobal(name string) (*Symbol, bool) {
	s, ok := t.globals[name]
	return s, ok
}

// LookupLocal returns a symbol from a function or program's local scope.
func (t *Table) LookupLocal(owner, name string) (*Symbol, bool) {
	scope, ok := t.locals[owner]
	if !ok {
		return nil, false
	}
	s, ok := scope[name]
	return s, ok
}

// LookupFunction returns a user function declaration by name.
func (t *Table) LookupFunction(name string) (*ast.Function, bool) {
	fn, ok := t.funcs[name]
	return fn, ok
}

// IsUserFB reports whether name is a known user FUNCTION_BLOCK type.
func (t *Table) IsUserFB(name string) bool {
	_, ok := t.fbs[name]
	return ok
}

// MemberPath is a resolved (address, size, type) triple for a member
// access chain.
type MemberPath struct {
	Addr int
	Size int
	Type *ast.TypeRef
}

// ResolveMemberPath implements spec §4.4's resolveMemberPath: given the
// base address/size of a root symbol (already resolved by the caller
// against its own scope) and a chain of member names, walks user STRUCTs,
// then user FBs, then built-in FBs (spec §4.4's lookup order) and returns
// the final address/size/type.
func (t *Table) ResolveMemberPath(baseAddr int, baseType *ast.TypeRef, path []string) (MemberPath, error) {
	addr := baseAddr
	typ := baseType
	size := t.sizeOfTypeRef(typ)
	for _, member := range path {
		typeName := namedTypeName(typ)
		if fields, ok := t.structs[typeName]; ok {
			f, ok := fields[member]
			if !ok {
				return MemberPath{}, fmt.Errorf("struct %q has no member %q", typeName, member)
			}
			addr += f.offset
			size = f.size
			typ = f.typ
			continue
		}
		if fields, ok := t.fbs[typeName]; ok {
			f, ok := fields[member]
			if !ok {
				return MemberPath{}, fmt.Errorf("function block %q has no member %q", typeName, member)
			}
			addr += f.offset
			size = f.size
			typ = f.typ
			continue
		}
		if def, ok := builtin.LookupFB(typeName); ok {
			m, ok := def.MemberOffset(member)
			if !ok {
				return MemberPath{}, fmt.Errorf("function block %q has no member %q", typeName, member)
			}
			addr += m.Offset
			size = m.Size
			typ = elementaryTypeOfSize(m.Size)
			continue
		}
		return MemberPath{}, fmt.Errorf("cannot resolve member %q: %q is not a STRUCT or FUNCTION_BLOCK", member, typeName)
	}
	return MemberPath{Addr: addr, Size: size, Type: typ}, nil
}

// elementaryTypeOfSize approximates a built-in FB member's ast.TypeRef from
// its byte size: internal/builtin's Member table carries only offset/size,
// not an ast.TypeRef, so callers that inspect MemberPath.Type (e.g. to tell
// a REAL from an integer member) get the smallest elementary type of that
// width. None of the built-in FBs expose a STRING member, so this never
// needs to special-case ast.ElemString.
func elementaryTypeOfSize(size int) *ast.TypeRef {
	elem := ast.ElemDint
	switch size {
	case 1:
		elem = ast.ElemBool
	case 2:
		elem = ast.ElemInt
	case 8:
		elem = ast.ElemLint
	}
	return &ast.TypeRef{Kind: ast.TypeElementary, Elem: elem}
}

func namedTypeName(tr *ast.TypeRef) string {
	if tr == nil || tr.Kind != ast.TypeNamed {
		return ""
	}
	return tr.Name
}

// LoadSuffix implements spec §4.4's load/store suffix rule: BOOL/8-bit
// ints -> 8, 16-bit ints -> 16, 32-bit ints/REAL/TIME -> 32, 64-bit
// ints/LREAL -> 64. For member access the suffix comes from the member's
// recorded size, so this takes a byte size directly.
func LoadSuffix(size int) string {
	switch size {
	case 1:
		return "8"
	case 2:
		return "16"
	case 8:
		return "64"
	default:
		return "32"
	}
}
