// Package codegen walks a compilation unit and one of its programs and
// emits ZPLC assembly text (spec §4.5), consumed by internal/asm.
//
// Grounded on spec §4.5 for the emission sequence (memory-map comment,
// function bodies, _start/_cycle split, statement lowering) and on the
// teacher's asm package for the textual shape codegen must produce
// (labels, bare mnemonics, "; @source N" annotations) — internal/codegen
// is effectively the producer side of internal/asm's documented input
// format (internal/asm/doc.go).
package codegen

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/builtin"
	"github.com/db47h/zplc/internal/symtab"
)

// Config configures one Generate call (spec §4.5 "code-generator
// configuration").
type Config struct {
	WorkMemoryBase        int // 0 means "use the symbol table's own WorkBase"
	InitFlagAddress       int // 0 means "derive from WorkMemoryBase"
	EmitSourceAnnotations bool
}

// Result is the generated assembly text plus the addresses a caller (the
// CLI's disassembler, or a test) may want to report.
type Result struct {
	Text            string
	InitFlagAddress int
	StringPool      map[string]int
}

// fbScope is pushed while inlining a function-block's body: bare
// identifier references inside the body resolve against the instance's
// member map before falling through to the enclosing owner's locals,
// exactly as spec §4.5's "Function-block call statement" describes.
type fbScope struct {
	typeName string
	base     int
}

type loopCtx struct {
	continueLabel string
	exitLabel     string
}

// Generator drives one program's code generation. It implements
// builtin.EmitContext so built-in FB/function emitters can append assembly
// and evaluate sub-expressions without importing this package.
type Generator struct {
	unit *ast.Unit
	tab  *symtab.Table
	cfg  Config

	buf          strings.Builder
	labelCounter int
	loopStack    []loopCtx
	fbStack      []fbScope
	owner        string // current function or program name, for local lookups

	stringPool      map[string]int
	stringPoolOrder []string

	errs []string
}

// Generate emits assembly text for prog (spec §4.5's top-level emission
// sequence), using tab (already built against prog's work-memory base) to
// resolve every identifier.
func Generate(unit *ast.Unit, prog *ast.Program, tab *symtab.Table, cfg Config) (*Result, error) {
	g := &Generator{
		unit:       unit,
		tab:        tab,
		cfg:        cfg,
		stringPool: map[string]int{},
	}

	workBase := cfg.WorkMemoryBase
	if workBase == 0 {
		workBase = tab.WorkBase
	}
	initFlag := cfg.InitFlagAddress
	if initFlag == 0 {
		if workBase == symtab.WorkBase {
			initFlag = symtab.DefaultInitFlagAddress
		} else {
			initFlag = workBase + symtab.WorkRegionSize - 1
		}
	}

	g.collectStrings(prog.Body)
	for _, fn := range unit.Functions {
		g.collectStrings(fn.Body)
	}

	g.emitMemoryMapComment(prog, initFlag)

	for _, fn := range unit.Functions {
		if err := g.emitFunction(fn); err != nil {
			return nil, err
		}
	}

	g.Emit("_start:")
	g.Emit(fmt.Sprintf("LOAD8 %d", initFlag))
	g.Emit("JRNZ _cycle")
	// First-scan initializers.
	if err := g.emitInitializers(prog); err != nil {
		return nil, err
	}
	g.emitStringPoolInit()
	g.Emit("PUSH8 1")
	g.Emit(fmt.Sprintf("STORE8 %d", initFlag))

	g.Emit("_cycle:")
	g.owner = prog.Name
	for _, s := range prog.Body {
		if err := g.emitStmt(s); err != nil {
			return nil, err
		}
	}
	g.Emit("HALT")

	if len(g.errs) > 0 {
		return nil, errors.Errorf("codegen: %s", strings.Join(g.errs, "; "))
	}

	return &Result{Text: g.buf.String(), InitFlagAddress: initFlag, StringPool: g.stringPool}, nil
}

func (g *Generator) error(line int, format string, args ...interface{}) {
	g.errs = append(g.errs, fmt.Sprintf("line %d: %s", line, fmt.Sprintf(format, args...)))
	g.Emit("; ERROR: " + fmt.Sprintf(format, args...))
}

// --- builtin.EmitContext ----------------------------------------------------

func (g *Generator) Emit(line string) {
	g.buf.WriteString(line)
	g.buf.WriteByte('\n')
}

func (g *Generator) NewLabel(prefix string) string {
	g.labelCounter++
	return fmt.Sprintf("%s_%d", prefix, g.labelCounter)
}

func (g *Generator) EmitExpr(e ast.Expr) error { return g.emitExpr(e) }

func (g *Generator) LoadSuffix(size int) string { return symtab.LoadSuffix(size) }

// --- memory map + string pool -----------------------------------------------

func (g *Generator) collectStrings(body []ast.Stmt) {
	var walk func(ast.Stmt)
	var walkExpr func(ast.Expr)
	walkExpr = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.StringLit:
			g.internString(n.Value)
		case *ast.Member:
			walkExpr(n.Object)
		case *ast.Index:
			walkExpr(n.Array)
			for _, i := range n.Indices {
				walkExpr(i)
			}
		case *ast.Unary:
			walkExpr(n.Operand)
		case *ast.Binary:
			walkExpr(n.LHS)
			walkExpr(n.RHS)
		case *ast.Call:
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ast.FBCall:
			for _, p := range n.Params {
				walkExpr(p.Value)
			}
		case *ast.ArrayLit:
			for _, el := range n.Elems {
				walkExpr(el)
			}
		}
	}
	walk = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.Assign:
			walkExpr(n.Target)
			walkExpr(n.Value)
		case *ast.If:
			walkExpr(n.Cond)
			for _, b := range n.Body {
				walk(b)
			}
			for _, ei := range n.ElsIfs {
				walkExpr(ei.Cond)
				for _, b := range ei.Body {
					walk(b)
				}
			}
			for _, b := range n.Else {
				walk(b)
			}
		case *ast.While:
			walkExpr(n.Cond)
			for _, b := range n.Body {
				walk(b)
			}
		case *ast.For:
			walkExpr(n.Start)
			walkExpr(n.End)
			if n.Step != nil {
				walkExpr(n.Step)
			}
			for _, b := range n.Body {
				walk(b)
			}
		case *ast.Repeat:
			for _, b := range n.Body {
				walk(b)
			}
			walkExpr(n.Cond)
		case *ast.Case:
			walkExpr(n.Selector)
			for _, br := range n.Branches {
				for _, l := range br.Labels {
					if l.Value != nil {
						walkExpr(l.Value)
					}
					if l.IsRange {
						walkExpr(l.RangeLo)
						walkExpr(l.RangeHi)
					}
				}
				for _, b := range br.Body {
					walk(b)
				}
			}
			for _, b := range n.Else {
				walk(b)
			}
		case *ast.FBCallStmt:
			for _, p := range n.Call.Params {
				walkExpr(p.Value)
			}
		}
	}
	for _, s := range body {
		walk(s)
	}
}

func (g *Generator) internString(v string) int {
	if addr, ok := g.stringPool[v]; ok {
		return addr
	}
	addr := g.tab.AllocFB(2 + 2 + len(v) + 1) // [len:u16][cap:u16][bytes...][null]
	g.stringPool[v] = addr
	g.stringPoolOrder = append(g.stringPoolOrder, v)
	return addr
}

func (g *Generator) emitMemoryMapComment(prog *ast.Program, initFlag int) {
	g.Emit(fmt.Sprintf("; memory map: init_flag=0x%04X program=%s", initFlag, prog.Name))
	for _, blk := range prog.Blocks {
		for _, d := range blk.Decls {
			if sym, ok := g.tab.LookupLocal(prog.Name, d.Name); ok {
				g.Emit(fmt.Sprintf("; var %s @0x%04X size=%d", d.Name, sym.Addr, sym.Size))
			}
		}
	}
	for _, v := range g.stringPoolOrder {
		g.Emit(fmt.Sprintf("; string %q @0x%04X", v, g.stringPool[v]))
	}
}

func (g *Generator) emitStringPoolInit() {
	for _, v := range g.stringPoolOrder {
		addr := g.stringPool[v]
		g.Emit(fmt.Sprintf("PUSH16 %d", addr))
		g.Emit(fmt.Sprintf("PUSH16 %d", len(v)))
		g.Emit("STORE16 " + fmt.Sprint(addr))
		g.Emit(fmt.Sprintf("PUSH16 %d", len(v)))
		g.Emit("STORE16 " + fmt.Sprint(addr+2))
		for i := 0; i < len(v); i++ {
			g.Emit(fmt.Sprintf("PUSH8 %d", v[i]))
			g.Emit(fmt.Sprintf("STORE8 %d", addr+4+i))
		}
		g.Emit("PUSH8 0")
		g.Emit(fmt.Sprintf("STORE8 %d", addr+4+len(v)))
	}
}

// emitInitializers emits the assignment sequence for every declared
// variable with a non-nil initializer, run exactly once on the first scan
// (spec §4.5 step 5).
func (g *Generator) emitInitializers(prog *ast.Program) error {
	g.owner = prog.Name
	for _, blk := range prog.Blocks {
		for _, d := range blk.Decls {
			if d.Init == nil {
				continue
			}
			target := ast.NewIdent(d.Name, d.Line)
			if err := g.emitAssign(ast.NewAssign(target, d.Init, d.Line)); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- functions ---------------------------------------------------------------

func (g *Generator) emitFunction(fn *ast.Function) error {
	g.Emit("func_" + fn.Name + ":")
	prevOwner := g.owner
	g.owner = fn.Name
	defer func() { g.owner = prevOwner }()

	// Pop arguments in reverse into their local slots.
	var params []*ast.VarDecl
	for _, blk := range fn.Blocks {
		if blk.Section == ast.SectionInput {
			params = append(params, blk.Decls...)
		}
	}
	for i := len(params) - 1; i >= 0; i-- {
		sym, ok := g.tab.LookupLocal(fn.Name, params[i].Name)
		if !ok {
			continue
		}
		g.Emit(fmt.Sprintf("STORE%s %d", symtab.LoadSuffix(sym.Size), sym.Addr))
	}
	for _, s := range fn.Body {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	g.Emit("func_epilogue_" + fn.Name + ":")
	sym, ok := g.tab.LookupLocal(fn.Name, fn.Name)
	if ok {
		g.Emit(fmt.Sprintf("LOAD%s %d", symtab.LoadSuffix(sym.Size), sym.Addr))
	}
	g.Emit("RET")
	return nil
}

// --- statements ----------------------------------------------------------

func (g *Generator) emitStmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.Assign:
		return g.emitAssign(n)
	case *ast.If:
		return g.emitIf(n)
	case *ast.While:
		return g.emitWhile(n)
	case *ast.For:
		return g.emitFor(n)
	case *ast.Repeat:
		return g.emitRepeat(n)
	case *ast.Case:
		return g.emitCase(n)
	case *ast.Exit:
		if len(g.loopStack) == 0 {
			g.error(n.SrcLine(), "EXIT outside any loop")
			return nil
		}
		g.Emit("JMP " + g.loopStack[len(g.loopStack)-1].exitLabel)
		return nil
	case *ast.Continue:
		if len(g.loopStack) == 0 {
			g.error(n.SrcLine(), "CONTINUE outside any loop")
			return nil
		}
		g.Emit("JMP " + g.loopStack[len(g.loopStack)-1].continueLabel)
		return nil
	case *ast.Return:
		if g.owner != "" {
			if _, ok := g.tab.LookupFunction(g.owner); ok {
				g.Emit("JMP func_epilogue_" + g.owner)
				return nil
			}
		}
		g.Emit("HALT")
		return nil
	case *ast.FBCallStmt:
		return g.emitFBCall(n.Call)
	}
	return errors.Errorf("codegen: unhandled statement kind %d", ast.Kind(s))
}

func (g *Generator) emitAssign(n *ast.Assign) error {
	lv, err := g.resolveLValue(n.Target)
	if err != nil {
		g.error(n.SrcLine(), "%s", err)
		return nil
	}
	if lv.isString {
		// STRING targets: the RHS must already be an address (string
		// variables are passed by address).
		if err := g.emitExpr(n.Value); err != nil {
			return err
		}
		if lv.mode == addrConst {
			g.Emit(fmt.Sprintf("STORE16 %d", lv.constAddr))
		} else {
			g.Emit("STOREI16")
		}
		return nil
	}
	if lv.mode == addrConst {
		if err := g.emitExpr(n.Value); err != nil {
			return err
		}
		g.Emit(fmt.Sprintf("STORE%s %d", symtab.LoadSuffix(lv.size), lv.constAddr))
		return nil
	}
	// Runtime-computed address already sitting on the stack (array index);
	// evaluate the value above it, then indirect-store.
	if err := g.emitExpr(n.Value); err != nil {
		return err
	}
	g.Emit("STOREI" + symtab.LoadSuffix(lv.size))
	return nil
}

func (g *Generator) emitIf(n *ast.If) error {
	endLabel := g.NewLabel("end_if")
	if err := g.emitExpr(n.Cond); err != nil {
		return err
	}
	nextLabel := g.NewLabel("elsif")
	g.Emit("JZ " + nextLabel)
	for _, s := range n.Body {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	g.Emit("JMP " + endLabel)
	g.Emit(nextLabel + ":")
	for _, ei := range n.ElsIfs {
		if err := g.emitExpr(ei.Cond); err != nil {
			return err
		}
		next := g.NewLabel("elsif")
		g.Emit("JZ " + next)
		for _, s := range ei.Body {
			if err := g.emitStmt(s); err != nil {
				return err
			}
		}
		g.Emit("JMP " + endLabel)
		g.Emit(next + ":")
	}
	for _, s := range n.Else {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	g.Emit(endLabel + ":")
	return nil
}

func (g *Generator) emitWhile(n *ast.While) error {
	loop := g.NewLabel("while_loop")
	end := g.NewLabel("while_end")
	g.loopStack = append(g.loopStack, loopCtx{continueLabel: loop, exitLabel: end})
	defer func() { g.loopStack = g.loopStack[:len(g.loopStack)-1] }()

	g.Emit(loop + ":")
	if err := g.emitExpr(n.Cond); err != nil {
		return err
	}
	g.Emit("JZ " + end)
	for _, s := range n.Body {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	g.Emit("JMP " + loop)
	g.Emit(end + ":")
	return nil
}

func (g *Generator) emitFor(n *ast.For) error {
	loop := g.NewLabel("for_loop")
	cont := g.NewLabel("for_continue")
	end := g.NewLabel("for_end")
	g.loopStack = append(g.loopStack, loopCtx{continueLabel: cont, exitLabel: end})
	defer func() { g.loopStack = g.loopStack[:len(g.loopStack)-1] }()

	sym, ok := g.resolveSimpleIdent(n.Counter)
	if !ok {
		g.error(n.SrcLine(), "undefined FOR counter %q", n.Counter)
		return nil
	}
	if err := g.emitExpr(n.Start); err != nil {
		return err
	}
	g.Emit(fmt.Sprintf("STORE%s %d", symtab.LoadSuffix(sym.size), sym.addr))

	g.Emit(loop + ":")
	g.Emit(fmt.Sprintf("LOAD%s %d", symtab.LoadSuffix(sym.size), sym.addr))
	if err := g.emitExpr(n.End); err != nil {
		return err
	}
	g.Emit("GT")
	g.Emit("JNZ " + end)
	for _, s := range n.Body {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	g.Emit(cont + ":")
	g.Emit(fmt.Sprintf("LOAD%s %d", symtab.LoadSuffix(sym.size), sym.addr))
	if n.Step != nil {
		if err := g.emitExpr(n.Step); err != nil {
			return err
		}
	} else {
		g.Emit("PUSH8 1")
	}
	g.Emit("ADD")
	g.Emit(fmt.Sprintf("STORE%s %d", symtab.LoadSuffix(sym.size), sym.addr))
	g.Emit("JMP " + loop)
	g.Emit(end + ":")
	return nil
}

func (g *Generator) emitRepeat(n *ast.Repeat) error {
	loop := g.NewLabel("repeat_loop")
	cont := g.NewLabel("repeat_continue")
	end := g.NewLabel("repeat_end")
	g.loopStack = append(g.loopStack, loopCtx{continueLabel: cont, exitLabel: end})
	defer func() { g.loopStack = g.loopStack[:len(g.loopStack)-1] }()

	g.Emit(loop + ":")
	for _, s := range n.Body {
		if err := g.emitStmt(s); err != nil {
			return err
		}
	}
	g.Emit(cont + ":")
	if err := g.emitExpr(n.Cond); err != nil {
		return err
	}
	g.Emit("JZ " + loop)
	g.Emit(end + ":")
	return nil
}

func (g *Generator) emitCase(n *ast.Case) error {
	end := g.NewLabel("case_end")
	elseLabel := g.NewLabel("case_else")
	if err := g.emitExpr(n.Selector); err != nil {
		return err
	}
	var branchLabels []string
	for range n.Branches {
		branchLabels = append(branchLabels, g.NewLabel("case_branch"))
	}
	for i, br := range n.Branches {
		for _, l := range br.Labels {
			if l.IsRange {
				g.Emit("DUP")
				if err := g.emitExpr(l.RangeLo); err != nil {
					return err
				}
				g.Emit("GE")
				skip := g.NewLabel("case_range_skip")
				g.Emit("JRZ " + skip)
				g.Emit("DUP")
				if err := g.emitExpr(l.RangeHi); err != nil {
					return err
				}
				g.Emit("LE")
				g.Emit("JNZ " + branchLabels[i])
				g.Emit(skip + ":")
			} else {
				g.Emit("DUP")
				if err := g.emitExpr(l.Value); err != nil {
					return err
				}
				g.Emit("EQ")
				g.Emit("JNZ " + branchLabels[i])
			}
		}
	}
	if len(n.Else) > 0 {
		g.Emit("JMP " + elseLabel)
	} else {
		g.Emit("DROP")
		g.Emit("JMP " + end)
	}
	for i, br := range n.Branches {
		g.Emit(branchLabels[i] + ":")
		g.Emit("DROP")
		for _, s := range br.Body {
			if err := g.emitStmt(s); err != nil {
				return err
			}
		}
		g.Emit("JMP " + end)
	}
	if len(n.Else) > 0 {
		g.Emit(elseLabel + ":")
		g.Emit("DROP")
		for _, s := range n.Else {
			if err := g.emitStmt(s); err != nil {
				return err
			}
		}
	}
	g.Emit(end + ":")
	return nil
}

// --- function-block calls ----------------------------------------------------

func (g *Generator) emitFBCall(call *ast.FBCall) error {
	sym, ok := g.resolveSimpleIdent(call.Name)
	if !ok {
		g.error(call.SrcLine(), "undefined function block instance %q", call.Name)
		return nil
	}
	typeName := sym.typeName
	if g.tab.IsUserFB(typeName) {
		g.fbStack = append(g.fbStack, fbScope{typeName: typeName, base: sym.addr})
		defer func() { g.fbStack = g.fbStack[:len(g.fbStack)-1] }()
		for _, p := range call.Params {
			mp, err := g.tab.ResolveMemberPath(sym.addr, &ast.TypeRef{Kind: ast.TypeNamed, Name: typeName}, []string{p.Name})
			if err != nil {
				g.error(call.SrcLine(), "%s", err)
				continue
			}
			if err := g.emitExpr(p.Value); err != nil {
				return err
			}
			g.Emit(fmt.Sprintf("STORE%s %d", symtab.LoadSuffix(mp.Size), mp.Addr))
		}
		fb := g.lookupFBDecl(typeName)
		if fb != nil {
			for _, s := range fb.Body {
				if err := g.emitStmt(s); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if d, ok := builtin.LookupFB(typeName); ok {
		return d.Emit(g, sym.addr, call.Params)
	}
	g.error(call.SrcLine(), "unknown function block type %q", typeName)
	return nil
}

func (g *Generator) lookupFBDecl(name string) *ast.FunctionBlock {
	for _, fb := range g.unit.FBs {
		if fb.Name == name {
			return fb
		}
	}
	return nil
}

// --- expressions ---------------------------------------------------------

func (g *Generator) emitExpr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.BoolLit:
		if n.Value {
			g.Emit("PUSH8 1")
		} else {
			g.Emit("PUSH8 0")
		}
		return nil
	case *ast.IntLit:
		g.emitIntPush(n.Value)
		return nil
	case *ast.RealLit:
		bits := math.Float32bits(float32(n.Value))
		g.Emit(fmt.Sprintf("PUSH32 %d", bits))
		return nil
	case *ast.TimeLit:
		g.Emit(fmt.Sprintf("PUSH32 %d", n.Millis))
		return nil
	case *ast.StringLit:
		addr := g.internString(n.Value)
		g.Emit(fmt.Sprintf("PUSH16 %d", addr))
		return nil
	case *ast.Ident, *ast.Member, *ast.Index:
		return g.emitLoad(e)
	case *ast.Unary:
		if err := g.emitExpr(n.Operand); err != nil {
			return err
		}
		switch n.Op {
		case ast.UnaryNot:
			g.Emit("NOT")
			g.Emit("PUSH8 1")
			g.Emit("AND")
		case ast.UnaryNeg:
			g.Emit("NEG")
		}
		return nil
	case *ast.Binary:
		return g.emitBinary(n)
	case *ast.Call:
		return g.emitCall(n)
	case *ast.FBCall:
		return g.emitFBCall(n)
	case *ast.ArrayLit:
		for _, el := range n.Elems {
			if err := g.emitExpr(el); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.Errorf("codegen: unhandled expression kind %d", ast.EKind(e))
}

func (g *Generator) emitIntPush(v int64) {
	switch {
	case v >= -128 && v <= 127:
		g.Emit(fmt.Sprintf("PUSH8 %d", v))
	case v >= -32768 && v <= 65535:
		g.Emit(fmt.Sprintf("PUSH16 %d", v))
	default:
		g.Emit(fmt.Sprintf("PUSH32 %d", uint32(v)))
	}
}

func (g *Generator) emitLoad(e ast.Expr) error {
	lv, err := g.resolveLValue(e)
	if err != nil {
		g.error(e.SrcLine(), "%s", err)
		return nil
	}
	if lv.isString {
		if lv.mode == addrConst {
			g.Emit(fmt.Sprintf("PUSH16 %d", lv.constAddr))
		}
		return nil
	}
	if lv.mode == addrConst {
		g.Emit(fmt.Sprintf("LOAD%s %d", symtab.LoadSuffix(lv.size), lv.constAddr))
		return nil
	}
	g.Emit("LOADI" + symtab.LoadSuffix(lv.size))
	return nil
}

func (g *Generator) emitBinary(n *ast.Binary) error {
	if err := g.emitExpr(n.LHS); err != nil {
		return err
	}
	if err := g.emitExpr(n.RHS); err != nil {
		return err
	}
	isReal := g.isRealExpr(n.LHS) || g.isRealExpr(n.RHS)
	isStr := g.isStringExpr(n.LHS) || g.isStringExpr(n.RHS)
	switch n.Op {
	case ast.BinOr:
		g.Emit("OR")
	case ast.BinXor:
		g.Emit("XOR")
	case ast.BinAnd:
		g.Emit("AND")
	case ast.BinEq:
		if isStr {
			g.Emit("STRCMP")
			g.Emit("PUSH8 0")
			g.Emit("EQ")
		} else {
			g.Emit("EQ")
		}
	case ast.BinNe:
		if isStr {
			g.Emit("STRCMP")
			g.Emit("PUSH8 0")
			g.Emit("NE")
		} else {
			g.Emit("NE")
		}
	case ast.BinLt:
		g.Emit("LT")
	case ast.BinLe:
		g.Emit("LE")
	case ast.BinGt:
		g.Emit("GT")
	case ast.BinGe:
		g.Emit("GE")
	case ast.BinAdd:
		if isStr {
			g.error(n.SrcLine(), "string concatenation must use CONCAT, not +")
			return nil
		}
		if isReal {
			g.Emit("ADDF")
		} else {
			g.Emit("ADD")
		}
	case ast.BinSub:
		if isReal {
			g.Emit("SUBF")
		} else {
			g.Emit("SUB")
		}
	case ast.BinMul:
		if isReal {
			g.Emit("MULF")
		} else {
			g.Emit("MUL")
		}
	case ast.BinDiv:
		if isReal {
			g.Emit("DIVF")
		} else {
			g.Emit("DIV")
		}
	case ast.BinMod:
		g.Emit("MOD")
	}
	return nil
}

func (g *Generator) isRealExpr(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.RealLit:
		return true
	case *ast.Ident:
		if sym, ok := g.resolveSimpleIdent(n.Name); ok {
			return sym.isReal
		}
	case *ast.Binary:
		return g.isRealExpr(n.LHS) || g.isRealExpr(n.RHS)
	case *ast.Unary:
		return g.isRealExpr(n.Operand)
	}
	return false
}

func (g *Generator) isStringExpr(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.StringLit:
		return true
	case *ast.Ident:
		if sym, ok := g.resolveSimpleIdent(n.Name); ok {
			return sym.isString
		}
	}
	return false
}

func (g *Generator) emitCall(n *ast.Call) error {
	if fn, ok := g.tab.LookupFunction(n.Name); ok {
		for _, a := range n.Args {
			if err := g.emitExpr(a); err != nil {
				return err
			}
		}
		g.Emit("CALL func_" + fn.Name)
		return nil
	}
	if d, ok := builtin.LookupFunction(n.Name); ok {
		return d.Emit(g, n.Args)
	}
	g.error(n.SrcLine(), "unknown function %q", n.Name)
	return nil
}

// --- identifier resolution --------------------------------------------------

// simpleSym is the flattened resolution of a bare identifier: either a
// plain variable or a function-block instance.
type simpleSym struct {
	addr     int
	size     int
	isReal   bool
	isString bool
	typeName string // non-empty when this identifier names an FB instance
}

func (g *Generator) resolveSimpleIdent(name string) (simpleSym, bool) {
	if len(g.fbStack) > 0 {
		top := g.fbStack[len(g.fbStack)-1]
		mp, err := g.tab.ResolveMemberPath(top.base, &ast.TypeRef{Kind: ast.TypeNamed, Name: top.typeName}, []string{name})
		if err == nil {
			return simpleSym{addr: mp.Addr, size: mp.Size, isReal: isRealType(mp.Type)}, true
		}
	}
	if sym, ok := g.tab.LookupLocal(g.owner, name); ok {
		return simpleSym{addr: sym.Addr, size: sym.Size, isReal: isRealType(sym.Type), isString: sym.IsString, typeName: fbTypeName(sym)}, true
	}
	if sym, ok := g.tab.LookupGlobal(name); ok {
		return simpleSym{addr: sym.Addr, size: sym.Size, isReal: isRealType(sym.Type), isString: sym.IsString, typeName: fbTypeName(sym)}, true
	}
	return simpleSym{}, false
}

func fbTypeName(sym *symtab.Symbol) string {
	if sym.Kind == symtab.KindFBInstance {
		return sym.FBType
	}
	if sym.Type != nil && sym.Type.Kind == ast.TypeNamed {
		return sym.Type.Name
	}
	return ""
}

func isRealType(tr *ast.TypeRef) bool {
	return tr != nil && tr.Kind == ast.TypeElementary && tr.Elem.IsReal()
}

// --- lvalue resolution -------------------------------------------------------

type addrMode int

const (
	addrConst addrMode = iota
	addrStack
)

type lvalue struct {
	mode      addrMode
	constAddr int
	size      int
	isString  bool
}

func (g *Generator) resolveLValue(e ast.Expr) (lvalue, error) {
	switch n := e.(type) {
	case *ast.Ident:
		sym, ok := g.resolveSimpleIdent(n.Name)
		if !ok {
			return lvalue{}, fmt.Errorf("undefined identifier %q", n.Name)
		}
		return lvalue{mode: addrConst, constAddr: sym.addr, size: sym.size, isString: sym.isString}, nil
	case *ast.Member:
		path, root, err := g.flattenMember(n)
		if err != nil {
			return lvalue{}, err
		}
		mp, err := g.tab.ResolveMemberPath(root.addr, &ast.TypeRef{Kind: ast.TypeNamed, Name: root.typeName}, path)
		if err != nil {
			return lvalue{}, err
		}
		return lvalue{mode: addrConst, constAddr: mp.Addr, size: mp.Size, isString: isStringType(mp.Type)}, nil
	case *ast.Index:
		return g.resolveIndexLValue(n)
	}
	return lvalue{}, fmt.Errorf("unsupported assignment target")
}

func isStringType(tr *ast.TypeRef) bool {
	return tr != nil && tr.Kind == ast.TypeElementary && tr.Elem == ast.ElemString
}

// flattenMember walks a chain of `.member` accesses down to its root
// identifier, returning the member-name path and the root's resolution.
func (g *Generator) flattenMember(n *ast.Member) ([]string, simpleSym, error) {
	var path []string
	var cur ast.Expr = n
	for {
		m, ok := cur.(*ast.Member)
		if !ok {
			break
		}
		path = append([]string{m.Name}, path...)
		cur = m.Object
	}
	ident, ok := cur.(*ast.Ident)
	if !ok {
		return nil, simpleSym{}, fmt.Errorf("unsupported member access root")
	}
	root, ok := g.resolveSimpleIdent(ident.Name)
	if !ok {
		return nil, simpleSym{}, fmt.Errorf("undefined identifier %q", ident.Name)
	}
	return path, root, nil
}

// resolveIndexLValue emits the address computation sequence for an array
// element — base + linearized index * element size, using per-dimension
// strides (up-lo+1) — and returns an addrStack lvalue whose address sits
// on top of the data stack (spec §4.5 "Assignment").
func (g *Generator) resolveIndexLValue(n *ast.Index) (lvalue, error) {
	ident, ok := n.Array.(*ast.Ident)
	if !ok {
		return lvalue{}, fmt.Errorf("array index target must be a simple array variable")
	}
	sym, ok := g.resolveSimpleIdent(ident.Name)
	if !ok {
		return lvalue{}, fmt.Errorf("undefined identifier %q", ident.Name)
	}
	var tr *ast.TypeRef
	if local, ok := g.tab.LookupLocal(g.owner, ident.Name); ok {
		tr = local.Type
	} else if gl, ok := g.tab.LookupGlobal(ident.Name); ok {
		tr = gl.Type
	}
	if tr == nil || tr.Kind != ast.TypeArray {
		return lvalue{}, fmt.Errorf("%q is not an array", ident.Name)
	}
	elemSize := 4
	if tr.ArrElem != nil && tr.ArrElem.Kind == ast.TypeElementary {
		elemSize = tr.ArrElem.Elem.Size()
	}
	if elemSize == 8 {
		return lvalue{}, fmt.Errorf("array of %q has no indirect LOADI/STOREI opcode (8-byte elements are not indexable)", ident.Name)
	}
	g.Emit(fmt.Sprintf("PUSH16 %d", sym.addr))
	for i, idx := range n.Indices {
		if err := g.emitExpr(idx); err != nil {
			return lvalue{}, err
		}
		g.Emit(fmt.Sprintf("PUSH8 %d", tr.Dims[i].Lo))
		g.Emit("SUB")
		stride := elemSize
		for j := i + 1; j < len(tr.Dims); j++ {
			stride *= tr.Dims[j].Len()
		}
		g.Emit(fmt.Sprintf("PUSH16 %d", stride))
		g.Emit("MUL")
		g.Emit("ADD")
	}
	return lvalue{mode: addrStack, size: elemSize}, nil
}
