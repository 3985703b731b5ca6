package codegen_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/codegen"
	"github.com/db47h/zplc/internal/symtab"
)

func dwordType() *ast.TypeRef { return &ast.TypeRef{Kind: ast.TypeElementary, Elem: ast.ElemDint} }
func boolType() *ast.TypeRef  { return &ast.TypeRef{Kind: ast.TypeElementary, Elem: ast.ElemBool} }

func buildProgram(t *testing.T, prog *ast.Program, extraGlobals []*ast.VarBlock) (*ast.Unit, *symtab.Table) {
	t.Helper()
	unit := &ast.Unit{Globals: extraGlobals, Programs: []*ast.Program{prog}}
	tab := symtab.New(unit, symtab.WorkBase)
	if tab.Errors.HasErrors() {
		t.Fatalf("unexpected symtab errors: %s", tab.Errors.Error())
	}
	return unit, tab
}

func TestGenerateSimpleAssignment(t *testing.T) {
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "X", Type: dwordType()},
		}}},
		Body: []ast.Stmt{
			ast.NewAssign(ast.NewIdent("X", 1), ast.NewIntLit(5, 1), 1),
		},
	}
	unit, tab := buildProgram(t, prog, nil)
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "PUSH8 5") {
		t.Fatalf("expected literal push, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "STORE32") {
		t.Fatalf("expected a 32-bit store for a DINT target, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "_start:") || !strings.Contains(res.Text, "_cycle:") {
		t.Fatalf("expected _start/_cycle split, got:\n%s", res.Text)
	}
}

func TestGenerateForLoopSum(t *testing.T) {
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "I", Type: dwordType()},
			{Name: "Sum", Type: dwordType()},
		}}},
		Body: []ast.Stmt{
			ast.NewFor("I", ast.NewIntLit(1, 1), ast.NewIntLit(10, 1), nil,
				[]ast.Stmt{
					ast.NewAssign(
						ast.NewIdent("Sum", 1),
						ast.NewBinary(ast.BinAdd, ast.NewIdent("Sum", 1), ast.NewIdent("I", 1), 1),
						1,
					),
				}, 1),
		},
	}
	unit, tab := buildProgram(t, prog, nil)
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "for_loop_") {
		t.Fatalf("expected a FOR loop label, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "ADD") {
		t.Fatalf("expected accumulation via ADD, got:\n%s", res.Text)
	}
	if strings.Count(res.Text, "for_end_") == 0 {
		t.Fatalf("expected a FOR loop exit label, got:\n%s", res.Text)
	}
}

func TestGenerateIfElsif(t *testing.T) {
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "A", Type: boolType()},
			{Name: "B", Type: boolType()},
			{Name: "Out", Type: boolType()},
		}}},
		Body: []ast.Stmt{
			ast.NewIf(
				ast.NewIdent("A", 1),
				[]ast.Stmt{ast.NewAssign(ast.NewIdent("Out", 1), ast.NewBoolLit(true, 1), 1)},
				[]ast.ElsIf{{
					Cond: ast.NewIdent("B", 1),
					Body: []ast.Stmt{ast.NewAssign(ast.NewIdent("Out", 1), ast.NewBoolLit(false, 1), 1)},
				}},
				nil,
				1,
			),
		},
	}
	unit, tab := buildProgram(t, prog, nil)
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "elsif_") {
		t.Fatalf("expected an elsif label, got:\n%s", res.Text)
	}
	if strings.Count(res.Text, "JZ ") < 2 {
		t.Fatalf("expected a conditional jump per branch, got:\n%s", res.Text)
	}
}

func TestGenerateFBCallInlinesBuiltinTimer(t *testing.T) {
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "Start", Type: boolType()},
			{Name: "MyTimer", Type: &ast.TypeRef{Kind: ast.TypeNamed, Name: "TON"}},
		}}},
		Body: []ast.Stmt{
			ast.NewFBCallStmt(ast.NewFBCall("MyTimer", []ast.Param{
				{Name: "IN", Value: ast.NewIdent("Start", 1)},
				{Name: "PT", Value: ast.NewTimeLit(5000, 1)},
			}, 1), 1),
		},
	}
	unit, tab := buildProgram(t, prog, nil)
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "GET_TICKS") {
		t.Fatalf("expected the inlined TON body to call GET_TICKS, got:\n%s", res.Text)
	}
}

func TestGenerateCaseWithRange(t *testing.T) {
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "Sel", Type: dwordType()},
			{Name: "Out", Type: dwordType()},
		}}},
		Body: []ast.Stmt{
			ast.NewCase(
				ast.NewIdent("Sel", 1),
				[]ast.CaseBranch{
					{
						Labels: []ast.CaseLabel{{IsRange: true, RangeLo: ast.NewIntLit(1, 1), RangeHi: ast.NewIntLit(5, 1)}},
						Body:   []ast.Stmt{ast.NewAssign(ast.NewIdent("Out", 1), ast.NewIntLit(1, 1), 1)},
					},
					{
						Labels: []ast.CaseLabel{{Value: ast.NewIntLit(10, 1)}},
						Body:   []ast.Stmt{ast.NewAssign(ast.NewIdent("Out", 1), ast.NewIntLit(2, 1), 1)},
					},
				},
				[]ast.Stmt{ast.NewAssign(ast.NewIdent("Out", 1), ast.NewIntLit(0, 1), 1)},
				1,
			),
		},
	}
	unit, tab := buildProgram(t, prog, nil)
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "case_branch_") || !strings.Contains(res.Text, "case_else_") {
		t.Fatalf("expected branch and else labels, got:\n%s", res.Text)
	}
}

func TestGenerateFunctionCallToUserFunction(t *testing.T) {
	fn := &ast.Function{
		Name:       "Double",
		ReturnType: dwordType(),
		Blocks: []*ast.VarBlock{{Section: ast.SectionInput, Decls: []*ast.VarDecl{
			{Name: "X", Type: dwordType()},
		}}},
		Body: []ast.Stmt{
			ast.NewAssign(ast.NewIdent("Double", 1),
				ast.NewBinary(ast.BinMul, ast.NewIdent("X", 1), ast.NewIntLit(2, 1), 1), 1),
			ast.NewReturn(1),
		},
	}
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "Y", Type: dwordType()},
		}}},
		Body: []ast.Stmt{
			ast.NewAssign(ast.NewIdent("Y", 1), ast.NewCall("Double", []ast.Expr{ast.NewIntLit(21, 1)}, 1), 1),
		},
	}
	unit := &ast.Unit{Functions: []*ast.Function{fn}, Programs: []*ast.Program{prog}}
	tab := symtab.New(unit, symtab.WorkBase)
	if tab.Errors.HasErrors() {
		t.Fatalf("unexpected symtab errors: %s", tab.Errors.Error())
	}
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Text, "func_Double:") {
		t.Fatalf("expected a func_Double label, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "CALL func_Double") {
		t.Fatalf("expected a CALL to func_Double, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "RET") {
		t.Fatalf("expected the function body to end in RET, got:\n%s", res.Text)
	}
}

// TestGenerateInitGuardRunsInitializerOnce checks the universal invariant
// that a VAR initializer only runs on the first scan: _start checks the
// init flag, skips straight to _cycle once it's set, and only the
// first-scan path sets it.
func TestGenerateInitGuardRunsInitializerOnce(t *testing.T) {
	prog := &ast.Program{
		Name: "Main",
		Blocks: []*ast.VarBlock{{Decls: []*ast.VarDecl{
			{Name: "Count", Type: dwordType(), Init: ast.NewIntLit(7, 1)},
		}}},
		Body: []ast.Stmt{
			ast.NewAssign(ast.NewIdent("Count", 1),
				ast.NewBinary(ast.BinAdd, ast.NewIdent("Count", 1), ast.NewIntLit(1, 1), 1), 1),
		},
	}
	unit, tab := buildProgram(t, prog, nil)
	res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
	if err != nil {
		t.Fatal(err)
	}
	start := strings.Index(res.Text, "_start:")
	cycle := strings.Index(res.Text, "_cycle:")
	initStore := strings.Index(res.Text, "PUSH8 7")
	flagSet := strings.LastIndex(res.Text[:cycle], fmt.Sprintf("STORE8 %d", res.InitFlagAddress))
	if start < 0 || cycle < 0 || initStore < 0 || flagSet < 0 {
		t.Fatalf("missing expected markers, got:\n%s", res.Text)
	}
	if !(start < initStore && initStore < flagSet && flagSet < cycle) {
		t.Fatalf("expected order _start < initializer < flag-set < _cycle, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text[start:cycle], fmt.Sprintf("LOAD8 %d", res.InitFlagAddress)) {
		t.Fatalf("expected the guard to reload the init flag before _cycle, got:\n%s", res.Text)
	}
	if !strings.Contains(res.Text[start:cycle], "JRNZ _cycle") {
		t.Fatalf("expected a second-scan-onward skip straight to _cycle, got:\n%s", res.Text)
	}
	// The cycle body itself must not re-run the initializer literal.
	if strings.Contains(res.Text[cycle:], "PUSH8 7") {
		t.Fatalf("initializer leaked into the cyclic body, got:\n%s", res.Text)
	}
}
