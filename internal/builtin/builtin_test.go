package builtin_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/builtin"
)

// fakeCtx is a minimal builtin.EmitContext that records emitted assembly
// lines and evaluates expressions as opaque "PUSHX <name>" lines, enough to
// exercise an emitter's control flow and memory addressing without needing
// a real internal/codegen.Generator.
type fakeCtx struct {
	lines   []string
	labelNo int
}

func (f *fakeCtx) Emit(line string) { f.lines = append(f.lines, line) }
func (f *fakeCtx) NewLabel(prefix string) string {
	f.labelNo++
	return fmt.Sprintf("%s_%d", prefix, f.labelNo)
}
func (f *fakeCtx) EmitExpr(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.Ident:
		f.Emit("PUSHX " + n.Name)
	case *ast.IntLit:
		f.Emit(fmt.Sprintf("PUSH8 %d", n.Value))
	default:
		f.Emit("PUSHX ?")
	}
	return nil
}
func (f *fakeCtx) LoadSuffix(size int) string {
	switch size {
	case 1:
		return "8"
	case 2:
		return "16"
	case 4:
		return "32"
	default:
		return "32"
	}
}

func TestFBRegistry(t *testing.T) {
	names := []string{
		"TON", "TOF", "TP", "R_TRIG", "F_TRIG", "RS", "SR",
		"CTU", "CTD", "CTUD", "BLINK", "PWM", "PULSE",
		"HYSTERESIS", "DEADBAND", "LAG_FILTER", "RAMP_REAL", "INTEGRAL", "DERIVATIVE",
		"PID_Compact", "FIFO", "LIFO",
	}
	for _, n := range names {
		d, ok := builtin.LookupFB(n)
		if !ok {
			t.Fatalf("missing FB descriptor %s", n)
		}
		if d.Size <= 0 {
			t.Fatalf("%s has non-positive size %d", n, d.Size)
		}
	}
	if _, ok := builtin.LookupFB("NOT_A_REAL_FB"); ok {
		t.Fatal("unexpected lookup success")
	}
}

func TestFunctionRegistry(t *testing.T) {
	names := []string{
		"MAX", "MIN", "LIMIT", "SEL", "MUX", "NAND", "NOR",
		"ABS", "ABSF", "NEG", "NEGF", "SQRT", "EXPT",
		"SIN", "COS", "TAN", "ASIN", "ACOS", "ATAN", "ATAN2",
		"LN", "LOG", "EXP", "TRUNC", "ROUND",
		"SHL", "SHR", "ROL", "ROR",
		"INT_TO_REAL", "REAL_TO_INT", "BOOL_TO_INT", "INT_TO_BOOL",
		"NORM_X", "SCALE_X",
		"LEN", "CONCAT", "LEFT", "RIGHT", "MID", "FIND", "INSERT", "DELETE", "REPLACE", "COPY", "CLEAR",
		"STRCMP", "EQ_STRING", "NE_STRING",
		"UPTIME", "CYCLE_TIME", "WATCHDOG_RESET",
	}
	for _, n := range names {
		if _, ok := builtin.LookupFunction(n); !ok {
			t.Fatalf("missing function descriptor %s", n)
		}
	}
}

func TestTONEmitsGetTicksAndLabels(t *testing.T) {
	d, _ := builtin.LookupFB("TON")
	ctx := &fakeCtx{}
	params := []ast.Param{
		{Name: "IN", Value: ast.NewIdent("start", 1)},
		{Name: "PT", Value: ast.NewIntLit(500, 1)},
	}
	if err := d.Emit(ctx, 0x2000, params); err != nil {
		t.Fatal(err)
	}
	text := strings.Join(ctx.lines, "\n")
	if !strings.Contains(text, "GET_TICKS") {
		t.Fatal("TON body must call GET_TICKS")
	}
	if !strings.Contains(text, "PUSHX start") {
		t.Fatal("TON must evaluate the IN parameter")
	}
}

func TestRTrigEdgeLogic(t *testing.T) {
	d, _ := builtin.LookupFB("R_TRIG")
	ctx := &fakeCtx{}
	params := []ast.Param{{Name: "CLK", Value: ast.NewIdent("button", 1)}}
	if err := d.Emit(ctx, 0x2000, params); err != nil {
		t.Fatal(err)
	}
	text := strings.Join(ctx.lines, "\n")
	if !strings.Contains(text, "NOT") || !strings.Contains(text, "AND") {
		t.Fatalf("R_TRIG should rise-detect via NOT/AND, got: %s", text)
	}
}

func TestMaxSelectsLargerOperand(t *testing.T) {
	d, _ := builtin.LookupFunction("MAX")
	ctx := &fakeCtx{}
	args := []ast.Expr{ast.NewIdent("a", 1), ast.NewIdent("b", 1)}
	if err := d.Emit(ctx, args); err != nil {
		t.Fatal(err)
	}
	text := strings.Join(ctx.lines, "\n")
	if !strings.Contains(text, "LT") {
		t.Fatalf("MAX should compare operands, got: %s", text)
	}
}

func TestSqrtUsesNewtonRefinement(t *testing.T) {
	d, _ := builtin.LookupFunction("SQRT")
	ctx := &fakeCtx{}
	if err := d.Emit(ctx, []ast.Expr{ast.NewIdent("x", 1)}); err != nil {
		t.Fatal(err)
	}
	text := strings.Join(ctx.lines, "\n")
	if !strings.Contains(text, "DIVF") {
		t.Fatalf("SQRT should use DIVF in its Newton step, got: %s", text)
	}
}
