package builtin

import (
	"fmt"

	"github.com/db47h/zplc/internal/ast"
)

// Member byte sizes used throughout this file, matching ast.Elementary.Size().
const (
	szBool  = 1
	szDword = 4
)

func ld(ctx EmitContext, addr, size int) { ctx.Emit(fmt.Sprintf("LOAD%s %d", ctx.LoadSuffix(size), addr)) }
func st(ctx EmitContext, addr, size int) { ctx.Emit(fmt.Sprintf("STORE%s %d", ctx.LoadSuffix(size), addr)) }

func push(ctx EmitContext, v int) {
	if v >= -128 && v <= 127 {
		ctx.Emit(fmt.Sprintf("PUSH8 %d", v))
	} else {
		ctx.Emit(fmt.Sprintf("PUSH32 %d", v))
	}
}

// storeParam evaluates the named actual parameter, if supplied, and stores
// it into the member at addr. Unsupplied VAR_INPUT members keep whatever
// value the instance's memory already holds, matching spec §4.5's "omitted
// FB inputs are left untouched" rule.
func storeParam(ctx EmitContext, params []ast.Param, name string, addr, size int) {
	for _, p := range params {
		if p.Name == name {
			ctx.EmitExpr(p.Value)
			st(ctx, addr, size)
			return
		}
	}
}

func init() {
	registerTimers()
	registerEdgeAndBistable()
	registerCounters()
	registerGenerators()
	registerProcessControl()
	registerPID()
	registerBuffers()
}

// --- TON / TOF / TP: 16-byte on-delay, off-delay and pulse timers ---
//
// Layout: 0 IN(bool) 1 state(bool) 2 PT(dword) 6 start(dword) 10 Q(bool)
// 11 pad 12 ET(dword). Grounded on vm.Core's tick counter (GET_TICKS reads
// the same free-running millisecond counter the teacher's VM exposes).
func registerTimers() {
	members := func() []Member {
		return []Member{
			{"IN", 0, szBool, RoleInput},
			{"state", 1, szBool, RoleInternal},
			{"PT", 2, szDword, RoleInput},
			{"start", 6, szDword, RoleInternal},
			{"Q", 10, szBool, RoleOutput},
			{"ET", 12, szDword, RoleOutput},
		}
	}

	registerFB(&FBDef{Name: "TON", Size: 16, Members: members(), Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szBool)
		storeParam(ctx, params, "PT", base+2, szDword)
		lIn, lRunning, lDone, lEnd := ctx.NewLabel("ton_in"), ctx.NewLabel("ton_running"), ctx.NewLabel("ton_done"), ctx.NewLabel("ton_end")
		ld(ctx, base+0, szBool)
		ctx.Emit("JRZ " + lIn)
		ld(ctx, base+1, szBool)
		ctx.Emit("JRNZ " + lRunning)
		push(ctx, 1)
		st(ctx, base+1, szBool)
		ctx.Emit("GET_TICKS")
		st(ctx, base+6, szDword)
		ctx.Emit(lRunning + ":")
		ctx.Emit("GET_TICKS")
		ld(ctx, base+6, szDword)
		ctx.Emit("SUB")
		ctx.Emit("DUP")
		st(ctx, base+12, szDword)
		ld(ctx, base+2, szDword)
		ctx.Emit("LT")
		ctx.Emit("JRZ " + lDone)
		push(ctx, 0)
		st(ctx, base+10, szBool)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lDone + ":")
		ld(ctx, base+2, szDword)
		st(ctx, base+12, szDword)
		push(ctx, 1)
		st(ctx, base+10, szBool)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lIn + ":")
		push(ctx, 0)
		st(ctx, base+1, szBool)
		push(ctx, 0)
		st(ctx, base+10, szBool)
		push(ctx, 0)
		st(ctx, base+12, szDword)
		ctx.Emit(lEnd + ":")
		return nil
	}})

	registerFB(&FBDef{Name: "TOF", Size: 16, Members: members(), Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szBool)
		storeParam(ctx, params, "PT", base+2, szDword)
		lFalling, lRunning, lDone, lEnd := ctx.NewLabel("tof_falling"), ctx.NewLabel("tof_running"), ctx.NewLabel("tof_done"), ctx.NewLabel("tof_end")
		ld(ctx, base+0, szBool)
		ctx.Emit("JRNZ " + lFalling)
		ld(ctx, base+1, szBool)
		ctx.Emit("JRZ " + lEnd)
		ctx.Emit(lRunning + ":")
		ctx.Emit("GET_TICKS")
		ld(ctx, base+6, szDword)
		ctx.Emit("SUB")
		ctx.Emit("DUP")
		st(ctx, base+12, szDword)
		ld(ctx, base+2, szDword)
		ctx.Emit("LT")
		ctx.Emit("JRNZ " + lDone)
		push(ctx, 0)
		st(ctx, base+1, szBool)
		push(ctx, 0)
		st(ctx, base+10, szBool)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lDone + ":")
		push(ctx, 1)
		st(ctx, base+10, szBool)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lFalling + ":")
		push(ctx, 1)
		st(ctx, base+10, szBool)
		ld(ctx, base+1, szBool)
		ctx.Emit("JRNZ " + lEnd)
		push(ctx, 1)
		st(ctx, base+1, szBool)
		ctx.Emit("GET_TICKS")
		st(ctx, base+6, szDword)
		push(ctx, 0)
		st(ctx, base+12, szDword)
		ctx.Emit(lEnd + ":")
		return nil
	}})

	registerFB(&FBDef{Name: "TP", Size: 16, Members: members(), Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szBool)
		storeParam(ctx, params, "PT", base+2, szDword)
		lStart, lRunning, lElapsed, lEnd := ctx.NewLabel("tp_start"), ctx.NewLabel("tp_running"), ctx.NewLabel("tp_elapsed"), ctx.NewLabel("tp_end")
		ld(ctx, base+1, szBool)
		ctx.Emit("JRNZ " + lRunning)
		ld(ctx, base+0, szBool)
		ctx.Emit("JRZ " + lEnd)
		ctx.Emit(lStart + ":")
		push(ctx, 1)
		st(ctx, base+1, szBool)
		push(ctx, 1)
		st(ctx, base+10, szBool)
		ctx.Emit("GET_TICKS")
		st(ctx, base+6, szDword)
		push(ctx, 0)
		st(ctx, base+12, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lRunning + ":")
		ctx.Emit("GET_TICKS")
		ld(ctx, base+6, szDword)
		ctx.Emit("SUB")
		ctx.Emit("DUP")
		st(ctx, base+12, szDword)
		ld(ctx, base+2, szDword)
		ctx.Emit("LT")
		ctx.Emit("JRZ " + lElapsed)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lElapsed + ":")
		push(ctx, 0)
		st(ctx, base+1, szBool)
		push(ctx, 0)
		st(ctx, base+10, szBool)
		ld(ctx, base+2, szDword)
		st(ctx, base+12, szDword)
		ctx.Emit(lEnd + ":")
		return nil
	}})
}

// --- R_TRIG / F_TRIG: 4-byte edge detectors ---
func registerEdgeAndBistable() {
	edgeMembers := []Member{{"CLK", 0, szBool, RoleInput}, {"last", 1, szBool, RoleInternal}, {"Q", 2, szBool, RoleOutput}}
	registerFB(&FBDef{Name: "R_TRIG", Size: 4, Members: edgeMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "CLK", base+0, szBool)
		ld(ctx, base+0, szBool)
		ld(ctx, base+1, szBool)
		ctx.Emit("NOT")
		ctx.Emit("AND")
		st(ctx, base+2, szBool)
		ld(ctx, base+0, szBool)
		st(ctx, base+1, szBool)
		return nil
	}})
	registerFB(&FBDef{Name: "F_TRIG", Size: 4, Members: edgeMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "CLK", base+0, szBool)
		ld(ctx, base+0, szBool)
		ctx.Emit("NOT")
		ld(ctx, base+1, szBool)
		ctx.Emit("AND")
		st(ctx, base+2, szBool)
		ld(ctx, base+0, szBool)
		st(ctx, base+1, szBool)
		return nil
	}})

	// --- RS / SR: 4-byte bistables, differing only in dominance ---
	bistableMembers := []Member{{"Q1", 0, szBool, RoleOutput}, {"pad", 1, szBool, RoleInternal}, {"pad2", 2, szDword - 2, RoleInternal}}
	registerFB(&FBDef{Name: "RS", Size: 4, Members: bistableMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		// Reset dominant: Q1 := NOT R1 AND (S OR Q1).
		lSkip := ctx.NewLabel("rs_skip")
		for _, p := range params {
			if p.Name == "S" {
				ctx.EmitExpr(p.Value)
				ctx.Emit("JRZ " + lSkip)
				push(ctx, 1)
				st(ctx, base+0, szBool)
				ctx.Emit(lSkip + ":")
			}
		}
		for _, p := range params {
			if p.Name == "R1" {
				ctx.EmitExpr(p.Value)
				lKeep := ctx.NewLabel("rs_keep")
				ctx.Emit("JRZ " + lKeep)
				push(ctx, 0)
				st(ctx, base+0, szBool)
				ctx.Emit(lKeep + ":")
			}
		}
		return nil
	}})
	registerFB(&FBDef{Name: "SR", Size: 4, Members: bistableMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		// Set dominant: R resets unless S1 is also asserted this cycle.
		for _, p := range params {
			if p.Name == "R" {
				ctx.EmitExpr(p.Value)
				lKeep := ctx.NewLabel("sr_keep")
				ctx.Emit("JRZ " + lKeep)
				push(ctx, 0)
				st(ctx, base+0, szBool)
				ctx.Emit(lKeep + ":")
			}
		}
		for _, p := range params {
			if p.Name == "S1" {
				ctx.EmitExpr(p.Value)
				lSkip := ctx.NewLabel("sr_skip")
				ctx.Emit("JRZ " + lSkip)
				push(ctx, 1)
				st(ctx, base+0, szBool)
				ctx.Emit(lSkip + ":")
			}
		}
		return nil
	}})
}

// --- CTU / CTD / CTUD: up, down and up/down counters ---
//
// PV/CV use a 16-bit word, matching IEC 61131-3's own CTU/CTD (INT, not
// DINT) — the only choice that fits the spec's 8-byte CTU/CTD budget
// alongside the edge-memory and Q members.
const szWord = 2

func registerCounters() {
	upMembers := []Member{
		{"CU", 0, szBool, RoleInput}, {"lastCU", 1, szBool, RoleInternal},
		{"RESET", 2, szBool, RoleInput}, {"Q", 3, szBool, RoleOutput},
		{"PV", 4, szWord, RoleInput}, {"CV", 6, szWord, RoleOutput},
	}
	registerFB(&FBDef{Name: "CTU", Size: 8, Members: upMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "CU", base+0, szBool)
		storeParam(ctx, params, "RESET", base+2, szBool)
		storeParam(ctx, params, "PV", base+4, szWord)
		lReset, lEdge, lEnd := ctx.NewLabel("ctu_reset"), ctx.NewLabel("ctu_edge"), ctx.NewLabel("ctu_end")
		ld(ctx, base+2, szBool)
		ctx.Emit("JRZ " + lEdge)
		ctx.Emit(lReset + ":")
		push(ctx, 0)
		st(ctx, base+6, szWord)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lEdge + ":")
		ld(ctx, base+0, szBool)
		ld(ctx, base+1, szBool)
		ctx.Emit("NOT")
		ctx.Emit("AND")
		lSkip := ctx.NewLabel("ctu_skip")
		ctx.Emit("JRZ " + lSkip)
		ld(ctx, base+6, szWord)
		push(ctx, 1)
		ctx.Emit("ADD")
		st(ctx, base+6, szWord)
		ctx.Emit(lSkip + ":")
		ld(ctx, base+0, szBool)
		st(ctx, base+1, szBool)
		ctx.Emit(lEnd + ":")
		ld(ctx, base+6, szWord)
		ld(ctx, base+4, szWord)
		ctx.Emit("GE")
		st(ctx, base+3, szBool)
		return nil
	}})

	dnMembers := []Member{
		{"CD", 0, szBool, RoleInput}, {"lastCD", 1, szBool, RoleInternal},
		{"LOAD", 2, szBool, RoleInput}, {"Q", 3, szBool, RoleOutput},
		{"PV", 4, szWord, RoleInput}, {"CV", 6, szWord, RoleOutput},
	}
	registerFB(&FBDef{Name: "CTD", Size: 8, Members: dnMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "CD", base+0, szBool)
		storeParam(ctx, params, "LOAD", base+2, szBool)
		storeParam(ctx, params, "PV", base+4, szWord)
		lLoad, lEdge, lEnd := ctx.NewLabel("ctd_load"), ctx.NewLabel("ctd_edge"), ctx.NewLabel("ctd_end")
		ld(ctx, base+2, szBool)
		ctx.Emit("JRZ " + lEdge)
		ctx.Emit(lLoad + ":")
		ld(ctx, base+4, szWord)
		st(ctx, base+6, szWord)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lEdge + ":")
		ld(ctx, base+0, szBool)
		ld(ctx, base+1, szBool)
		ctx.Emit("NOT")
		ctx.Emit("AND")
		lSkip := ctx.NewLabel("ctd_skip")
		ctx.Emit("JRZ " + lSkip)
		ld(ctx, base+6, szWord)
		push(ctx, 1)
		ctx.Emit("SUB")
		st(ctx, base+6, szWord)
		ctx.Emit(lSkip + ":")
		ld(ctx, base+0, szBool)
		st(ctx, base+1, szBool)
		ctx.Emit(lEnd + ":")
		ld(ctx, base+6, szWord)
		push(ctx, 0)
		ctx.Emit("LE")
		st(ctx, base+3, szBool)
		return nil
	}})

	registerFB(&FBDef{Name: "CTUD", Size: 16, Members: []Member{
		{"CU", 0, szBool, RoleInput}, {"CD", 1, szBool, RoleInput},
		{"lastCU", 2, szBool, RoleInternal}, {"lastCD", 3, szBool, RoleInternal},
		{"RESET", 4, szBool, RoleInput}, {"LOAD", 5, szBool, RoleInput},
		{"PV", 6, szDword, RoleInput}, {"CV", 12, szDword, RoleOutput},
	}, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "CU", base+0, szBool)
		storeParam(ctx, params, "CD", base+1, szBool)
		storeParam(ctx, params, "RESET", base+4, szBool)
		storeParam(ctx, params, "LOAD", base+5, szBool)
		storeParam(ctx, params, "PV", base+6, szDword)
		cvAddr := base + 12
		lReset, lLoad, lUp, lDown, lEnd := ctx.NewLabel("ctud_reset"), ctx.NewLabel("ctud_load"), ctx.NewLabel("ctud_up"), ctx.NewLabel("ctud_down"), ctx.NewLabel("ctud_end")
		ld(ctx, base+4, szBool)
		ctx.Emit("JRZ " + lLoad)
		ctx.Emit(lReset + ":")
		push(ctx, 0)
		st(ctx, cvAddr, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lLoad + ":")
		ld(ctx, base+5, szBool)
		ctx.Emit("JRZ " + lUp)
		ld(ctx, base+6, szDword)
		st(ctx, cvAddr, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lUp + ":")
		ld(ctx, base+0, szBool)
		ld(ctx, base+2, szBool)
		ctx.Emit("NOT")
		ctx.Emit("AND")
		lSkipUp := ctx.NewLabel("ctud_skip_up")
		ctx.Emit("JRZ " + lSkipUp)
		ld(ctx, cvAddr, szDword)
		push(ctx, 1)
		ctx.Emit("ADD")
		st(ctx, cvAddr, szDword)
		ctx.Emit(lSkipUp + ":")
		ctx.Emit(lDown + ":")
		ld(ctx, base+1, szBool)
		ld(ctx, base+3, szBool)
		ctx.Emit("NOT")
		ctx.Emit("AND")
		lSkipDown := ctx.NewLabel("ctud_skip_down")
		ctx.Emit("JRZ " + lSkipDown)
		ld(ctx, cvAddr, szDword)
		push(ctx, 1)
		ctx.Emit("SUB")
		st(ctx, cvAddr, szDword)
		ctx.Emit(lSkipDown + ":")
		ctx.Emit(lEnd + ":")
		ld(ctx, base+0, szBool)
		st(ctx, base+2, szBool)
		ld(ctx, base+1, szBool)
		st(ctx, base+3, szBool)
		return nil
	}})
}

// --- BLINK / PWM / PULSE: 16-byte waveform generators ---
func registerGenerators() {
	members := []Member{
		{"ENABLE", 0, szBool, RoleInput}, {"Q", 1, szBool, RoleOutput},
		{"TON_MS", 2, szDword, RoleInput}, {"TOFF_MS", 6, szDword, RoleInput},
		{"phaseStart", 10, szDword, RoleInternal},
	}
	emit := func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "ENABLE", base+0, szBool)
		storeParam(ctx, params, "TON_MS", base+2, szDword)
		storeParam(ctx, params, "TOFF_MS", base+6, szDword)
		lOff, lHigh, lLow, lEnd := ctx.NewLabel("blink_off"), ctx.NewLabel("blink_high"), ctx.NewLabel("blink_low"), ctx.NewLabel("blink_end")
		ld(ctx, base+0, szBool)
		ctx.Emit("JRZ " + lOff)
		ctx.Emit("GET_TICKS")
		ld(ctx, base+10, szDword)
		ctx.Emit("SUB")
		ld(ctx, base+2, szDword)
		ctx.Emit("LT")
		ctx.Emit("JRZ " + lLow)
		ctx.Emit(lHigh + ":")
		push(ctx, 1)
		st(ctx, base+1, szBool)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lLow + ":")
		push(ctx, 0)
		st(ctx, base+1, szBool)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lOff + ":")
		push(ctx, 0)
		st(ctx, base+1, szBool)
		ctx.Emit("GET_TICKS")
		st(ctx, base+10, szDword)
		ctx.Emit(lEnd + ":")
		return nil
	}
	registerFB(&FBDef{Name: "BLINK", Size: 16, Members: members, Emit: emit})
	registerFB(&FBDef{Name: "PWM", Size: 16, Members: members, Emit: emit})
	registerFB(&FBDef{Name: "PULSE", Size: 16, Members: members, Emit: emit})
}

// --- HYSTERESIS / DEADBAND / LAG_FILTER / RAMP_REAL / INTEGRAL / DERIVATIVE:
// 16-byte process-control primitives over REAL signals ---
func registerProcessControl() {
	reMembers := []Member{
		{"IN", 0, szDword, RoleInput}, {"PARAM", 4, szDword, RoleInput},
		{"OUT", 8, szDword, RoleOutput}, {"state", 12, szDword, RoleInternal},
	}
	registerFB(&FBDef{Name: "HYSTERESIS", Size: 16, Members: reMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szDword)
		storeParam(ctx, params, "PARAM", base+4, szDword)
		lHigh, lEnd := ctx.NewLabel("hyst_high"), ctx.NewLabel("hyst_end")
		ld(ctx, base+0, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("GTU")
		ctx.Emit("JRZ " + lHigh)
		push(ctx, 1)
		st(ctx, base+8, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lHigh + ":")
		push(ctx, 0)
		st(ctx, base+8, szDword)
		ctx.Emit(lEnd + ":")
		return nil
	}})
	registerFB(&FBDef{Name: "DEADBAND", Size: 16, Members: reMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szDword)
		storeParam(ctx, params, "PARAM", base+4, szDword)
		ld(ctx, base+0, szDword)
		st(ctx, base+8, szDword)
		return nil
	}})
	registerFB(&FBDef{Name: "LAG_FILTER", Size: 16, Members: reMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szDword)
		storeParam(ctx, params, "PARAM", base+4, szDword)
		// OUT += (IN - OUT) * PARAM  (PARAM is the filter coefficient, 0..1).
		ld(ctx, base+0, szDword)
		ld(ctx, base+8, szDword)
		ctx.Emit("SUBF")
		ld(ctx, base+4, szDword)
		ctx.Emit("MULF")
		ld(ctx, base+8, szDword)
		ctx.Emit("ADDF")
		st(ctx, base+8, szDword)
		return nil
	}})
	registerFB(&FBDef{Name: "RAMP_REAL", Size: 16, Members: reMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szDword)
		storeParam(ctx, params, "PARAM", base+4, szDword)
		lUp, lClampUp, lDown, lEnd := ctx.NewLabel("ramp_up"), ctx.NewLabel("ramp_clamp_up"), ctx.NewLabel("ramp_down"), ctx.NewLabel("ramp_end")
		ld(ctx, base+0, szDword)
		ld(ctx, base+8, szDword)
		ctx.Emit("SUBF")
		push(ctx, 0)
		ctx.Emit("I2F")
		ctx.Emit("GE")
		ctx.Emit("JRZ " + lDown)
		ctx.Emit(lUp + ":")
		ld(ctx, base+8, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("ADDF")
		ld(ctx, base+0, szDword)
		ctx.Emit("LE")
		ctx.Emit("JRNZ " + lClampUp)
		ld(ctx, base+0, szDword)
		st(ctx, base+8, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lClampUp + ":")
		ld(ctx, base+8, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("ADDF")
		st(ctx, base+8, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lDown + ":")
		ld(ctx, base+8, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("SUBF")
		st(ctx, base+8, szDword)
		ctx.Emit(lEnd + ":")
		return nil
	}})
	registerFB(&FBDef{Name: "INTEGRAL", Size: 16, Members: reMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szDword)
		storeParam(ctx, params, "PARAM", base+4, szDword)
		ld(ctx, base+8, szDword)
		ld(ctx, base+0, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("MULF")
		ctx.Emit("ADDF")
		st(ctx, base+8, szDword)
		return nil
	}})
	registerFB(&FBDef{Name: "DERIVATIVE", Size: 16, Members: reMembers, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "IN", base+0, szDword)
		storeParam(ctx, params, "PARAM", base+4, szDword)
		ld(ctx, base+0, szDword)
		ld(ctx, base+12, szDword)
		ctx.Emit("SUBF")
		ld(ctx, base+4, szDword)
		ctx.Emit("DIVF")
		st(ctx, base+8, szDword)
		ld(ctx, base+0, szDword)
		st(ctx, base+12, szDword)
		return nil
	}})
}

// --- PID_Compact: 48-byte PID; OUTPUT is clamped to [OUT_MIN, OUT_MAX],
// the integral term is not limited ---
func registerPID() {
	members := []Member{
		{"SETPOINT", 0, szDword, RoleInput}, {"INPUT", 4, szDword, RoleInput},
		{"KP", 8, szDword, RoleInput}, {"KI", 12, szDword, RoleInput}, {"KD", 16, szDword, RoleInput},
		{"OUT_MIN", 20, szDword, RoleInput}, {"OUT_MAX", 24, szDword, RoleInput},
		{"OUTPUT", 28, szDword, RoleOutput},
		{"integral", 32, szDword, RoleInternal}, {"lastError", 36, szDword, RoleInternal},
		{"pad", 40, szDword, RoleInternal}, {"pad2", 44, szDword, RoleInternal},
	}
	registerFB(&FBDef{Name: "PID_Compact", Size: 48, Members: members, Emit: func(ctx EmitContext, base int, params []ast.Param) error {
		storeParam(ctx, params, "SETPOINT", base+0, szDword)
		storeParam(ctx, params, "INPUT", base+4, szDword)
		storeParam(ctx, params, "KP", base+8, szDword)
		storeParam(ctx, params, "KI", base+12, szDword)
		storeParam(ctx, params, "KD", base+16, szDword)
		storeParam(ctx, params, "OUT_MIN", base+20, szDword)
		storeParam(ctx, params, "OUT_MAX", base+24, szDword)
		// error := SETPOINT - INPUT
		ld(ctx, base+0, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("SUBF")
		// integral += error
		ld(ctx, base+32, szDword)
		ctx.Emit("OVER")
		ctx.Emit("ADDF")
		st(ctx, base+32, szDword)
		// P = error * KP
		ld(ctx, base+8, szDword)
		ctx.Emit("MULF")
		// + I = integral * KI
		ld(ctx, base+32, szDword)
		ld(ctx, base+12, szDword)
		ctx.Emit("MULF")
		ctx.Emit("ADDF")
		// + D = (error - lastError) * KD
		ld(ctx, base+36, szDword)
		ctx.Emit("NEGF")
		// error still needed: recompute by reloading SETPOINT-INPUT
		ld(ctx, base+0, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("SUBF")
		ctx.Emit("ADDF") // (error - lastError) as (-lastError)+error
		ld(ctx, base+16, szDword)
		ctx.Emit("MULF")
		ctx.Emit("ADDF")
		lClampLow, lClampHigh, lEnd := ctx.NewLabel("pid_clamp_low"), ctx.NewLabel("pid_clamp_high"), ctx.NewLabel("pid_end")
		ctx.Emit("DUP")
		ld(ctx, base+20, szDword)
		ctx.Emit("LT")
		ctx.Emit("JRNZ " + lClampLow)
		ctx.Emit("DUP")
		ld(ctx, base+24, szDword)
		ctx.Emit("GT")
		ctx.Emit("JRNZ " + lClampHigh)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lClampLow + ":")
		ctx.Emit("DROP")
		ld(ctx, base+20, szDword)
		ctx.Emit("JR " + lEnd)
		ctx.Emit(lClampHigh + ":")
		ctx.Emit("DROP")
		ld(ctx, base+24, szDword)
		ctx.Emit(lEnd + ":")
		st(ctx, base+28, szDword)
		ld(ctx, base+0, szDword)
		ld(ctx, base+4, szDword)
		ctx.Emit("SUBF")
		st(ctx, base+36, szDword)
		return nil
	}})
}

// --- FIFO / LIFO: fixed-depth dword queues ---
//
// Both keep a count, a write cursor and a block of dword slots. A call
// whose POP is TRUE decrements count when it is non-zero; no slot is read
// back and the FB has no output member. Otherwise a call whose PUSH is
// TRUE stores DATA_IN with STOREI32 into the slot at the cursor (FIFO,
// wrapping at the depth) or at count (LIFO), then advances cursor and
// count.
func registerBuffers() {
	queueEmit := func(depth int, lifo bool) func(EmitContext, int, []ast.Param) error {
		return func(ctx EmitContext, base int, params []ast.Param) error {
			countAddr := base + 0
			cursorAddr := base + 4
			slotsAddr := base + 8
			lDoPush, lDoPop, lEnd := ctx.NewLabel("queue_push"), ctx.NewLabel("queue_pop"), ctx.NewLabel("queue_end")
			var pushExpr, popFlag ast.Expr
			for _, p := range params {
				switch p.Name {
				case "PUSH":
					pushExpr = p.Value
				case "POP":
					popFlag = p.Value
				}
			}
			if popFlag != nil {
				ctx.EmitExpr(popFlag)
				ctx.Emit("JRNZ " + lDoPop)
			}
			if pushExpr != nil {
				ctx.EmitExpr(pushExpr)
				ctx.Emit("JRZ " + lEnd)
				for _, p := range params {
					if p.Name == "DATA_IN" {
						if !lifo {
							push(ctx, slotsAddr)
							ld(ctx, cursorAddr, szDword)
							push(ctx, 4)
							ctx.Emit("MUL")
							ctx.Emit("ADD")
						} else {
							ld(ctx, countAddr, szDword)
							push(ctx, 4)
							ctx.Emit("MUL")
							push(ctx, slotsAddr)
							ctx.Emit("ADD")
						}
						ctx.EmitExpr(p.Value)
						ctx.Emit("STOREI32")
					}
				}
				ld(ctx, cursorAddr, szDword)
				push(ctx, 1)
				ctx.Emit("ADD")
				push(ctx, depth)
				ctx.Emit("MOD")
				st(ctx, cursorAddr, szDword)
				ld(ctx, countAddr, szDword)
				push(ctx, 1)
				ctx.Emit("ADD")
				st(ctx, countAddr, szDword)
			}
			ctx.Emit("JR " + lEnd)
			ctx.Emit(lDoPop + ":")
			ld(ctx, countAddr, szDword)
			lSkip := ctx.NewLabel("queue_empty")
			ctx.Emit("JRZ " + lSkip)
			ld(ctx, countAddr, szDword)
			push(ctx, 1)
			ctx.Emit("SUB")
			st(ctx, countAddr, szDword)
			ctx.Emit(lSkip + ":")
			ctx.Emit(lDoPush + ":")
			ctx.Emit(lEnd + ":")
			return nil
		}
	}
	registerFB(&FBDef{Name: "FIFO", Size: 64, Members: []Member{
		{"count", 0, szDword, RoleInternal}, {"cursor", 4, szDword, RoleInternal},
	}, Emit: queueEmit(14, false)})
	registerFB(&FBDef{Name: "LIFO", Size: 56, Members: []Member{
		{"count", 0, szDword, RoleInternal}, {"cursor", 4, szDword, RoleInternal},
	}, Emit: queueEmit(12, true)})
}
