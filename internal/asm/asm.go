package asm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const maxErrors = 10

// Error is a single assembly error: unknown label, relative-jump out of
// range, unknown mnemonic, or operand out of range for its encoding
// (spec §7 "Assembly error").
type Error struct {
	Line    int // source line inside the assembly text, 1-based
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("asm:%d: %s", e.Line, e.Message) }

// ErrorList aggregates every assembly error found in one source, capped at
// maxErrors like the teacher's asm.ErrAsm.
type ErrorList []*Error

func (l ErrorList) Error() string {
	s := make([]string, len(l))
	for i, e := range l {
		s[i] = e.Error()
	}
	return strings.Join(s, "\n")
}

// InstructionMapping associates one emitted program-counter position with
// the original ST source line that produced it (spec §4.6 "Instruction
// mappings").
type InstructionMapping struct {
	PC         int
	SourceLine int
}

// Result is everything an Assemble call produces (spec §4.6 contract).
type Result struct {
	Bytecode     []byte
	EntryPoint   int
	CodeSize     int
	Mappings     []InstructionMapping
}

type labelUse struct {
	lineNo int
	pc     int
}

type label struct {
	defined bool
	pc      int
	lineNo  int
}

type line struct {
	lineNo  int
	label   string // "" if none
	mnem    string // "" if label-only line
	operand string // raw operand token, "" if none
	source  int    // value from a preceding "; @source N" annotation, 0 if none
}

// assembler holds the state for one two-pass assembly run.
type assembler struct {
	labels map[string]*label
	uses   map[string][]labelUse
	lines  []line
	errs   ErrorList
}

func newAssembler() *assembler {
	return &assembler{labels: make(map[string]*label), uses: make(map[string][]labelUse)}
}

func (a *assembler) error(lineNo int, msg string) {
	if len(a.errs) >= maxErrors {
		return
	}
	a.errs = append(a.errs, &Error{Line: lineNo, Message: msg})
}

// Assemble runs the two-pass assembler over ZPLC assembly text (spec
// §4.6/§6 "Assembly text format").
func Assemble(text string) (*Result, error) {
	a := newAssembler()
	a.scan(text)
	if len(a.errs) > 0 {
		return nil, errors.WithMessage(a.errs, "assemble")
	}
	pc, err := a.resolveLabels()
	if err != nil {
		return nil, errors.WithMessage(err, "assemble: resolve labels")
	}
	_ = pc
	code, mappings, err := a.emit()
	if err != nil {
		return nil, errors.WithMessage(err, "assemble: emit")
	}
	return &Result{Bytecode: code, EntryPoint: 0, CodeSize: len(code), Mappings: mappings}, nil
}

// scan performs lexical splitting of the assembly text into `line` records:
// strip comments, recognize "<label>:", split mnemonic/operand, and track
// "; @source N" annotations (spec §6 "Assembly text format").
func (a *assembler) scan(text string) {
	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	pendingSource := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if idx := strings.Index(raw, ";"); idx >= 0 {
			comment := strings.TrimSpace(raw[idx+1:])
			raw = raw[:idx]
			if strings.HasPrefix(comment, "@source ") {
				n, err := strconv.Atoi(strings.TrimSpace(comment[len("@source "):]))
				if err == nil {
					pendingSource = n
				}
			}
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		l := line{lineNo: lineNo, source: pendingSource}
		if colon := strings.Index(raw, ":"); colon >= 0 && !strings.ContainsAny(raw[:colon], " \t") {
			l.label = raw[:colon]
			raw = strings.TrimSpace(raw[colon+1:])
			if raw == "" {
				a.lines = append(a.lines, l)
				continue
			}
		}
		fields := strings.Fields(raw)
		l.mnem = strings.ToUpper(fields[0])
		if len(fields) > 1 {
			l.operand = fields[1]
		}
		a.lines = append(a.lines, l)
		pendingSource = 0
	}
}

// resolveLabels is pass one: walk the lines, advancing a virtual PC by the
// operand-size table, recording every label definition; pass two resolves
// label operands against that table.
func (a *assembler) resolveLabels() (int, error) {
	pc := 0
	for _, l := range a.lines {
		if l.label != "" {
			if existing, ok := a.labels[l.label]; ok && existing.defined {
				a.error(l.lineNo, fmt.Sprintf("duplicate label %q", l.label))
			} else {
				a.labels[l.label] = &label{defined: true, pc: pc, lineNo: l.lineNo}
			}
		}
		if l.mnem == "" {
			continue
		}
		op, ok := Lookup(l.mnem)
		if !ok {
			a.error(l.lineNo, fmt.Sprintf("unknown opcode mnemonic %q", l.mnem))
			continue
		}
		sz := OperandSize(op)
		pc += 1 + sz
	}
	if len(a.errs) > 0 {
		return 0, a.errs
	}
	return pc, nil
}

// emit is pass two: write opcode bytes and resolved little-endian operand
// bytes (spec §4.6).
func (a *assembler) emit() ([]byte, []InstructionMapping, error) {
	var buf []byte
	var mappings []InstructionMapping
	pc := 0
	for _, l := range a.lines {
		if l.mnem == "" {
			continue
		}
		op, ok := Lookup(l.mnem)
		if !ok {
			continue // already reported in pass one
		}
		buf = append(buf, byte(op))
		sz := OperandSize(op)
		if l.source > 0 {
			mappings = append(mappings, InstructionMapping{PC: pc, SourceLine: l.source})
		}
		switch sz {
		case 0:
			// nothing
		case 1:
			v, err := a.resolveOperand(l, op, pc)
			if err != nil {
				return nil, nil, err
			}
			if IsRelativeBranch(op) {
				rel := v - (pc + 2)
				if rel < -128 || rel > 127 {
					a.error(l.lineNo, fmt.Sprintf("relative jump out of range: offset %d", rel))
					continue
				}
				buf = append(buf, byte(int8(rel)))
			} else {
				if v < -128 || v > 255 {
					a.error(l.lineNo, fmt.Sprintf("operand %d out of range for 1-byte encoding", v))
					continue
				}
				buf = append(buf, byte(uint8(v)))
			}
		case 2:
			v, err := a.resolveOperand(l, op, pc)
			if err != nil {
				return nil, nil, err
			}
			if v < -32768 || v > 65535 {
				a.error(l.lineNo, fmt.Sprintf("operand %d out of range for 2-byte encoding", v))
				continue
			}
			u := uint16(v)
			buf = append(buf, byte(u), byte(u>>8))
		case 4:
			v, err := a.resolveOperand(l, op, pc)
			if err != nil {
				return nil, nil, err
			}
			u := uint32(v)
			buf = append(buf, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
		}
		pc += 1 + sz
	}
	if len(a.errs) > 0 {
		return nil, nil, a.errs
	}
	return buf, mappings, nil
}

// resolveOperand turns an operand token — a decimal/hex numeric literal or
// a label name — into its integer value.
func (a *assembler) resolveOperand(l line, op Op, pc int) (int, error) {
	if l.operand == "" {
		if OperandSize(op) > 0 {
			a.error(l.lineNo, fmt.Sprintf("%s requires an operand", l.mnem))
		}
		return 0, nil
	}
	if n, ok := parseNumeric(l.operand); ok {
		return n, nil
	}
	lbl, ok := a.labels[l.operand]
	if !ok {
		a.error(l.lineNo, fmt.Sprintf("unknown label %q", l.operand))
		return 0, nil
	}
	return lbl.pc, nil
}

func parseNumeric(s string) (int, bool) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v int64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseInt(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
	}
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return int(v), true
}
