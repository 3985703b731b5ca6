package asm

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Disassemble decodes one instruction from bytecode at position pc, writes
// its mnemonic (and operand, if any) to w, and returns the position of the
// next instruction. Grounded on the teacher's asm.Disassemble /
// vm.Image.Disassemble (same "decode one, return next pc" shape).
func Disassemble(bytecode []byte, pc int, w io.Writer) (next int, err error) {
	if pc < 0 || pc >= len(bytecode) {
		return pc, fmt.Errorf("disassemble: pc %d out of range", pc)
	}
	op := Op(bytecode[pc])
	m := Mnemonic(op)
	if m == "" {
		return pc, fmt.Errorf("disassemble: unknown opcode 0x%02X at pc %d", op, pc)
	}
	sz := OperandSize(op)
	if pc+1+sz > len(bytecode) {
		return pc, fmt.Errorf("disassemble: truncated operand for %s at pc %d", m, pc)
	}
	switch sz {
	case 0:
		io.WriteString(w, m)
	case 1:
		v := bytecode[pc+1]
		if IsRelativeBranch(op) {
			fmt.Fprintf(w, "%s %d", m, int8(v))
		} else {
			fmt.Fprintf(w, "%s %d", m, v)
		}
	case 2:
		v := binary.LittleEndian.Uint16(bytecode[pc+1 : pc+3])
		fmt.Fprintf(w, "%s %d", m, v)
	case 4:
		v := binary.LittleEndian.Uint32(bytecode[pc+1 : pc+5])
		fmt.Fprintf(w, "%s %d", m, v)
	}
	return pc + 1 + sz, nil
}

// DisassembleAll disassembles every instruction in bytecode starting at pc,
// one per line, prefixed with its program counter — matching the teacher's
// asm.DisassembleAll output convention used throughout asm/example_test.go.
func DisassembleAll(bytecode []byte, pc int, w io.Writer) error {
	for pc < len(bytecode) {
		fmt.Fprintf(w, "% 8d\t", pc)
		next, err := Disassemble(bytecode, pc, w)
		if err != nil {
			return err
		}
		io.WriteString(w, "\n")
		pc = next
	}
	return nil
}
