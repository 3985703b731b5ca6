package asm_test

import (
	"strings"
	"testing"

	"github.com/db47h/zplc/internal/asm"
)

func TestOpcodeTableSize(t *testing.T) {
	count := 0
	for op := 0; op < 256; op++ {
		if asm.Mnemonic(asm.Op(op)) != "" {
			count++
		}
	}
	if count != asm.NumOpcodes {
		t.Fatalf("expected %d opcodes, found %d", asm.NumOpcodes, count)
	}
}

func TestOperandSizeIsOneOfFour(t *testing.T) {
	for op := 0; op < 256; op++ {
		m := asm.Mnemonic(asm.Op(op))
		if m == "" {
			continue
		}
		sz := asm.OperandSize(asm.Op(op))
		switch sz {
		case 0, 1, 2, 4:
		default:
			t.Fatalf("opcode %s has invalid operand size %d", m, sz)
		}
	}
}

// S5 — assembler round-trip (spec §8).
func TestAssembleRoundTrip(t *testing.T) {
	res, err := asm.Assemble("_start:\n\tPUSH8 42\n\tHALT\n")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x40, 0x2A, 0x01}
	if string(res.Bytecode) != string(want) {
		t.Fatalf("got % X, want % X", res.Bytecode, want)
	}
	var sb strings.Builder
	if err := asm.DisassembleAll(res.Bytecode, 0, &sb); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "PUSH8 42") || !strings.Contains(sb.String(), "HALT") {
		t.Fatalf("disassembly missing expected mnemonics: %s", sb.String())
	}
}

// S6 — relative jump range (spec §8).
func TestRelativeJumpOutOfRange(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("JR too_far\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("NOP\n")
	}
	sb.WriteString("too_far: HALT\n")
	if _, err := asm.Assemble(sb.String()); err == nil {
		t.Fatal("expected an out-of-range relative jump error")
	}

	var sb2 strings.Builder
	sb2.WriteString("JMP too_far\n")
	for i := 0; i < 200; i++ {
		sb2.WriteString("NOP\n")
	}
	sb2.WriteString("too_far: HALT\n")
	if _, err := asm.Assemble(sb2.String()); err != nil {
		t.Fatalf("JMP over 200 bytes should succeed: %v", err)
	}
}

func TestUnknownLabel(t *testing.T) {
	if _, err := asm.Assemble("JMP nowhere\nHALT\n"); err == nil {
		t.Fatal("expected unknown label error")
	}
}

func TestDuplicateLabel(t *testing.T) {
	src := "foo: NOP\nfoo: HALT\n"
	if _, err := asm.Assemble(src); err == nil {
		t.Fatal("expected duplicate label error")
	}
}

func TestSourceLineMapping(t *testing.T) {
	src := "; @source 7\nPUSH8 1\n; @source 9\nHALT\n"
	res, err := asm.Assemble(src)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(res.Mappings))
	}
	if res.Mappings[0].PC != 0 || res.Mappings[0].SourceLine != 7 {
		t.Fatalf("bad mapping[0]: %+v", res.Mappings[0])
	}
	if res.Mappings[1].PC != 2 || res.Mappings[1].SourceLine != 9 {
		t.Fatalf("bad mapping[1]: %+v", res.Mappings[1])
	}
}
