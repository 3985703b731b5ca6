package link_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/db47h/zplc/internal/asm"
	"github.com/db47h/zplc/internal/container"
	"github.com/db47h/zplc/internal/link"
	"github.com/db47h/zplc/internal/project"
	"github.com/db47h/zplc/internal/symtab"
)

const blinkySource = `
PROGRAM Blinky
VAR
  Lamp : BOOL;
  Blink : TON;
END_VAR
Blink(IN := TRUE, PT := T#500ms);
Lamp := Blink.Q;
END_PROGRAM
`

const progSource = `
FUNCTION Inc : DINT
VAR_INPUT
  X : DINT;
END_VAR
Inc := X + 1;
END_FUNCTION

PROGRAM %s
VAR
  Counter : DINT;
END_VAR
Counter := Inc(Counter);
END_PROGRAM
`

func twoTaskProject() *project.File {
	return &project.File{
		Name:    "demo",
		Version: "1.0",
		Tasks: []project.Task{
			{Name: "T1", Trigger: project.TriggerCyclic, Programs: []string{"A"}},
			{Name: "T2", Trigger: project.TriggerCyclic, Programs: []string{"B"}},
		},
	}
}

func sourceFor(name string) link.Source {
	return link.Source{Name: name + ".st", Language: "st", Text: sprintfProg(name)}
}

func sprintfProg(name string) string {
	// avoid importing fmt just for one substitution
	out := make([]byte, 0, len(progSource)+len(name))
	for i := 0; i < len(progSource); i++ {
		if progSource[i] == '%' && i+1 < len(progSource) && progSource[i+1] == 's' {
			out = append(out, name...)
			i++
			continue
		}
		out = append(out, progSource[i])
	}
	return string(out)
}

// decodeOperand16 mirrors internal/asm's own operand decoding for absolute
// 2-byte operands, used here only to verify relocation, not to duplicate
// the assembler.
func decodeOperand16(code []byte, pc int) int {
	return int(binary.LittleEndian.Uint16(code[pc+1 : pc+3]))
}

func findMnemonicIn(code []byte, start, end int, mnem string) (pc int, operand int, found bool) {
	p := start
	for p < end {
		op := asm.Op(code[p])
		sz := asm.OperandSize(op)
		if asm.Mnemonic(op) == mnem && sz == 2 {
			return p, decodeOperand16(code, p), true
		}
		p += 1 + sz
	}
	return 0, 0, false
}

// hasMnemonicIn reports whether mnem occurs anywhere in [start, end),
// regardless of operand size -- used for opcodes like GET_TICKS that
// carry no operand at all.
func hasMnemonicIn(code []byte, start, end int, mnem string) bool {
	p := start
	for p < end {
		op := asm.Op(code[p])
		sz := asm.OperandSize(op)
		if asm.Mnemonic(op) == mnem {
			return true
		}
		p += 1 + sz
	}
	return false
}

func TestLinkTwoProgramsDisjointWorkWindows(t *testing.T) {
	proj := twoTaskProject()
	sources := []link.Source{sourceFor("A"), sourceFor("B")}

	res, err := link.Link(proj, sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Programs) != 2 {
		t.Fatalf("expected 2 compiled programs, got %d", len(res.Programs))
	}
	p0, p1 := res.Programs[0], res.Programs[1]
	if p0.WorkMemBase != symtab.WorkBase {
		t.Fatalf("program 0 work base = 0x%04X, want 0x%04X", p0.WorkMemBase, symtab.WorkBase)
	}
	if p1.WorkMemBase != symtab.WorkBase+symtab.WorkRegionSize {
		t.Fatalf("program 1 work base = 0x%04X, want 0x%04X", p1.WorkMemBase, symtab.WorkBase+symtab.WorkRegionSize)
	}
	if p1.Offset != p0.Size {
		t.Fatalf("program 1 offset = %d, want %d (= program 0 size)", p1.Offset, p0.Size)
	}
}

func TestLinkRelocatesCallButNotDataAddress(t *testing.T) {
	proj := twoTaskProject()
	sources := []link.Source{sourceFor("A"), sourceFor("B")}

	res, err := link.Link(proj, sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	p1 := res.Programs[1]
	code := res.Container.Code

	callPC, callOperand, ok := findMnemonicIn(code, p1.Offset, p1.Offset+p1.Size, "CALL")
	if !ok {
		t.Fatalf("expected a CALL instruction inside program 1's slot")
	}
	if callOperand < p1.Offset || callOperand >= p1.Offset+p1.Size {
		t.Fatalf("CALL at pc %d: operand %d does not resolve inside program 1's relocated slot [%d, %d)",
			callPC, callOperand, p1.Offset, p1.Offset+p1.Size)
	}

	_, storeOperand, ok := findMnemonicIn(code, p1.Offset, p1.Offset+p1.Size, "STORE32")
	if !ok {
		t.Fatalf("expected a STORE32 instruction inside program 1's slot")
	}
	if storeOperand < p1.WorkMemBase || storeOperand >= p1.WorkMemBase+symtab.WorkRegionSize {
		t.Fatalf("STORE32 operand 0x%04X is not within program 1's work-memory window [0x%04X, 0x%04X) -- "+
			"data addresses must never be relocated by code offset",
			storeOperand, p1.WorkMemBase, p1.WorkMemBase+symtab.WorkRegionSize)
	}
}

func TestLinkMultiTaskBuildProducesOneTaskPerProjectTask(t *testing.T) {
	proj := twoTaskProject()
	sources := []link.Source{sourceFor("A"), sourceFor("B")}

	res, err := link.Link(proj, sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Container.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(res.Container.Tasks))
	}
	if res.Container.Tasks[0].EntryPoint == res.Container.Tasks[1].EntryPoint {
		t.Fatalf("both tasks resolved to the same entry point: %d", res.Container.Tasks[0].EntryPoint)
	}
}

// TestLinkBlinkyEndToEnd exercises a single cyclic task running a TON-based
// blinker program all the way from ST source through the linker and into an
// encoded/decoded container, the same "blinky" scenario the builtin TON
// tests cover at the codegen level but carried through the whole toolchain.
func TestLinkBlinkyEndToEnd(t *testing.T) {
	proj := &project.File{
		Name: "blinky", Version: "1.0",
		Tasks: []project.Task{{
			Name: "Main", Trigger: project.TriggerCyclic, Interval: 100,
			Programs: []string{"Blinky"},
		}},
	}
	sources := []link.Source{{Name: "Blinky.st", Language: "st", Text: blinkySource}}

	res, err := link.Link(proj, sources, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Programs) != 1 {
		t.Fatalf("expected 1 compiled program, got %d", len(res.Programs))
	}
	p := res.Programs[0]
	if !hasMnemonicIn(res.Container.Code, p.Offset, p.Offset+p.Size, "GET_TICKS") {
		t.Fatalf("expected the inlined TON body to call GET_TICKS inside the compiled program")
	}
	if len(res.Container.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(res.Container.Tasks))
	}
	task := res.Container.Tasks[0]
	if task.Type != container.TaskCyclic {
		t.Fatalf("task type = %v, want TaskCyclic", task.Type)
	}
	if task.IntervalUs != 100*1000 {
		t.Fatalf("task interval = %dus, want 100000us", task.IntervalUs)
	}
	if int(task.EntryPoint) < p.Offset || int(task.EntryPoint) >= p.Offset+p.Size {
		t.Fatalf("task entry point %d does not fall inside the program's slot [%d, %d)",
			task.EntryPoint, p.Offset, p.Offset+p.Size)
	}

	encoded, err := container.Marshal(res.Container)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := container.Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded.Code) != len(res.Container.Code) || len(decoded.Tasks) != 1 {
		t.Fatalf("round trip mismatch: %d code bytes / %d tasks, want %d / 1",
			len(decoded.Code), len(decoded.Tasks), len(res.Container.Code))
	}
	if decoded.Tasks[0].EntryPoint != task.EntryPoint {
		t.Fatalf("round-tripped entry point = %d, want %d", decoded.Tasks[0].EntryPoint, task.EntryPoint)
	}
}

func TestLinkUnknownProgramIsAnError(t *testing.T) {
	proj := &project.File{
		Name: "demo", Version: "1.0",
		Tasks: []project.Task{{Name: "T1", Trigger: project.TriggerCyclic, Programs: []string{"Missing"}}},
	}
	if _, err := link.Link(proj, nil, nil); err == nil {
		t.Fatal("expected an error for a task referencing an unknown program")
	}
}
