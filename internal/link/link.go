// Package link implements the multi-task linker (spec §4.7): it compiles
// every program a project's tasks reference at its own isolated
// work-memory window, concatenates the resulting bytecode, relocates
// absolute branch/call operands to account for each program's new base
// offset, and builds the runtime task table that internal/container
// serializes.
//
// There is no teacher analogue for a linker — Ngaro has no concept of
// relocatable code, it assembles straight to an absolute image — so the
// concatenate-then-relocate algorithm here is built directly from spec
// §4.7. The container shape it feeds (CODE segment + TASK segment) mirrors
// the teacher's vm/image.go Image.Save/Load idiom, as documented in
// internal/container.
package link

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/asm"
	"github.com/db47h/zplc/internal/ast"
	"github.com/db47h/zplc/internal/codegen"
	"github.com/db47h/zplc/internal/container"
	"github.com/db47h/zplc/internal/parse"
	"github.com/db47h/zplc/internal/project"
	"github.com/db47h/zplc/internal/symtab"
)

// Source is one program source file available to the linker, tagged with
// the language it's written in (spec §6 "Source file languages").
type Source struct {
	Name     string // file name as it appears on disk, with or without extension
	Language string // "st", "ld", "fbd", "sfc"
	Text     string
}

// Transpiler converts a visual-model source (LD/FBD/SFC JSON) to ST source
// text (spec §4.8). internal/visual/{ld,fbd,sfc} each provide one.
type Transpiler func(text string) (string, error)

// Transpilers maps a language tag to its transpiler. "st" never appears
// here — ST sources go straight to internal/parse.
type Transpilers map[string]Transpiler

// ProgramInfo records where one compiled program ended up in the final
// concatenated image, for disassembly and diagnostics.
type ProgramInfo struct {
	Name         string
	Offset       int // byte offset into the CODE segment
	Size         int
	EntryPoint   int // offset + the program's own entry PC
	WorkMemBase  int
	Mappings     []asm.InstructionMapping // PCs here are program-local; add Offset for image-absolute PCs
}

// Result is everything Link produces.
type Result struct {
	Container *container.Container
	Programs  []ProgramInfo
}

// normalizeName strips a file extension and lower-cases, so that matching
// a task's "programs" entry against a source file name tolerates missing
// extensions and case differences (spec §4.7 step 1).
func normalizeName(s string) string {
	s = strings.ToLower(s)
	if dot := strings.LastIndex(s, "."); dot >= 0 {
		s = s[:dot]
	}
	return s
}

// Link runs the full §4.7 procedure over proj against the given sources.
func Link(proj *project.File, sources []Source, transpilers Transpilers) (*Result, error) {
	byName := make(map[string]*Source, len(sources))
	for i := range sources {
		byName[normalizeName(sources[i].Name)] = &sources[i]
	}

	// Step 1: enumerate programs referenced across all tasks, ordered and
	// deduped.
	var order []string
	seen := make(map[string]bool)
	for _, t := range proj.Tasks {
		for _, p := range t.Programs {
			key := normalizeName(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			order = append(order, key)
		}
	}

	type compiled struct {
		name       string
		bytecode   []byte
		entry      int
		mappings   []asm.InstructionMapping
		workBase   int
	}
	progs := make([]compiled, 0, len(order))

	for i, key := range order {
		src, ok := byName[key]
		if !ok {
			return nil, errors.Errorf("link: program %q referenced by a task but not found among the project's sources", key)
		}

		// Step 2: compute this program's isolated work-memory window and
		// compile against it.
		workBase := symtab.WorkBase + i*symtab.WorkRegionSize

		stText := src.Text
		if src.Language != "" && src.Language != "st" {
			tr, ok := transpilers[src.Language]
			if !ok {
				return nil, errors.Errorf("link: no transpiler registered for language %q (program %q)", src.Language, src.Name)
			}
			var err error
			stText, err = tr(src.Text)
			if err != nil {
				return nil, errors.Wrapf(err, "link: transpile %q", src.Name)
			}
		}

		unit, err := parse.ParseSource(src.Name, stText)
		if err != nil {
			return nil, errors.Wrapf(err, "link: parse %q", src.Name)
		}
		prog, err := findProgram(unit, key)
		if err != nil {
			return nil, errors.Wrapf(err, "link: %q", src.Name)
		}

		tab := symtab.New(unit, workBase)
		if tab.Errors.HasErrors() {
			return nil, errors.Errorf("link: symbols in %q: %s", src.Name, tab.Errors.Error())
		}

		genRes, err := codegen.Generate(unit, prog, tab, codegen.Config{WorkMemoryBase: workBase})
		if err != nil {
			return nil, errors.Wrapf(err, "link: codegen %q", src.Name)
		}

		asmRes, err := asm.Assemble(genRes.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "link: assemble %q", src.Name)
		}

		progs = append(progs, compiled{
			name:     prog.Name,
			bytecode: asmRes.Bytecode,
			entry:    asmRes.EntryPoint,
			mappings: asmRes.Mappings,
			workBase: workBase,
		})
	}

	// Step 3/4: concatenate and relocate.
	var code []byte
	infos := make([]ProgramInfo, 0, len(progs))
	offsets := make([]int, len(progs))
	for i, p := range progs {
		offsets[i] = len(code)
		relocated := relocate(p.bytecode, offsets[i])
		code = append(code, relocated...)
		infos = append(infos, ProgramInfo{
			Name:        p.name,
			Offset:      offsets[i],
			Size:        len(p.bytecode),
			EntryPoint:  offsets[i] + p.entry,
			WorkMemBase: p.workBase,
			Mappings:    p.mappings,
		})
	}

	progIndex := make(map[string]int, len(infos))
	for i, info := range infos {
		progIndex[normalizeName(info.Name)] = i
	}

	// Step 5: build the task table.
	tasks := make([]container.Task, 0, len(proj.Tasks))
	for i, t := range proj.Tasks {
		if len(t.Programs) == 0 {
			return nil, errors.Errorf("link: task %q names no programs", t.Name)
		}
		firstIdx, ok := progIndex[normalizeName(t.Programs[0])]
		if !ok {
			return nil, errors.Errorf("link: task %q's first program %q was not compiled", t.Name, t.Programs[0])
		}
		tt, intervalUs := taskTypeAndInterval(t)
		tasks = append(tasks, container.Task{
			ID:         uint16(i),
			Type:       tt,
			Priority:   uint8(t.PriorityOrDefault()),
			IntervalUs: intervalUs,
			EntryPoint: uint16(infos[firstIdx].EntryPoint),
			StackSize:  project.DefaultStackSize,
		})
	}

	return &Result{
		Container: &container.Container{Code: code, Tasks: tasks},
		Programs:  infos,
	}, nil
}

// taskTypeAndInterval maps a project.Task's trigger to a container.TaskType
// and its microsecond interval (spec §4.7 step 5: "freewheeling → cyclic
// with minimal interval").
func taskTypeAndInterval(t project.Task) (container.TaskType, uint32) {
	switch t.Trigger {
	case project.TriggerEvent:
		return container.TaskEvent, uint32(t.IntervalMsOrDefault()) * 1000
	case project.TriggerFreewheeling:
		return container.TaskCyclic, 0 // 0 = run as fast as possible, the "minimal interval"
	default: // "cyclic"
		return container.TaskCyclic, uint32(t.IntervalMsOrDefault()) * 1000
	}
}

// findProgram locates the PROGRAM declaration matching a task's program
// reference inside a parsed unit, tolerating the same name normalization
// as the source-file match (spec §4.7 step 1).
func findProgram(unit *ast.Unit, wantKey string) (*ast.Program, error) {
	if len(unit.Programs) == 0 {
		return nil, errors.New("no PROGRAM declaration found in source")
	}
	for _, p := range unit.Programs {
		if normalizeName(p.Name) == wantKey {
			return p, nil
		}
	}
	return unit.Programs[0], nil
}

// relocate returns a copy of code with every absolute-branch operand
// (JMP/JZ/JNZ/CALL) shifted by base, per the §4.7 relocation algorithm: a
// linear scan decoding opcode + operand size, patching only the
// absolute-branch set, leaving LOAD/STORE and relative-jump operands
// untouched since they address data memory or are already
// position-independent.
func relocate(code []byte, base int) []byte {
	out := make([]byte, len(code))
	copy(out, code)
	pc := 0
	for pc < len(out) {
		op := asm.Op(out[pc])
		sz := asm.OperandSize(op)
		if asm.IsAbsoluteBranch(op) && sz == 2 && pc+2 < len(out) {
			v := int(out[pc+1]) | int(out[pc+2])<<8
			v += base
			out[pc+1] = byte(v)
			out[pc+2] = byte(v >> 8)
		}
		pc += 1 + sz
	}
	return out
}
