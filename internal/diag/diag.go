// Package diag defines a structured, phase-tagged diagnostic record (spec
// §7: lexer, parser, codegen, assembler, linker).
//
// No other package of this module imports diag: the compiler phases report
// errors through their own Error/ErrorList types (internal/lex,
// internal/parse, internal/symtab, internal/asm), and cmd/zplc prints
// those. This package formats diagnostics as text but never prints them.
package diag

import "fmt"

// Phase identifies which pipeline stage raised a diagnostic.
type Phase string

// Known phases, matching spec §6 ("Diagnostics") and §7 literally.
const (
	Lexer     Phase = "lexer"
	Parser    Phase = "parser"
	Symtab    Phase = "symtab"
	Codegen   Phase = "codegen"
	Assembler Phase = "assembler"
	Linker    Phase = "linker"
)

// Error is a single diagnostic: a phase tag, an optional source position,
// and a human-readable message. It implements error and Cause() error so
// that github.com/pkg/errors.Cause and errors.Wrap compose with it exactly
// as they do with the teacher's own error values.
type Error struct {
	Phase   Phase
	File    string
	Line    int // 0 when unknown
	Col     int // 0 when unknown
	Message string
	cause   error
}

// New builds a diagnostic with no known source position.
func New(phase Phase, file, message string) *Error {
	return &Error{Phase: phase, File: file, Message: message}
}

// At builds a diagnostic carrying a source line/column.
func At(phase Phase, file string, line, col int, message string) *Error {
	return &Error{Phase: phase, File: file, Line: line, Col: col, Message: message}
}

// Wrap attaches a phase/position to an underlying error, preserving it as
// the Cause.
func Wrap(phase Phase, file string, line, col int, cause error) *Error {
	return &Error{Phase: phase, File: file, Line: line, Col: col, Message: cause.Error(), cause: cause}
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s:%d:%d: %s", e.Phase, e.File, e.Line, e.Col, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.Phase, e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Message)
}

// Cause implements the interface github.com/pkg/errors.Cause unwraps.
func (e *Error) Cause() error { return e.cause }

// List is an ordered collection of diagnostics accumulated across one or
// more compilation units. A List with Len() == 0 denotes success.
type List []*Error

// Add appends a diagnostic.
func (l *List) Add(e *Error) { *l = append(*l, e) }

// HasErrors reports whether the list is non-empty. Every entry in List is
// currently an error-level diagnostic; there is no warning severity in this
// compiler (see spec §7 — errors only, fail-fast per phase).
func (l List) HasErrors() bool { return len(l) > 0 }

// Error renders every diagnostic, one per line, as "phase: file:line:col:
// message" (or the shorter forms when position/file are unknown) — the
// exact rendering spec §6 describes for "Diagnostics".
func (l List) Error() string {
	s := ""
	for i, e := range l {
		if i > 0 {
			s += "\n"
		}
		s += e.Error()
	}
	return s
}
