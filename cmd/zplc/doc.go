// Command zplc compiles IEC 61131-3 Structured Text (and LD/FBD/SFC visual
// models transpiled to it) into ZPLC bytecode containers.
//
// Usage:
//
//	zplc build [-o file] [-watch] [-v] project.json
//	zplc check project.json
//	zplc disasm container.zpc
//
// build compiles a project descriptor end-to-end through the linker into a
// container file; -watch keeps rebuilding whenever a source file changes,
// until 'q' is pressed. check runs every referenced program through lex,
// parse, symbol-table construction, code generation and assembly, and
// reports diagnostics without linking. disasm decodes a container file and
// prints its CODE segment as annotated assembly alongside its task table.
package main
