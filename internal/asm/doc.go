// This file documents the ZPLC assembly text format accepted by Assemble.
//
// A line is one of:
//
//	<label>:
//	<label>: <mnemonic> [operand]
//	<mnemonic> [operand]
//
// Comments start with ';' and run to end of line. A comment of the form
// "; @source N" immediately preceding an instruction line records that the
// instruction originated from source line N; Assemble collects these into
// Result.Mappings (spec §4.6 "Instruction mappings").
//
// Numeric operands are decimal or 0x-prefixed hexadecimal, optionally
// negative. A non-numeric operand is treated as a label reference and
// resolved to that label's program-counter value (absolute branches) or to
// a signed 8-bit offset relative to the end of the current instruction
// (JR/JRZ/JRNZ).
//
// Example:
//
//	_start:
//		PUSH8 10
//	loop:
//		DUP
//		PUSH8 1
//		SUB
//		JNZ loop
//		HALT
package asm
