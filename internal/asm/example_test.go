package asm_test

import (
	"fmt"
	"os"

	"github.com/db47h/zplc/internal/asm"
)

// ExampleAssemble shows the text format Assemble accepts: labels, mnemonics,
// decimal operands, and a label used as a jump target.
func ExampleAssemble() {
	code := `
_start:
	PUSH8 10
	PUSH8 20
	ADD
	JZ _start
	HALT
`
	res, err := asm.Assemble(code)
	if err != nil {
		fmt.Println(err)
		return
	}
	asm.DisassembleAll(res.Bytecode, 0, os.Stdout)
	// Output:
	//        0	PUSH8 10
	//        2	PUSH8 20
	//        4	ADD
	//        5	JZ 0
	//        8	HALT
}
