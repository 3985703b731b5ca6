package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/asm"
	"github.com/db47h/zplc/internal/container"
)

// cmdDisasm implements "zplc disasm container.zpc": decode a container file
// and print its CODE segment as annotated assembly plus its TASK segment
// (SPEC_FULL.md §3.1).
func cmdDisasm(args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("disasm: expected exactly one container filename argument")
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return errors.Wrapf(err, "open %q", fs.Arg(0))
	}
	defer f.Close()

	c, err := container.Decode(f)
	if err != nil {
		return err
	}

	fmt.Printf("; CODE segment: %d bytes\n", len(c.Code))
	if err := asm.DisassembleAll(c.Code, 0, os.Stdout); err != nil {
		return err
	}

	fmt.Printf("\n; TASK segment: %d tasks\n", len(c.Tasks))
	for _, t := range c.Tasks {
		fmt.Printf("task %d: type=%d priority=%d interval=%dus entry=0x%04X stack=%d\n",
			t.ID, t.Type, t.Priority, t.IntervalUs, t.EntryPoint, t.StackSize)
	}
	return nil
}
