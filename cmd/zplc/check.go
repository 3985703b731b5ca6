package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/asm"
	"github.com/db47h/zplc/internal/codegen"
	"github.com/db47h/zplc/internal/parse"
	"github.com/db47h/zplc/internal/symtab"
)

// cmdCheck implements "zplc check project.json": run lex/parse/symtab/
// codegen/assemble over every referenced program and report diagnostics,
// without linking — useful for editor integration (SPEC_FULL.md §3.1).
func cmdCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("check: expected exactly one project descriptor argument")
	}
	projPath := fs.Arg(0)
	_, sources, err := loadProject(projPath)
	if err != nil {
		return err
	}

	failed := false
	for _, src := range sources {
		stText := src.Text
		if src.Language != "st" {
			tr, ok := transpilers[src.Language]
			if !ok {
				fmt.Fprintf(os.Stderr, "%s: no transpiler for language %q\n", src.Name, src.Language)
				failed = true
				continue
			}
			stText, err = tr(src.Text)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", src.Name, err)
				failed = true
				continue
			}
		}
		if err := checkOne(src.Name, stText); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", src.Name, err)
			failed = true
		} else {
			fmt.Fprintf(os.Stderr, "%s: ok\n", src.Name)
		}
	}
	if failed {
		return errors.New("check: one or more programs failed")
	}
	return nil
}

func checkOne(name, stText string) error {
	unit, err := parse.ParseSource(name, stText)
	if err != nil {
		return err
	}
	if len(unit.Programs) == 0 {
		return errors.New("no PROGRAM declaration found")
	}
	tab := symtab.New(unit, symtab.WorkBase)
	if tab.Errors.HasErrors() {
		return errors.New(tab.Errors.Error())
	}
	for _, prog := range unit.Programs {
		res, err := codegen.Generate(unit, prog, tab, codegen.Config{})
		if err != nil {
			return err
		}
		if _, err := asm.Assemble(res.Text); err != nil {
			return err
		}
	}
	return nil
}
