package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

var debug bool

func atExit(err error) {
	if err == nil {
		return
	}
	if !debug {
		fmt.Fprintf(os.Stderr, "zplc: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "zplc: %+v\n", err)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: zplc <build|check|disasm> [flags] args...")
}

func main() {
	var err error
	defer func() { atExit(err) }()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var rest []string
	for _, a := range os.Args[2:] {
		if a == "-debug" {
			debug = true
			continue
		}
		rest = append(rest, a)
	}

	switch os.Args[1] {
	case "build":
		err = cmdBuild(rest)
	case "check":
		err = cmdCheck(rest)
	case "disasm":
		err = cmdDisasm(rest)
	case "-h", "-help", "--help":
		usage()
	default:
		usage()
		err = errors.Errorf("unknown subcommand %q", os.Args[1])
	}
}
