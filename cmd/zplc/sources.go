package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/link"
	"github.com/db47h/zplc/internal/project"
	"github.com/db47h/zplc/internal/visual/fbd"
	"github.com/db47h/zplc/internal/visual/ld"
	"github.com/db47h/zplc/internal/visual/sfc"
)

// knownExtensions maps a source file suffix to its language tag (spec §6
// "Source file languages"). ".il" is intentionally absent: Instruction
// List is not compiled by this toolchain.
var knownExtensions = map[string]string{
	".st":       "st",
	".ld.json":  "ld",
	".fbd.json": "fbd",
	".sfc.json": "sfc",
}

// transpilers wires every visual front-end into the linker, per spec §4.8.
var transpilers = link.Transpilers{
	"ld":  ld.Transpile,
	"fbd": fbd.Transpile,
	"sfc": sfc.Transpile,
}

// loadSources scans dir for every file whose name (minus a known extension)
// matches a program referenced by proj's tasks, tolerating extension and
// case differences exactly as internal/link's own matching does.
func loadSources(dir string, proj *project.File) ([]link.Source, error) {
	wanted := make(map[string]bool)
	for _, t := range proj.Tasks {
		for _, p := range t.Programs {
			wanted[strings.ToLower(stripKnownExt(p))] = true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read project directory %q", dir)
	}

	var sources []link.Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lang, base, ok := classify(e.Name())
		if !ok {
			continue
		}
		if !wanted[strings.ToLower(base)] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read source %q", e.Name())
		}
		sources = append(sources, link.Source{Name: e.Name(), Language: lang, Text: string(data)})
	}
	return sources, nil
}

// classify reports the language and base name (without its recognized
// extension) of a candidate source file name.
func classify(name string) (lang, base string, ok bool) {
	lower := strings.ToLower(name)
	for ext, l := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return l, name[:len(name)-len(ext)], true
		}
	}
	return "", "", false
}

func stripKnownExt(name string) string {
	lower := strings.ToLower(name)
	for ext := range knownExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
