package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/db47h/zplc/internal/container"
	"github.com/db47h/zplc/internal/link"
	"github.com/db47h/zplc/internal/project"
)

// cmdBuild implements "zplc build [-o out] [-watch] [-v] project.json"
// (SPEC_FULL.md §3.1): compile a project descriptor end-to-end into a
// container file.
func cmdBuild(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("o", "", "output container `filename` (default: <project>.zpc)")
	watch := fs.Bool("watch", false, "rebuild whenever a source file under the project directory changes")
	verbose := fs.Bool("v", false, "print one line per compiled program/task")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("build: expected exactly one project descriptor argument")
	}
	projPath := fs.Arg(0)
	outPath := *out
	if outPath == "" {
		outPath = trimExt(projPath) + ".zpc"
	}

	build := func() error {
		proj, sources, err := loadProject(projPath)
		if err != nil {
			return err
		}
		res, err := link.Link(proj, sources, transpilers)
		if err != nil {
			return err
		}
		if *verbose {
			for _, p := range res.Programs {
				fmt.Fprintf(os.Stderr, "compiled %s: %d bytes at offset 0x%04X (work base 0x%04X)\n",
					p.Name, p.Size, p.Offset, p.WorkMemBase)
			}
			for i, t := range res.Container.Tasks {
				fmt.Fprintf(os.Stderr, "task %s: entry 0x%04X, interval %dus\n", proj.Tasks[i].Name, t.EntryPoint, t.IntervalUs)
			}
		}
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrapf(err, "create %q", outPath)
		}
		defer f.Close()
		if err := container.Encode(f, res.Container); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d bytes code, %d tasks)\n", outPath, len(res.Container.Code), len(res.Container.Tasks))
		return nil
	}

	if !*watch {
		return build()
	}
	return watchBuild(filepath.Dir(projPath), build)
}

// watchBuild polls the project directory's modification times and reruns
// build whenever something changes, until the user presses 'q'. Polling a
// time.Ticker rather than an fsnotify watch keeps the dependency set
// unchanged from SPEC_FULL.md §3.1 ("fsnotify-free").
func watchBuild(dir string, build func() error) error {
	if err := build(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	quit := make(chan struct{})
	teardown, err := setRawIO()
	if err == nil {
		defer teardown()
		go watchQuitKey(quit)
	} else {
		fmt.Fprintln(os.Stderr, "watch: raw keypress detection unavailable, press Ctrl-C to stop")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	lastMod := latestModTime(dir)
	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			m := latestModTime(dir)
			if m.After(lastMod) {
				lastMod = m
				if err := build(); err != nil {
					fmt.Fprintf(os.Stderr, "%v\n", err)
				}
			}
		}
	}
}

func latestModTime(dir string) time.Time {
	var latest time.Time
	entries, err := os.ReadDir(dir)
	if err != nil {
		return latest
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	return latest
}

func loadProject(path string) (*project.File, []link.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read project descriptor %q", path)
	}
	proj, err := project.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	sources, err := loadSources(filepath.Dir(path), proj)
	if err != nil {
		return nil, nil, err
	}
	return proj, sources, nil
}

func trimExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}
