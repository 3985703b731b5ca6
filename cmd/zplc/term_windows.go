package main

import "github.com/pkg/errors"

// setRawIO is not implemented on Windows, matching the teacher's
// cmd/retro/term_windows.go stub — "zplc build -watch" falls back to
// polling only, with Ctrl-C to stop.
func setRawIO() (func(), error) {
	return nil, errors.New("raw IO not supported on windows")
}
