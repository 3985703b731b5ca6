//go:build !linux && !windows

package main

import "github.com/pkg/errors"

// setRawIO has no termios binding on platforms other than linux in this
// tree; "zplc build -watch" falls back to polling only.
func setRawIO() (func(), error) {
	return nil, errors.New("raw IO not supported on this platform")
}
