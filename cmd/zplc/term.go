package main

import "os"

// watchQuitKey blocks reading single bytes from stdin (already switched to
// raw mode by setRawIO) until it sees 'q', then closes quit. Adapted from
// the teacher's keystroke-driven REPL loop in cmd/retro/main.go, repurposed
// from Forth input handling to "stop watching".
func watchQuitKey(quit chan<- struct{}) {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(quit)
			return
		}
		if n > 0 && (buf[0] == 'q' || buf[0] == 'Q') {
			close(quit)
			return
		}
	}
}
