package fbd_test

import (
	"strings"
	"testing"

	"github.com/db47h/zplc/internal/visual/fbd"
)

func TestTranspileTimerBlock(t *testing.T) {
	src := `{
		"program": "Blinky",
		"vars": [{"name":"Start","type":"BOOL"},{"name":"Lamp","type":"BOOL"}],
		"blocks": [{"id":"Tmr","type":"TON","inputs":{"IN":"Start","PT":"T#1000ms"}}],
		"outputs": [{"var":"Lamp","source":"Tmr.Q"}]
	}`
	st, err := fbd.Transpile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(st, "Tmr : TON;") {
		t.Fatalf("expected an FB instance declaration, got:\n%s", st)
	}
	if !strings.Contains(st, "Tmr(IN := Start, PT := T#1000ms);") {
		t.Fatalf("expected the block's call statement, got:\n%s", st)
	}
	if !strings.Contains(st, "Lamp := Tmr.Q;") {
		t.Fatalf("expected the output binding, got:\n%s", st)
	}
}

func TestTranspileRejectsDanglingBlockReference(t *testing.T) {
	src := `{
		"program": "Bad",
		"vars": [{"name":"Lamp","type":"BOOL"}],
		"blocks": [],
		"outputs": [{"var":"Lamp","source":"Ghost.Q"}]
	}`
	if _, err := fbd.Transpile(src); err == nil {
		t.Fatal("expected an error for an output sourced from an unknown block")
	}
}
