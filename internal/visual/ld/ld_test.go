package ld_test

import (
	"strings"
	"testing"

	"github.com/db47h/zplc/internal/visual/ld"
)

func TestTranspileSimpleRung(t *testing.T) {
	src := `{
		"program": "Motor",
		"vars": [{"name":"Start","type":"BOOL"},{"name":"Stop","type":"BOOL"},{"name":"Run","type":"BOOL"}],
		"rungs": [{
			"network": {"type":"and","nodes":[
				{"type":"contact","var":"Start"},
				{"type":"contact","var":"Stop","negated":true}
			]},
			"coils": [{"var":"Run"}]
		}]
	}`
	st, err := ld.Transpile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(st, "PROGRAM Motor") {
		t.Fatalf("expected a PROGRAM header, got:\n%s", st)
	}
	if !strings.Contains(st, "Run := (Start AND NOT Stop);") {
		t.Fatalf("expected the rung's boolean expression, got:\n%s", st)
	}
}

func TestTranspileRejectsUndeclaredVariable(t *testing.T) {
	src := `{
		"program": "Bad",
		"vars": [{"name":"Run","type":"BOOL"}],
		"rungs": [{
			"network": {"type":"contact","var":"Ghost"},
			"coils": [{"var":"Run"}]
		}]
	}`
	if _, err := ld.Transpile(src); err == nil {
		t.Fatal("expected an error for an undeclared contact variable")
	}
}

func TestTranspileRejectsDanglingRung(t *testing.T) {
	src := `{
		"program": "Bad",
		"vars": [{"name":"Run","type":"BOOL"}],
		"rungs": [{"network": {"type":"contact","var":"Run"}, "coils": []}]
	}`
	if _, err := ld.Transpile(src); err == nil {
		t.Fatal("expected an error for a rung with no coil")
	}
}
