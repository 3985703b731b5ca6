package sfc_test

import (
	"strings"
	"testing"

	"github.com/db47h/zplc/internal/visual/sfc"
)

func TestTranspileTwoSteps(t *testing.T) {
	src := `{
		"program": "Sequence",
		"vars": [{"name":"Out1","type":"BOOL"},{"name":"Sensor","type":"BOOL"}],
		"steps": [
			{"name":"Idle","initial":true,"actions":["Out1 := FALSE"]},
			{"name":"Running","actions":["Out1 := TRUE"]}
		],
		"transitions": [
			{"from":"Idle","to":"Running","condition":"Sensor"},
			{"from":"Running","to":"Idle","condition":"NOT Sensor"}
		]
	}`
	st, err := sfc.Transpile(src)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(st, "PROGRAM Sequence") {
		t.Fatalf("expected a PROGRAM header, got:\n%s", st)
	}
	if !strings.Contains(st, "CASE _sfc_step OF") {
		t.Fatalf("expected a CASE dispatch over the step variable, got:\n%s", st)
	}
	if !strings.Contains(st, "IF Sensor THEN") {
		t.Fatalf("expected the transition guard, got:\n%s", st)
	}
}

func TestTranspileRejectsMissingInitialStep(t *testing.T) {
	src := `{
		"program": "Bad",
		"steps": [{"name":"Only"}]
	}`
	if _, err := sfc.Transpile(src); err == nil {
		t.Fatal("expected an error when no step is marked initial")
	}
}

func TestTranspileRejectsDanglingTransition(t *testing.T) {
	src := `{
		"program": "Bad",
		"steps": [{"name":"Only","initial":true}],
		"transitions": [{"from":"Only","to":"Ghost","condition":"TRUE"}]
	}`
	if _, err := sfc.Transpile(src); err == nil {
		t.Fatal("expected an error for a transition targeting an unknown step")
	}
}
