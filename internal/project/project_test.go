package project_test

import (
	"testing"

	"github.com/db47h/zplc/internal/project"
)

func TestParseAppliesDefaults(t *testing.T) {
	data := []byte(`{
		"name": "demo",
		"version": "0.1.0",
		"tasks": [{"name": "main", "trigger": "cyclic", "programs": ["Blinky"]}]
	}`)
	f, err := project.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if f.Tasks[0].IntervalMsOrDefault() != project.DefaultIntervalMs {
		t.Fatalf("interval default = %d, want %d", f.Tasks[0].IntervalMsOrDefault(), project.DefaultIntervalMs)
	}
	if f.Tasks[0].PriorityOrDefault() != project.DefaultPriority {
		t.Fatalf("priority default = %d, want %d", f.Tasks[0].PriorityOrDefault(), project.DefaultPriority)
	}
	if f.Compiler.Optimization != "none" {
		t.Fatalf("optimization default = %q, want \"none\"", f.Compiler.Optimization)
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	data := []byte(`{"version": "0.1.0", "tasks": [{"name":"main","trigger":"cyclic","programs":["A"]}]}`)
	if _, err := project.Parse(data); err == nil {
		t.Fatal("expected an error for a missing \"name\" field")
	}
}

func TestParseRejectsEmptyTasks(t *testing.T) {
	data := []byte(`{"name":"demo","version":"0.1.0","tasks":[]}`)
	if _, err := project.Parse(data); err == nil {
		t.Fatal("expected an error for an empty \"tasks\" array")
	}
}

func TestParseRejectsTaskWithNoPrograms(t *testing.T) {
	data := []byte(`{"name":"demo","version":"0.1.0","tasks":[{"name":"main","trigger":"cyclic","programs":[]}]}`)
	if _, err := project.Parse(data); err == nil {
		t.Fatal("expected an error for a task naming no programs")
	}
}
