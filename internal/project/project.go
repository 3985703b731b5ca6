// Package project parses the zplc.json project descriptor (spec §6
// "Project descriptor").
//
// The descriptor is plain stdlib encoding/json unmarshaling into tagged
// structs, the same "parse then apply defaults" two-step the teacher uses
// for its flag.Var options in cmd/retro/main.go: unmarshal the raw value,
// then fill in package-level default constants for anything the author
// left zero. No pack example offers an alternative serialization library
// suited to a fixed, spec-mandated JSON schema (SPEC_FULL.md §2.3), so no
// third-party dependency applies here.
package project

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Defaults applied after unmarshaling, spec §6 and §4.7.
const (
	DefaultIntervalMs = 10
	DefaultPriority   = 1
	DefaultStackSize  = 64
)

// Trigger is a task's scheduling kind.
type Trigger string

const (
	TriggerCyclic      Trigger = "cyclic"
	TriggerEvent       Trigger = "event"
	TriggerFreewheeling Trigger = "freewheeling"
)

// Target describes the hardware a project compiles for.
type Target struct {
	Board    string `json:"board"`
	CPU      string `json:"cpu,omitempty"`
	ClockMHz int     `json:"clock_mhz,omitempty"`
}

// CompilerOptions mirrors spec §6's "compiler" object.
type CompilerOptions struct {
	Optimization string `json:"optimization,omitempty"` // "none" | "speed" | "size"
	Debug        bool   `json:"debug,omitempty"`
	Warnings     string `json:"warnings,omitempty"` // "none" | "default" | "all"
}

// IOPin is one entry of the project's io.inputs/io.outputs arrays.
type IOPin struct {
	Name        string `json:"name"`
	Address     string `json:"address"` // "%I0.0"-style
	Pin         *int   `json:"pin,omitempty"`
	Type        string `json:"type"` // "BOOL" | "INT" | "REAL"
	Description string `json:"description,omitempty"`
}

// IO mirrors spec §6's "io" object.
type IO struct {
	Inputs  []IOPin `json:"inputs,omitempty"`
	Outputs []IOPin `json:"outputs,omitempty"`
}

// Build mirrors spec §6's "build" object.
type Build struct {
	OutDir      string   `json:"outDir,omitempty"`
	EntryPoints []string `json:"entryPoints,omitempty"`
}

// Task is one project-level task entry (spec §6, §4.7 step 5).
type Task struct {
	Name     string   `json:"name"`
	Trigger  Trigger  `json:"trigger"`
	Interval int      `json:"interval,omitempty"` // milliseconds
	Priority *int     `json:"priority,omitempty"`
	Watchdog int      `json:"watchdog,omitempty"` // milliseconds
	Programs []string `json:"programs"`
}

// IntervalMsOrDefault applies the §6 default (10ms).
func (t Task) IntervalMsOrDefault() int {
	if t.Interval > 0 {
		return t.Interval
	}
	return DefaultIntervalMs
}

// PriorityOrDefault applies the §6 default (1).
func (t Task) PriorityOrDefault() int {
	if t.Priority != nil {
		return *t.Priority
	}
	return DefaultPriority
}

// File is the full zplc.json descriptor.
type File struct {
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description,omitempty"`
	Author      string           `json:"author,omitempty"`
	Target      *Target          `json:"target,omitempty"`
	Compiler    *CompilerOptions `json:"compiler,omitempty"`
	IO          *IO              `json:"io,omitempty"`
	Build       *Build           `json:"build,omitempty"`
	Tasks       []Task           `json:"tasks"`
}

// Parse unmarshals and validates a zplc.json document (spec §6's required
// fields: name, version, a non-empty tasks array; spec §4.7 step 5: a task
// must name at least one program).
func Parse(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse project descriptor")
	}
	if f.Name == "" {
		return nil, errors.New("project descriptor: missing required field \"name\"")
	}
	if f.Version == "" {
		return nil, errors.New("project descriptor: missing required field \"version\"")
	}
	if len(f.Tasks) == 0 {
		return nil, errors.New("project descriptor: \"tasks\" must be non-empty")
	}
	for _, t := range f.Tasks {
		if len(t.Programs) == 0 {
			return nil, errors.Errorf("project descriptor: task %q names no programs", t.Name)
		}
	}
	if f.Compiler == nil {
		f.Compiler = &CompilerOptions{}
	}
	if f.Compiler.Optimization == "" {
		f.Compiler.Optimization = "none"
	}
	if f.Compiler.Warnings == "" {
		f.Compiler.Warnings = "default"
	}
	return &f, nil
}
