package app

import (
	"fmt"
	"strings"
)

// Process is one attachable process as shown to operators.
type Process struct {
	ID      string `json:"id" yaml:"id"`
	Display string `json:"display" yaml:"display"`
}

// Label renders "ID (Display)", or just the ID when there is no display.
func (p Process) Label() string {
	if strings.TrimSpace(p.Display) == "" {
		return p.ID
	}
	return fmt.Sprintf("%s (%s)", p.ID, p.Display)
}

// ExecParams names a command and the process it should run against.
type ExecParams struct {
	// Selector is a process id or a pattern over display names. Ignored for
	// commands that need no target.
	Selector string
	Command  string
	// Args are passed to the agent unchanged.
	Args map[string]any
}

// ExecResult is what a command produced. Target is empty when the command
// needed no target.
type ExecResult struct {
	Command string         `json:"command" yaml:"command"`
	Target  string         `json:"target,omitempty" yaml:"target,omitempty"`
	Output  map[string]any `json:"output" yaml:"output"`
}
