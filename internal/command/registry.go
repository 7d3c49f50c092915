// Package command holds the read-only table of commands agentctl knows.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Names of the bundled commands.
const (
	Start   = "start"
	Stop    = "stop"
	Status  = "status"
	Toggle  = "toggle"
	List    = "list"
	Version = "version"
)

// Spec describes one command.
type Spec struct {
	Name           string
	Description    string
	RequiresTarget bool
}

var ErrUnknownCommand = errors.New("unknown command")

// UnknownCommandError names the rejected command and what would have worked.
type UnknownCommandError struct {
	Name  string
	Known []string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

// Registry maps command names to specs. It is built once and never mutated.
type Registry struct {
	specs map[string]Spec
	names []string
}

// NewRegistry builds a registry. Duplicate or empty names are rejected.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("command name must not be empty")
		}
		if _, dup := r.specs[name]; dup {
			return nil, fmt.Errorf("command %q registered twice", name)
		}
		s.Name = name
		r.specs[name] = s
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Default returns the registry of bundled agent commands.
func Default() *Registry {
	r, err := NewRegistry(
		Spec{Name: Start, Description: "Start the management agent in the target process", RequiresTarget: true},
		Spec{Name: Stop, Description: "Stop the management agent in the target process", RequiresTarget: true},
		Spec{Name: Status, Description: "Show whether the management agent is running", RequiresTarget: true},
		Spec{Name: Toggle, Description: "Start the agent if stopped, stop it if running", RequiresTarget: true},
		Spec{Name: List, Description: "List attachable processes"},
		Spec{Name: Version, Description: "Print the agentctl version"},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (Spec, error) {
	if s, ok := r.specs[name]; ok {
		return s, nil
	}
	return Spec{}, &UnknownCommandError{Name: name, Known: r.Names()}
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
