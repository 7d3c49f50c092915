package selector

import (
	"errors"
	"fmt"
	"strings"

	"agentctl/internal/catalog"
)

var (
	ErrInvalidSelector   = errors.New("invalid selector")
	ErrNoSuchProcess     = errors.New("no such process")
	ErrAmbiguousSelector = errors.New("ambiguous selector")
)

// InvalidSelectorError is returned when the selector is missing or does not
// compile as a regular expression.
type InvalidSelectorError struct {
	Selector string
	Reason   string
	Err      error
}

func (e *InvalidSelectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid selector %q: %v", e.Selector, e.Err)
	}
	return e.Reason
}

func (e *InvalidSelectorError) Unwrap() error        { return e.Err }
func (e *InvalidSelectorError) Is(target error) bool { return target == ErrInvalidSelector }

// NoSuchProcessError is returned when nothing in the snapshot matches.
type NoSuchProcessError struct {
	Selector string
}

func (e *NoSuchProcessError) Error() string {
	return fmt.Sprintf("no process with id or name matching %q found; run `agentctl list` to see attachable processes", e.Selector)
}

func (e *NoSuchProcessError) Is(target error) bool { return target == ErrNoSuchProcess }

// AmbiguousSelectorError lists every candidate so the operator can pick one.
type AmbiguousSelectorError struct {
	Selector   string
	Candidates []catalog.Descriptor
}

func (e *AmbiguousSelectorError) Error() string {
	parts := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		parts = append(parts, fmt.Sprintf("%s (%s)", c.ID, displayOrDash(c.Display)))
	}
	return fmt.Sprintf("selector %q matches %d processes: %s. Use a process id or a narrower pattern",
		e.Selector, len(e.Candidates), strings.Join(parts, ", "))
}

func (e *AmbiguousSelectorError) Is(target error) bool { return target == ErrAmbiguousSelector }

// IDs returns the candidate process ids in snapshot order.
func (e *AmbiguousSelectorError) IDs() []string {
	ids := make([]string, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

func displayOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
