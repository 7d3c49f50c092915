// Package catalog produces point-in-time snapshots of the processes an
// operator can attach to.
package catalog

import (
	"context"
	"errors"
	"fmt"
)

// Descriptor identifies one listed process. ID is used verbatim by the attach
// mechanism; Display is a free-form label that may be empty or shared by
// several processes.
type Descriptor struct {
	ID      string `json:"id" yaml:"id"`
	Display string `json:"display" yaml:"display"`
}

// Lister is the host capability that enumerates attachable processes.
type Lister interface {
	List(ctx context.Context) ([]Descriptor, error)
}

// ListerFunc adapts a plain function to Lister.
type ListerFunc func(ctx context.Context) ([]Descriptor, error)

// List implements Lister.
func (f ListerFunc) List(ctx context.Context) ([]Descriptor, error) {
	return f(ctx)
}

// ErrDiscovery matches every DiscoveryError.
var ErrDiscovery = errors.New("process discovery failed")

// DiscoveryError reports that the host listing mechanism is unavailable.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("list processes: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// Catalog wraps a Lister. Every List call asks the lister again: the process
// population changes between calls and snapshots are never reused.
type Catalog struct {
	lister Lister
}

// New returns a Catalog backed by l.
func New(l Lister) *Catalog {
	return &Catalog{lister: l}
}

// List returns a fresh snapshot owned by the caller.
func (c *Catalog) List(ctx context.Context) ([]Descriptor, error) {
	if c == nil || c.lister == nil {
		return nil, &DiscoveryError{Err: errors.New("no process lister configured")}
	}
	descs, err := c.lister.List(ctx)
	if err != nil {
		return nil, &DiscoveryError{Err: err}
	}
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	return out, nil
}
