// Package handler composes catalog listing, selector resolution and attach
// sessions into the attach/detach entry points callers use.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agentctl/internal/attach"
	"agentctl/internal/catalog"
	"agentctl/internal/command"
	"agentctl/internal/logging"
	"agentctl/internal/selector"
)

// Request is the already-parsed selector and command pair.
type Request struct {
	Selector string
	Command  string
}

// Options wires a Handler.
type Options struct {
	Catalog  *catalog.Catalog
	Opener   attach.Opener
	Commands *command.Registry
	Logger   *slog.Logger
	// Retries is the number of extra attach attempts after a transient
	// failure. Each attempt gets a fresh session.
	Retries int
}

// Handler is stateless between invocations; every Attach builds its own
// session.
type Handler struct {
	catalog  *catalog.Catalog
	opener   attach.Opener
	commands *command.Registry
	logger   *slog.Logger
	retries  int
}

// New builds a Handler. A nil registry means command.Default().
func New(opts Options) *Handler {
	commands := opts.Commands
	if commands == nil {
		commands = command.Default()
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	return &Handler{
		catalog:  opts.Catalog,
		opener:   opts.Opener,
		commands: commands,
		logger:   logging.OrDiscard(opts.Logger),
		retries:  retries,
	}
}

// Attach resolves req to a target and attaches to it.
//
// A nil handle with a nil error means the command needs no target; that is
// an expected outcome, not a failure. Resolver and session errors are
// returned unchanged.
func (h *Handler) Attach(ctx context.Context, req Request) (*attach.Handle, error) {
	spec, err := h.commands.Lookup(req.Command)
	if err != nil {
		return nil, err
	}

	var snapshot []catalog.Descriptor
	if spec.RequiresTarget {
		snapshot, err = h.catalog.List(ctx)
		if err != nil {
			return nil, err
		}
	}

	target, ok, err := selector.Resolve(req.Selector, snapshot, spec.RequiresTarget)
	if err != nil {
		return nil, err
	}
	if !ok {
		h.logger.Debug("command needs no target", "command", spec.Name)
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if attempt > 0 && ctx.Err() != nil {
			break
		}
		session := attach.NewSession(h.opener, h.logger)
		hd, err := session.Attach(ctx, target)
		if err == nil {
			return hd, nil
		}
		if !errors.Is(err, attach.ErrTransient) {
			return nil, err
		}
		lastErr = err
		h.logger.Info("retrying attach after transient condition",
			"target", target, "attempt", attempt+1, "max", h.retries+1)
	}
	return nil, lastErr
}

// Detach releases hd. Safe to call with nil and more than once.
func (h *Handler) Detach(hd *attach.Handle) error {
	if hd == nil {
		return nil
	}
	return hd.Detach()
}

// Run attaches, hands the handle to fn (nil when the command needs no
// target) and detaches on every way out of fn, panics included. A detach
// failure never replaces an error from fn; it is logged and appended to it.
func (h *Handler) Run(ctx context.Context, req Request, fn func(context.Context, *attach.Handle) error) (err error) {
	hd, err := h.Attach(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		derr := h.Detach(hd)
		if derr == nil {
			return
		}
		// While fn panics err is nil and nothing returned is seen.
		h.logger.Warn("detach failed",
			"target", hd.Target(), "command", req.Command, "err", derr, "command_err", err)
		if err != nil {
			err = fmt.Errorf("%w (detach also failed: %v)", err, derr)
			return
		}
		err = derr
	}()
	return fn(ctx, hd)
}

// ListProcesses returns a fresh catalog snapshot.
func (h *Handler) ListProcesses(ctx context.Context) ([]catalog.Descriptor, error) {
	return h.catalog.List(ctx)
}

// Commands exposes the registry the handler was built with.
func (h *Handler) Commands() *command.Registry {
	return h.commands
}
