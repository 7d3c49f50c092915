// Package attach owns the lifecycle of a single attach: open, use, close.
package attach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agentctl/internal/logging"

	"github.com/google/uuid"
)

// Channel is an open control channel to one target process.
type Channel interface {
	Execute(ctx context.Context, command string, args map[string]any) (map[string]any, error)
	Close() error
}

// Opener is the platform attach primitive.
type Opener interface {
	Open(ctx context.Context, id string) (Channel, error)
}

// OpenerFunc adapts a plain function to Opener.
type OpenerFunc func(ctx context.Context, id string) (Channel, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, id string) (Channel, error) {
	return f(ctx, id)
}

type state int

const (
	unattached state = iota
	attached
	detached
)

func (s state) String() string {
	switch s {
	case unattached:
		return "unattached"
	case attached:
		return "attached"
	default:
		return "detached"
	}
}

// Session is used for exactly one attach. It is not safe to share between
// invocations; create a new one per attempt.
type Session struct {
	id     string
	opener Opener
	logger *slog.Logger

	mu     sync.Mutex
	state  state
	handle *Handle
	cause  error
}

// NewSession returns an unattached session.
func NewSession(opener Opener, logger *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		opener: opener,
		logger: logging.OrDiscard(logger).With("session", id),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// LastCause returns the raw failure recorded by Attach, if any.
func (s *Session) LastCause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Attach opens the channel to target. An empty target yields a no-target
// handle without touching the platform. Benign platform failures come back as
// *TransientError, everything else as *Failure.
func (s *Session) Attach(ctx context.Context, target string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != unattached {
		return nil, fmt.Errorf("%w (state %s)", ErrSessionUsed, s.state)
	}

	if target == "" {
		s.state = attached
		s.handle = &Handle{session: s}
		return s.handle, nil
	}

	if s.opener == nil {
		s.state = detached
		s.cause = errors.New("no attach primitive configured")
		return nil, &Failure{Target: target, Err: s.cause}
	}

	s.logger.Debug("attaching", "target", target)
	ch, err := s.opener.Open(ctx, target)
	if err == nil && ch == nil {
		err = errors.New("attach primitive returned no channel")
	}
	if err != nil {
		s.state = detached
		s.cause = err
		if IsBenign(err) {
			var c *Cause
			errors.As(err, &c)
			s.logger.Warn("transient attach condition", "target", target, "cause", err)
			return nil, &TransientError{Target: target, Cause: c}
		}
		s.logger.Debug("attach failed", "target", target, "kind", KindOf(err), "err", err)
		return nil, &Failure{Target: target, Err: err}
	}

	s.state = attached
	s.handle = &Handle{session: s, target: target, channel: ch}
	s.logger.Debug("attached", "target", target)
	return s.handle, nil
}

// Detach releases the channel behind h. It is a no-op for nil handles,
// no-target handles and repeated calls; the close error is reported once.
func (s *Session) Detach(h *Handle) error {
	if h == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.session != s {
		return errors.New("handle belongs to a different attach session")
	}
	if s.state != attached {
		return nil
	}
	s.state = detached
	if h.channel == nil {
		return nil
	}
	if err := h.channel.Close(); err != nil {
		s.logger.Warn("detach failed", "target", h.target, "err", err)
		return fmt.Errorf("detach from process %s: %w", h.target, err)
	}
	s.logger.Debug("detached", "target", h.target)
	return nil
}

func (s *Session) detachedState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == detached
}

// Handle is bound 1:1 to one opened channel, or to none for no-target
// handles.
type Handle struct {
	session *Session
	target  string
	channel Channel
}

// Target returns the attached process id, empty for no-target handles.
func (h *Handle) Target() string { return h.target }

// NoTarget reports whether the handle carries no live channel.
func (h *Handle) NoTarget() bool { return h.channel == nil }

// Execute sends one command over the channel.
func (h *Handle) Execute(ctx context.Context, command string, args map[string]any) (map[string]any, error) {
	if h.channel == nil {
		return nil, ErrNoChannel
	}
	if h.session.detachedState() {
		return nil, ErrDetached
	}
	return h.channel.Execute(ctx, command, args)
}

// Detach releases the handle through its owning session.
func (h *Handle) Detach() error {
	if h == nil || h.session == nil {
		return nil
	}
	return h.session.Detach(h)
}
