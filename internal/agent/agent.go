// Package agent is the in-process side of agentctl. A program calls Install
// once; agentctl can then find it, attach to it and start or stop its
// management endpoint.
package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"agentctl/internal/logging"
	"agentctl/internal/platform"
	"agentctl/internal/protocol"

	"google.golang.org/grpc"
)

// DefaultAddr is used by start when neither the request nor Options name an
// address.
const DefaultAddr = "127.0.0.1:8778"

// Options configures Install.
type Options struct {
	// Dir is the runtime directory; empty means platform.DefaultDir().
	Dir string
	// Display is the label agentctl lists and matches selectors against.
	// Empty means the process command line.
	Display string
	// Addr is the default management listen address.
	Addr string
	// Eager opens the control socket immediately instead of waiting for an
	// attacher to trigger it.
	Eager  bool
	Logger *slog.Logger
}

// Agent is an installed agent. Close removes every trace of it.
type Agent struct {
	layout  platform.Layout
	pid     int
	display string
	addr    string
	logger  *slog.Logger
	started time.Time

	sigc chan os.Signal
	done chan struct{}

	mu      sync.Mutex
	control *grpc.Server
	mgmt    *management
	closed  bool
}

// Install announces the current process in the runtime directory and starts
// listening for attach triggers.
func Install(opts Options) (*Agent, error) {
	layout := platform.NewLayout(opts.Dir)
	if err := layout.EnsureDir(); err != nil {
		return nil, err
	}

	display := strings.TrimSpace(opts.Display)
	if display == "" {
		display = strings.Join(os.Args, " ")
	}
	addr := opts.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	a := &Agent{
		layout:  layout,
		pid:     os.Getpid(),
		display: display,
		addr:    addr,
		logger:  logging.OrDiscard(opts.Logger).With("component", "agent"),
		started: time.Now(),
		sigc:    make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}

	// The trigger signal is fatal to a process that is not listening for it,
	// so the handler goes in before the marker makes the pid attachable.
	signal.Notify(a.sigc, platform.TriggerSignal)
	go a.watchTriggers()

	if err := platform.WriteMarker(layout.MarkerPath(a.pid), platform.NewMarker(a.pid, display)); err != nil {
		signal.Stop(a.sigc)
		close(a.done)
		return nil, fmt.Errorf("announce agent: %w", err)
	}

	if opts.Eager {
		if err := a.startControl(); err != nil {
			_ = a.Close()
			return nil, err
		}
	}
	a.logger.Info("agent installed", "pid", a.pid, "dir", layout.Dir)
	return a, nil
}

// PID returns the process id the agent announced.
func (a *Agent) PID() int { return a.pid }

// Display returns the announced label.
func (a *Agent) Display() string { return a.display }

// ControlRunning reports whether the control socket is being served.
func (a *Agent) ControlRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.control != nil
}

func (a *Agent) watchTriggers() {
	for {
		select {
		case <-a.done:
			return
		case <-a.sigc:
			a.handleTrigger()
		}
	}
}

// handleTrigger opens the control socket only when an attacher left the
// trigger file; stray signals are ignored.
func (a *Agent) handleTrigger() {
	if _, err := os.Stat(a.layout.TriggerPath(a.pid)); err != nil {
		a.logger.Debug("ignoring signal without trigger file")
		return
	}
	if err := a.startControl(); err != nil {
		a.logger.Error("start control listener", "err", err)
	}
}

func (a *Agent) startControl() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errors.New("agent is closed")
	}
	if a.control != nil {
		return nil
	}

	path := a.layout.SocketPath(a.pid)
	// A socket left behind by an earlier process with the same pid.
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale control socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("restrict control socket: %w", err)
	}

	srv := grpc.NewServer()
	protocol.RegisterControlServer(srv, &controlService{agent: a})
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("control listener stopped", "err", err)
		}
	}()
	a.control = srv
	a.logger.Info("control listener started", "socket", path)
	return nil
}

// Close stops the management endpoint and the control listener and removes
// the marker and socket files.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	control := a.control
	a.control = nil
	a.mu.Unlock()

	signal.Stop(a.sigc)
	close(a.done)

	var errs []error
	if _, err := a.StopManagement(); err != nil {
		errs = append(errs, err)
	}
	if control != nil {
		control.Stop()
	}
	for _, path := range []string{a.layout.SocketPath(a.pid), a.layout.MarkerPath(a.pid)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
