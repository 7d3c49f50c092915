package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"agentctl/internal/attach"
	"agentctl/internal/logging"
	"agentctl/internal/protocol"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// TriggerSignal asks an agent to bring up its control socket when the
// trigger file for its pid exists.
const TriggerSignal = unix.SIGUSR1

const (
	defaultAttachTimeout  = 10 * time.Second
	defaultConnectTimeout = 3 * time.Second
	defaultPollInterval   = 100 * time.Millisecond
)

// OpenerOptions configures an Opener. Zero durations use defaults.
type OpenerOptions struct {
	Layout         Layout
	AttachTimeout  time.Duration
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// Opener is the attach primitive for agents in the runtime directory.
//
// If the target's control socket is missing it writes the trigger file,
// signals the target and waits up to AttachTimeout for the socket. That wait
// is the primitive's own bound; callers add none on top. A pid is only
// signalled when its marker's identity stamp matches the live process.
type Opener struct {
	layout         Layout
	attachTimeout  time.Duration
	connectTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger

	signal   func(pid int, sig unix.Signal) error
	probe    func(pid int) error
	euid     func() int
	identify func(pid int) Identity
}

// NewOpener builds an Opener.
func NewOpener(opts OpenerOptions) *Opener {
	o := &Opener{
		layout:         opts.Layout,
		attachTimeout:  opts.AttachTimeout,
		connectTimeout: opts.ConnectTimeout,
		pollInterval:   defaultPollInterval,
		logger:         logging.OrDiscard(opts.Logger),
		signal:         unix.Kill,
		probe:          func(pid int) error { return unix.Kill(pid, 0) },
		euid:           unix.Geteuid,
		identify:       identityOf,
	}
	if o.attachTimeout <= 0 {
		o.attachTimeout = defaultAttachTimeout
	}
	if o.connectTimeout <= 0 {
		o.connectTimeout = defaultConnectTimeout
	}
	return o
}

// Open implements attach.Opener. Failures are *attach.Cause values.
func (o *Opener) Open(ctx context.Context, id string) (attach.Channel, error) {
	pid, err := strconv.Atoi(id)
	if err != nil || pid <= 0 {
		return nil, attach.NewCause(attach.KindProcessNotFound, err, "invalid process id %q", id)
	}
	if err := o.checkAlive(pid); err != nil {
		return nil, err
	}

	sock := o.layout.SocketPath(pid)
	if _, err := os.Stat(sock); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, attach.NewCause(attach.KindIO, err, "stat control socket %s", sock)
		}
		if err := o.trigger(ctx, pid, sock); err != nil {
			return nil, err
		}
	}
	if err := o.checkOwner(sock); err != nil {
		return nil, err
	}
	return o.connect(ctx, pid, sock)
}

func (o *Opener) checkAlive(pid int) error {
	err := o.probe(pid)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return attach.NewCause(attach.KindProcessNotFound, err, "process %d not found", pid)
	case errors.Is(err, unix.EPERM):
		return attach.NewCause(attach.KindPermissionDenied, err, "process %d belongs to another user", pid)
	default:
		return attach.NewCause(attach.KindIO, err, "probe process %d", pid)
	}
}

func (o *Opener) trigger(ctx context.Context, pid int, sock string) error {
	if err := o.layout.EnsureDir(); err != nil {
		return attach.NewCause(attach.KindIO, err, "prepare runtime dir")
	}

	lock := flock.New(o.layout.LockPath(pid))
	lctx, cancel := context.WithTimeout(ctx, o.attachTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lctx, o.pollInterval)
	if err != nil || !locked {
		return attach.NewCause(attach.KindIO, err, "lock attach of process %d", pid)
	}
	defer lock.Unlock()

	// Another attacher may have brought the socket up while we waited.
	if socketExists(sock) {
		return nil
	}
	// The trigger signal kills a process that has no agent, so only a pid
	// whose marker was stamped by this very process is signalled.
	if err := o.checkMarker(pid); err != nil {
		return err
	}

	trigger := o.layout.TriggerPath(pid)
	if err := os.WriteFile(trigger, nil, 0o600); err != nil {
		return attach.NewCause(attach.KindIO, err, "write trigger file %s", trigger)
	}
	defer os.Remove(trigger)

	o.logger.Debug("signalling target", "pid", pid, "signal", TriggerSignal.String())
	if err := o.signal(pid, TriggerSignal); err != nil {
		if cause := o.checkAlive(pid); cause != nil {
			return cause
		}
		return attach.NewCause(attach.KindIO, err, "signal process %d", pid)
	}

	deadline := time.Now().Add(o.attachTimeout)
	for {
		if socketExists(sock) {
			return nil
		}
		if err := o.probe(pid); errors.Is(err, unix.ESRCH) {
			return attach.NewCause(attach.KindProcessNotFound, err, "process %d exited while attaching", pid)
		}
		if time.Now().After(deadline) {
			return attach.NewCause(attach.KindAttachNotSupported, nil,
				"Unable to open socket file %s: target process %d not responding within %s or agent not loaded",
				sock, pid, o.attachTimeout)
		}
		select {
		case <-ctx.Done():
			return attach.NewCause(attach.KindIO, ctx.Err(), "attach to process %d interrupted", pid)
		case <-time.After(o.pollInterval):
		}
	}
}

func (o *Opener) checkMarker(pid int) error {
	path := o.layout.MarkerPath(pid)
	m, err := ReadMarker(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return attach.NewCause(attach.KindProcessNotFound, err, "process %d has not announced an agent", pid)
	case err != nil:
		return attach.NewCause(attach.KindProcessNotFound, err, "process %d has no valid agent marker", pid)
	case !m.Matches(o.identify(pid)):
		return attach.NewCause(attach.KindProcessNotFound, nil,
			"marker %s was left by an earlier process; pid %d now belongs to another program", path, pid)
	}
	return nil
}

func (o *Opener) checkOwner(sock string) error {
	var st unix.Stat_t
	if err := unix.Stat(sock, &st); err != nil {
		return attach.NewCause(attach.KindIO, err, "stat control socket %s", sock)
	}
	if euid := o.euid(); int(st.Uid) != euid {
		return attach.NewCause(attach.KindPermissionDenied, nil,
			"control socket %s is owned by uid %d, not %d", sock, st.Uid, euid)
	}
	return nil
}

func (o *Opener) connect(ctx context.Context, pid int, sock string) (attach.Channel, error) {
	dctx, cancel := context.WithTimeout(ctx, o.connectTimeout)
	defer cancel()

	client, conn, err := protocol.Dial(dctx, sock)
	if err != nil {
		return nil, attach.NewCause(attach.KindIO, err, "connect to control socket of process %d", pid)
	}
	pong, err := client.Ping(dctx, &emptypb.Empty{})
	if err != nil {
		_ = conn.Close()
		if status.Code(err) == codes.Unimplemented {
			return nil, attach.NewCause(attach.KindProtocol, err, "process %d does not speak %s", pid, protocol.Version)
		}
		return nil, attach.NewCause(attach.KindIO, err, "handshake with process %d", pid)
	}
	if got := pong.GetValue(); got != protocol.Version {
		_ = conn.Close()
		return nil, attach.NewCause(attach.KindProtocol, nil, "process %d speaks %q, want %q", pid, got, protocol.Version)
	}
	return newChannel(client, conn), nil
}

func socketExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// channel is an attach.Channel over the gRPC control service.
type channel struct {
	client protocol.ControlClient
	conn   io.Closer

	once     sync.Once
	closeErr error
}

func newChannel(client protocol.ControlClient, conn io.Closer) *channel {
	return &channel{client: client, conn: conn}
}

func (c *channel) Execute(ctx context.Context, command string, args map[string]any) (map[string]any, error) {
	req, err := protocol.NewRequest(command, args)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", command, err)
	}
	return resp.AsMap(), nil
}

func (c *channel) Close() error {
	c.once.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
