// Package platform is the host side of attaching: where agents announce
// themselves, how they are listed and how their control socket is opened.
package platform

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const (
	dirName       = "agentctl"
	markerSuffix  = ".proc"
	socketSuffix  = ".sock"
	triggerPrefix = ".attach_"
	lockSuffix    = ".lock"
)

// Layout names the files agents and attachers share inside one runtime
// directory.
type Layout struct {
	Dir string
}

// NewLayout uses dir, or DefaultDir() when dir is empty.
func NewLayout(dir string) Layout {
	if dir == "" {
		dir = DefaultDir()
	}
	return Layout{Dir: dir}
}

// DefaultDir returns the runtime directory.
// Order of precedence (first wins):
//  1. AGENTCTL_RUNTIME_DIR
//  2. on linux: $XDG_RUNTIME_DIR/agentctl
//  3. /tmp/agentctl-<uid> (kept short for the sun_path length limit)
func DefaultDir() string {
	if explicit := os.Getenv("AGENTCTL_RUNTIME_DIR"); explicit != "" {
		return explicit
	}
	if runtime.GOOS == "linux" {
		if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
			return filepath.Join(v, dirName)
		}
	}
	return filepath.Join(os.TempDir(), dirName+"-"+currentUID())
}

// EnsureDir creates the runtime directory if needed.
func (l Layout) EnsureDir() error {
	if err := os.MkdirAll(l.Dir, 0o700); err != nil {
		return fmt.Errorf("create runtime dir %s: %w", l.Dir, err)
	}
	return nil
}

// MarkerPath is where an agent announces pid; see Marker for the content.
func (l Layout) MarkerPath(pid int) string {
	return filepath.Join(l.Dir, strconv.Itoa(pid)+markerSuffix)
}

// SocketPath is the control socket of pid.
func (l Layout) SocketPath(pid int) string {
	return filepath.Join(l.Dir, strconv.Itoa(pid)+socketSuffix)
}

// TriggerPath exists while an attacher asks pid to open its control socket.
func (l Layout) TriggerPath(pid int) string {
	return filepath.Join(l.Dir, triggerPrefix+strconv.Itoa(pid))
}

// LockPath serializes attachers triggering the same pid.
func (l Layout) LockPath(pid int) string {
	return filepath.Join(l.Dir, triggerPrefix+strconv.Itoa(pid)+lockSuffix)
}

func parseMarker(name string) (int, bool) {
	raw, ok := strings.CutSuffix(name, markerSuffix)
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func currentUID() string {
	u, err := user.Current()
	if err == nil && u != nil && u.Uid != "" {
		return u.Uid
	}
	return strconv.Itoa(os.Getuid())
}
