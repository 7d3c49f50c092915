package platform

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"agentctl/internal/catalog"
	"agentctl/internal/logging"

	"golang.org/x/sys/unix"
)

// Lister enumerates processes that announced an agent in the runtime
// directory. Markers of processes that no longer exist, or whose pid now
// belongs to a different process, are skipped.
type Lister struct {
	layout Layout
	logger *slog.Logger
}

// NewLister returns a Lister over layout.
func NewLister(layout Layout, logger *slog.Logger) *Lister {
	return &Lister{layout: layout, logger: logging.OrDiscard(logger)}
}

// List implements catalog.Lister.
func (l *Lister) List(ctx context.Context) ([]catalog.Descriptor, error) {
	entries, err := os.ReadDir(l.layout.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type entry struct {
		pid  int
		desc catalog.Descriptor
	}
	found := make([]entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pid, ok := parseMarker(e.Name())
		if !ok {
			continue
		}
		if !processExists(pid) {
			l.logger.Debug("skipping stale marker", "pid", pid)
			continue
		}
		m, err := ReadMarker(l.layout.MarkerPath(pid))
		if err != nil {
			l.logger.Debug("skipping unreadable marker", "pid", pid, "err", err)
			continue
		}
		if !m.Matches(identityOf(pid)) {
			l.logger.Debug("skipping marker left by an earlier process", "pid", pid)
			continue
		}
		display := m.Display
		if display == "" {
			display = commandLine(pid)
		}
		found = append(found, entry{
			pid:  pid,
			desc: catalog.Descriptor{ID: strconv.Itoa(pid), Display: display},
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].pid < found[j].pid })

	out := make([]catalog.Descriptor, 0, len(found))
	for _, f := range found {
		out = append(out, f.desc)
	}
	return out, nil
}

// processExists treats EPERM as alive: the process is there, it just
// belongs to someone else.
func processExists(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
