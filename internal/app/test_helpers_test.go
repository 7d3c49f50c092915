package app

import (
	"context"
	"testing"

	"agentctl/internal/attach/attachtest"
	"agentctl/internal/catalog"
	"agentctl/internal/config"
)

func staticLister(procs ...catalog.Descriptor) catalog.Lister {
	return catalog.ListerFunc(func(context.Context) ([]catalog.Descriptor, error) {
		return append([]catalog.Descriptor(nil), procs...), nil
	})
}

func newTestApp(t *testing.T, lister catalog.Lister, opener *attachtest.Opener) *App {
	t.Helper()
	cfg := config.Default()
	cfg.RuntimeDir = t.TempDir()
	opts := Options{Config: cfg, Lister: lister}
	if opener != nil {
		opts.Opener = opener
	}
	return New(opts)
}

func assertBalanced(t *testing.T, opener *attachtest.Opener) {
	t.Helper()
	if leaked := opener.Leaked(); leaked != 0 {
		t.Fatalf("expected every opened channel to be closed, %d leaked", leaked)
	}
	if opener.Opens() != opener.Closes() {
		t.Fatalf("opens (%d) != closes (%d)", opener.Opens(), opener.Closes())
	}
}
