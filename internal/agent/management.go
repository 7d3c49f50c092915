package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"agentctl/internal/protocol"
	"agentctl/internal/version"

	"github.com/go-chi/chi/v5"
)

const basePath = "/agentctl"

// Status describes the management endpoint.
type Status struct {
	Running bool
	URL     string
}

type management struct {
	srv *http.Server
	url string
}

// StartManagement serves the management endpoint on addr (the agent's
// default when empty). Starting an already running endpoint is not an error;
// started reports whether this call did the work.
func (a *Agent) StartManagement(addr string) (url string, started bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return "", false, errors.New("agent is closed")
	}
	if a.mgmt != nil {
		return a.mgmt.url, false, nil
	}
	if addr == "" {
		addr = a.addr
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", false, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           a.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("management endpoint stopped", "err", err)
		}
	}()

	a.mgmt = &management{srv: srv, url: fmt.Sprintf("http://%s%s/", ln.Addr().String(), basePath)}
	a.logger.Info("management endpoint started", "url", a.mgmt.url)
	return a.mgmt.url, true, nil
}

// StopManagement shuts the endpoint down. Stopping a stopped endpoint is not
// an error; stopped reports whether this call did the work.
func (a *Agent) StopManagement() (stopped bool, err error) {
	a.mu.Lock()
	m := a.mgmt
	a.mgmt = nil
	a.mu.Unlock()

	if m == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		return true, fmt.Errorf("stop management endpoint: %w", err)
	}
	a.logger.Info("management endpoint stopped")
	return true, nil
}

// ManagementStatus reports whether the endpoint is up and where.
func (a *Agent) ManagementStatus() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mgmt == nil {
		return Status{}
	}
	return Status{Running: true, URL: a.mgmt.url}
}

func (a *Agent) router() http.Handler {
	r := chi.NewRouter()
	r.Route(basePath, func(r chi.Router) {
		r.Get("/", a.handleStatus)
		r.Get("/version", a.handleVersion)
	})
	return r
}

func (a *Agent) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	writeJSON(w, http.StatusOK, map[string]any{
		"pid":        a.pid,
		"display":    a.display,
		"uptime":     time.Since(a.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"heap_alloc": mem.HeapAlloc,
		"go_version": runtime.Version(),
	})
}

func (a *Agent) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    version.Version,
		"protocol": protocol.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort write; the client may be gone
	json.NewEncoder(w).Encode(v)
}
