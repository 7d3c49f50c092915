package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"agentctl/internal/app"
	"agentctl/internal/attach"
	"agentctl/internal/command"
)

type stubController struct {
	procs   []app.Process
	listErr error

	execs   []app.ExecParams
	result  app.ExecResult
	execErr error
}

func (s *stubController) List(context.Context) ([]app.Process, error) {
	return s.procs, s.listErr
}

func (s *stubController) Exec(_ context.Context, p app.ExecParams) (app.ExecResult, error) {
	s.execs = append(s.execs, p)
	return s.result, s.execErr
}

func loaded(t *testing.T, ctrl *stubController) *Model {
	t.Helper()
	m := New(ctrl)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	msg := m.Init()()
	m.Update(msg)
	return m
}

func key(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelLoadsProcesses(t *testing.T) {
	ctrl := &stubController{procs: []app.Process{{ID: "101", Display: "MyApp"}, {ID: "202"}}}
	m := loaded(t, ctrl)

	if len(m.list.Items()) != 2 {
		t.Fatalf("expected 2 items, got %d", len(m.list.Items()))
	}
	view := m.View()
	if !strings.Contains(view, "101 (MyApp)") || !strings.Contains(view, "2 process(es)") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestModelEmptyList(t *testing.T) {
	m := loaded(t, &stubController{})
	if !strings.Contains(m.View(), "No attachable processes found") {
		t.Fatalf("expected empty hint, got:\n%s", m.View())
	}
}

func TestModelKeysRunCommandsAgainstCurrentProcess(t *testing.T) {
	ctrl := &stubController{
		procs:  []app.Process{{ID: "101", Display: "MyApp"}},
		result: app.ExecResult{Command: command.Start, Target: "101", Output: map[string]any{"running": true, "changed": true, "url": "http://127.0.0.1:8778/agentctl/"}},
	}
	m := loaded(t, ctrl)

	for _, tc := range []struct {
		key  string
		want string
	}{
		{"s", command.Start},
		{"x", command.Stop},
		{"t", command.Toggle},
		{"enter", command.Status},
	} {
		_, cmd := m.Update(key(tc.key))
		if cmd == nil {
			t.Fatalf("key %q produced no command", tc.key)
		}
		m.Update(cmd())
		last := ctrl.execs[len(ctrl.execs)-1]
		if last.Command != tc.want || last.Selector != "101" {
			t.Fatalf("key %q ran %+v", tc.key, last)
		}
	}

	if !m.agents["101"].Running {
		t.Fatal("expected agent state to be recorded")
	}
	if !strings.Contains(m.View(), "running at http://127.0.0.1:8778/agentctl/") {
		t.Fatalf("unexpected view:\n%s", m.View())
	}
}

func TestModelTransientErrorIsAWarning(t *testing.T) {
	ctrl := &stubController{
		procs:   []app.Process{{ID: "101"}},
		execErr: &attach.TransientError{Target: "101", Cause: attach.NewCause(attach.KindAttachNotSupported, nil, "Unable to open socket file x")},
	}
	m := loaded(t, ctrl)

	_, cmd := m.Update(key("s"))
	m.Update(cmd())
	if m.err != nil || !m.warn {
		t.Fatalf("expected warning, got err=%v warn=%t", m.err, m.warn)
	}
	if !strings.Contains(m.statusMsg, "try again") {
		t.Fatalf("unexpected status %q", m.statusMsg)
	}
}

func TestModelHardErrorIsShown(t *testing.T) {
	ctrl := &stubController{procs: []app.Process{{ID: "101"}}, execErr: errors.New("permission denied")}
	m := loaded(t, ctrl)

	_, cmd := m.Update(key("x"))
	m.Update(cmd())
	if !strings.Contains(m.View(), "Error: permission denied") {
		t.Fatalf("expected error in view:\n%s", m.View())
	}
}

func TestModelNoCommandWithoutProcesses(t *testing.T) {
	m := loaded(t, &stubController{})
	if _, cmd := m.Update(key("s")); cmd != nil {
		if _, isExec := cmd().(execDoneMsg); isExec {
			t.Fatal("expected no exec without a process")
		}
	}
}
