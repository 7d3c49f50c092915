package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentctl/internal/app"
	"agentctl/internal/attach"
	"agentctl/internal/command"
)

const opTimeout = 30 * time.Second

// Controller defines the subset of app.App behaviour the TUI needs.
type Controller interface {
	List(context.Context) ([]app.Process, error)
	Exec(context.Context, app.ExecParams) (app.ExecResult, error)
}

// Model represents the Bubble Tea state.
type Model struct {
	controller Controller

	list      list.Model
	processes []app.Process
	// agents remembers the last known agent state per process id.
	agents map[string]agentState

	statusMsg string
	warn      bool

	err     error
	loading bool
	busy    bool

	width  int
	height int

	lastUpdated time.Time
}

type agentState struct {
	Running bool
	URL     string
}

// New constructs a TUI model with default styles.
func New(ctrl Controller) *Model {
	delegate := list.NewDefaultDelegate()
	lst := list.New([]list.Item{}, delegate, 0, 0)
	lst.Title = "Attachable processes"
	lst.SetShowHelp(false)
	lst.SetFilteringEnabled(false)
	lst.DisableQuitKeybindings()

	return &Model{
		controller: ctrl,
		list:       lst,
		agents:     make(map[string]agentState),
		statusMsg:  "Looking for processes…",
		loading:    true,
	}
}

// Run spins up the Bubble Tea program with sensible defaults.
func Run(ctrl Controller) error {
	m := New(ctrl)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return loadProcessesCmd(m.controller)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.height > 6 {
			m.list.SetSize(msg.Width, msg.Height-6)
		}

	case processesLoadedMsg:
		m.loading = false
		m.err = nil
		m.processes = msg.processes
		items := make([]list.Item, 0, len(msg.processes))
		known := make(map[string]agentState)
		for _, proc := range msg.processes {
			st, ok := m.agents[proc.ID]
			if ok {
				known[proc.ID] = st
			}
			items = append(items, processItem{Process: proc, Agent: st, Known: ok})
		}
		m.agents = known
		m.list.SetItems(items)
		m.lastUpdated = time.Now()
		m.statusMsg = fmt.Sprintf("%d process(es). Press r to refresh, q to quit.", len(msg.processes))
		m.warn = false

	case execDoneMsg:
		m.busy = false
		m.err = nil
		st := agentState{}
		st.Running, _ = msg.result.Output["running"].(bool)
		st.URL, _ = msg.result.Output["url"].(string)
		m.agents[msg.result.Target] = st
		m.refreshItem(msg.result.Target)
		m.statusMsg = describeResult(msg.result)
		m.warn = false

	case errMsg:
		m.loading = false
		m.busy = false
		if errors.Is(msg.err, attach.ErrTransient) {
			m.err = nil
			m.warn = true
			m.statusMsg = fmt.Sprintf("Target not ready, try again: %v", msg.err)
			break
		}
		m.err = msg.err

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, loadProcessesCmd(m.controller)
		case "s":
			return m, m.execOnCurrent(command.Start)
		case "x":
			return m, m.execOnCurrent(command.Stop)
		case "t":
			return m, m.execOnCurrent(command.Toggle)
		case "enter":
			return m, m.execOnCurrent(command.Status)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// execOnCurrent runs name against the highlighted process. The process id is
// used as the selector so the choice cannot be ambiguous.
func (m *Model) execOnCurrent(name string) tea.Cmd {
	current := m.currentProcess()
	if current == nil || m.busy {
		return nil
	}
	m.busy = true
	m.statusMsg = fmt.Sprintf("Attaching to %s…", current.Label())
	m.warn = false
	return execCmd(m.controller, app.ExecParams{Selector: current.ID, Command: name})
}

func (m *Model) refreshItem(id string) {
	for i, it := range m.list.Items() {
		pi, ok := it.(processItem)
		if !ok || pi.Process.ID != id {
			continue
		}
		pi.Agent = m.agents[id]
		pi.Known = true
		m.list.SetItem(i, pi)
		return
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	if m.warn {
		statusStyle = statusStyle.Foreground(lipgloss.Color("214"))
	}
	b.WriteString(statusStyle.Render(m.statusMsg))
	b.WriteByte('\n')

	if m.loading {
		b.WriteString("Loading processes…\n")
	} else if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteByte('\n')
	}

	if len(m.list.Items()) == 0 && !m.loading {
		b.WriteString("No attachable processes found. Start one with the agent installed.\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteByte('\n')
	}

	if current := m.currentProcess(); current != nil {
		st, known := m.agents[current.ID]
		state := "unknown (press enter)"
		if known {
			state = "stopped"
			if st.Running {
				state = "running at " + st.URL
			}
		}
		detail := fmt.Sprintf("id=%s\ndisplay=%s\nagent=%s", current.ID, valueOrDash(current.Display), state)
		detailStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MarginBottom(1)
		b.WriteString(detailStyle.Render(detail))
		b.WriteByte('\n')
	}

	help := "Commands: q quit • r reload • s start • x stop • t toggle • enter status"
	if !m.lastUpdated.IsZero() {
		help += fmt.Sprintf(" • last update %s", m.lastUpdated.Format(time.Kitchen))
	}
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

// processItem adapts app.Process to the bubbles list item interface.
type processItem struct {
	Process app.Process
	Agent   agentState
	Known   bool
}

func (p processItem) Title() string {
	mark := "?"
	if p.Known {
		mark = "-"
		if p.Agent.Running {
			mark = "●"
		}
	}
	return fmt.Sprintf("[%s] %s", mark, p.Process.Label())
}

func (p processItem) Description() string {
	if p.Known && p.Agent.Running {
		return "agent " + p.Agent.URL
	}
	return "pid " + p.Process.ID
}

func (p processItem) FilterValue() string {
	return p.Process.ID + " " + p.Process.Display
}

func (m *Model) currentProcess() *app.Process {
	if len(m.processes) == 0 {
		return nil
	}
	idx := m.list.Index()
	if idx < 0 || idx >= len(m.processes) {
		return nil
	}
	return &m.processes[idx]
}

func describeResult(res app.ExecResult) string {
	running, _ := res.Output["running"].(bool)
	changed, _ := res.Output["changed"].(bool)
	url, _ := res.Output["url"].(string)
	switch {
	case running && changed:
		return fmt.Sprintf("%s: agent started at %s", res.Target, url)
	case running:
		return fmt.Sprintf("%s: agent running at %s", res.Target, url)
	case changed:
		return fmt.Sprintf("%s: agent stopped", res.Target)
	default:
		return fmt.Sprintf("%s: agent not running", res.Target)
	}
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

type processesLoadedMsg struct {
	processes []app.Process
}

type execDoneMsg struct {
	result app.ExecResult
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func loadProcessesCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		procs, err := ctrl.List(ctx)
		if err != nil {
			return errMsg{err}
		}
		return processesLoadedMsg{processes: procs}
	}
}

func execCmd(ctrl Controller, params app.ExecParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		res, err := ctrl.Exec(ctx, params)
		if err != nil {
			return errMsg{err}
		}
		return execDoneMsg{result: res}
	}
}
