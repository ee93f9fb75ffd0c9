package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/patchset/model"
	"github.com/sokinpui/patchset/patchset"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type progressMsg struct {
	done  int
	total int
}

type reportMsg struct {
	report *model.Report
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

type state int

const (
	stateApplying state = iota
	stateSummary
	stateError
)

// Model drives the interactive run: a spinner with per-patch progress
// while applying, then the final report.
type Model struct {
	app     *patchset.App
	program *tea.Program
	spinner spinner.Model
	state   state
	done    int
	total   int
	report  *model.Report
	err     error
}

func New(app *patchset.App) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		app:     app,
		spinner: s,
		state:   stateApplying,
	}
}

// SetProgram wires the running program in so the engine's progress
// callback can send messages from its own goroutine.
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
	m.app.SetProgressCallback(func(done, total int) {
		p.Send(progressMsg{done: done, total: total})
	})
}

// Report returns the final report once the program has finished.
func (m *Model) Report() *model.Report { return m.report }

// Err returns the run error, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case progressMsg:
		m.done = msg.done
		m.total = msg.total
		return m, nil

	case reportMsg:
		m.state = stateSummary
		m.report = msg.report
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateApplying {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	switch m.state {
	case stateApplying:
		if m.total > 0 {
			return fmt.Sprintf("%s Applying patches... [%d/%d]", m.spinner.View(), m.done, m.total)
		}
		return fmt.Sprintf("%s Applying patches...", m.spinner.View())
	case stateError:
		return errorStyle.Render("Error: ", m.err.Error())
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Patch Summary"))
	b.WriteString("\n\n")

	if len(m.report.Outcomes) == 0 {
		b.WriteString(faintStyle.Render("No patch files found."))
		b.WriteString("\n")
		return b.String()
	}

	counts := m.report.Counts()
	writeCount(&b, successStyle, counts[model.StatusApplied], "applied")
	writeCount(&b, infoStyle, counts[model.StatusAlreadyApplied], "already applied")
	writeCount(&b, infoStyle, counts[model.StatusEmpty], "empty")
	writeCount(&b, errorStyle, counts[model.StatusContextMismatch], "context mismatch")
	writeCount(&b, errorStyle, counts[model.StatusPathUnresolved], "path unresolved")
	writeCount(&b, errorStyle, counts[model.StatusParseError], "parse error")
	writeCount(&b, errorStyle, counts[model.StatusIOError], "io error")

	failures := m.report.Failures()
	if len(failures) > 0 {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Failed outcomes:"))
		b.WriteString("\n")
		for _, o := range failures {
			b.WriteString(fmt.Sprintf("  %s\n", o.Line()))
		}
	}

	b.WriteString("\n")
	if m.report.BuildMayProceed() {
		b.WriteString(successStyle.Render("Build may proceed."))
	} else {
		b.WriteString(errorStyle.Render("Build must not proceed."))
	}
	b.WriteString("\n")
	return b.String()
}

func writeCount(b *strings.Builder, style lipgloss.Style, n int, label string) {
	if n == 0 {
		return
	}
	b.WriteString(style.Render(fmt.Sprintf("  %d %s", n, label)))
	b.WriteString("\n")
}

func (m *Model) runApp() tea.Msg {
	report, err := m.app.Execute()
	if err != nil {
		if e, ok := err.(*patchset.DetailedError); ok {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", e.Stack)
		}
		return errorMsg{err}
	}
	return reportMsg{report: report}
}
