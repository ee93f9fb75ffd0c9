package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sokinpui/patchset/cli"
	"github.com/sokinpui/patchset/internal/tui"
	"github.com/sokinpui/patchset/internal/ui"
	"github.com/sokinpui/patchset/model"
	"github.com/sokinpui/patchset/patchset"
)

func main() {
	cfg, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	app, err := patchset.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(2)
	}

	var report *model.Report
	if interactive(cfg) {
		report = runTUI(app)
	} else {
		report = runPlain(app)
	}

	// The engine never decides build policy itself; it only reports.
	if !report.BuildMayProceed() {
		os.Exit(1)
	}
}

func runTUI(app *patchset.App) *model.Report {
	m := tui.New(app)
	p := tea.NewProgram(m)
	m.SetProgram(p)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	if m.Err() != nil {
		os.Exit(1)
	}
	if m.Report() == nil {
		// Interrupted before the run finished.
		os.Exit(1)
	}
	return m.Report()
}

func runPlain(app *patchset.App) *model.Report {
	report, err := app.Execute()
	if err != nil {
		if e, ok := err.(*patchset.DetailedError); ok {
			fmt.Fprintf(os.Stderr, "Error: %v\n--- Stack Trace ---\n%s\n", e, e.Stack)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	ui.PrintReport(report)
	return report
}

// interactive enables the TUI only for terminal runs that asked for it;
// CI pipelines and pipes get plain diagnostic output.
func interactive(cfg *cli.Config) bool {
	if cfg.NoAnimation || cfg.Stdin {
		return false
	}
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
