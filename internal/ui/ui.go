package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sokinpui/patchset/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(os.Stderr, "  "+format+"\n", a...)
}

// PrintReport writes the final report: per-status counts and one
// diagnostic line per blocking outcome.
func PrintReport(r *model.Report) {
	Header("\n--- Patch Summary ---")

	if len(r.Outcomes) == 0 {
		Info("No patch files found.")
		return
	}

	counts := r.Counts()
	printCount(SuccessColor, counts[model.StatusApplied], "applied")
	printCount(InfoColor, counts[model.StatusAlreadyApplied], "already applied")
	printCount(InfoColor, counts[model.StatusEmpty], "empty")
	printCount(ErrorColor, counts[model.StatusContextMismatch], "context mismatch")
	printCount(ErrorColor, counts[model.StatusPathUnresolved], "path unresolved")
	printCount(ErrorColor, counts[model.StatusParseError], "parse error")
	printCount(ErrorColor, counts[model.StatusIOError], "io error")

	failures := r.Failures()
	if len(failures) > 0 {
		Error("\nFailed outcomes:")
		for _, o := range failures {
			fmt.Fprintf(os.Stderr, "  %s\n", o.Line())
		}
	}

	if r.BuildMayProceed() {
		Success("\nBuild may proceed.")
	} else {
		Error("\nBuild must not proceed.")
	}
}

func printCount(c *color.Color, n int, label string) {
	if n == 0 {
		return
	}
	c.Fprintf(os.Stderr, "  %d %s\n", n, label)
}
