package model

import "fmt"

// Status classifies the outcome of one file-diff attempt.
type Status string

const (
	StatusApplied         Status = "applied"
	StatusAlreadyApplied  Status = "already-applied"
	StatusEmpty           Status = "empty"
	StatusContextMismatch Status = "context-mismatch"
	StatusPathUnresolved  Status = "path-unresolved"
	StatusParseError      Status = "parse-error"
	StatusIOError         Status = "io-error"
)

// Blocking reports whether this status must fail the build.
func (s Status) Blocking() bool {
	switch s {
	case StatusContextMismatch, StatusPathUnresolved, StatusParseError, StatusIOError:
		return true
	}
	return false
}

// Outcome records the result of one file-diff from one patch file. Parse
// errors and empty patches produce a single outcome for the whole patch
// file, with an empty FilePath.
type Outcome struct {
	PatchFile string
	FilePath  string
	Status    Status
	Detail    string
}

// Line formats the outcome as a single diagnostic line.
func (o Outcome) Line() string {
	path := o.FilePath
	if path == "" {
		path = "-"
	}
	if o.Detail == "" {
		return fmt.Sprintf("%s: %s -> %s", o.Status, o.PatchFile, path)
	}
	return fmt.Sprintf("%s: %s -> %s: %s", o.Status, o.PatchFile, path, o.Detail)
}

// Report aggregates the outcomes of one run.
type Report struct {
	Outcomes []Outcome
}

// Add appends an outcome to the report.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Counts returns the number of outcomes per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Failures returns every outcome with a blocking status, in report order.
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status.Blocking() {
			failed = append(failed, o)
		}
	}
	return failed
}

// BuildMayProceed is true only if no blocking outcome exists.
func (r *Report) BuildMayProceed() bool {
	for _, o := range r.Outcomes {
		if o.Status.Blocking() {
			return false
		}
	}
	return true
}
