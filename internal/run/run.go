package run

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sokinpui/patchset/internal/apply"
	"github.com/sokinpui/patchset/internal/diff"
	"github.com/sokinpui/patchset/internal/resolve"
	"github.com/sokinpui/patchset/internal/source"
	"github.com/sokinpui/patchset/model"
)

// Options control one run of the orchestrator.
type Options struct {
	// AllowEmpty treats patches with zero file diffs as a non-fatal
	// "empty" outcome instead of a parse error.
	AllowEmpty bool
	// WhitespaceFix enables trailing-whitespace-tolerant matching.
	WhitespaceFix bool
	// Strict stops after the first patch file with a blocking outcome.
	// Remaining patch files are still parsed for diagnostics, but never
	// applied. Files already patched stay patched; there is no rollback.
	Strict bool
	// DryRun validates and reports without writing anything.
	DryRun bool
	// FuzzWindow overrides the default hunk search window when positive.
	FuzzWindow int
	// Jobs bounds how many disjoint targets are patched concurrently
	// within one patch file.
	Jobs int
}

// DefaultJobs bounds concurrency when Options.Jobs is unset.
const DefaultJobs = 4

// Runner drives parse -> resolve -> apply over a set of patch files.
type Runner struct {
	resolver *resolve.Resolver
	opts     Options
	locks    *apply.PathLocks

	// Progress, when set, is called after each patch file completes.
	Progress func(done, total int)
}

// New creates a runner over the given module mapping.
func New(resolver *resolve.Resolver, opts Options) *Runner {
	if opts.Jobs <= 0 {
		opts.Jobs = DefaultJobs
	}
	return &Runner{resolver: resolver, opts: opts, locks: apply.NewPathLocks()}
}

// Dir applies every patch file under dir. Files are ordered by byte-wise
// lexicographic filename comparison, never by directory enumeration
// order, and processed strictly sequentially: later patches may depend
// on edits made by earlier ones.
func (r *Runner) Dir(dir string) (*model.Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read patch directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".patch", ".diff", ".md":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	report := &model.Report{}
	stopped := false
	for i, name := range names {
		text, ok := r.readPatch(dir, name, report)
		if ok {
			if stopped {
				// Strict mode already aborted: keep surfacing parse
				// errors from the remaining patch files, apply nothing.
				if _, err := diff.Parse([]byte(text)); err != nil {
					report.Add(model.Outcome{PatchFile: name, Status: model.StatusParseError, Detail: err.Error()})
				}
			} else {
				r.Patch(name, text, report)
			}
		}
		if r.Progress != nil {
			r.Progress(i+1, len(names))
		}
		if r.opts.Strict && !report.BuildMayProceed() {
			stopped = true
		}
	}
	return report, nil
}

// readPatch loads one patch file's diff text, reporting IO and markdown
// extraction failures as outcomes.
func (r *Runner) readPatch(dir, name string, report *model.Report) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		report.Add(model.Outcome{PatchFile: name, Status: model.StatusIOError, Detail: err.Error()})
		return "", false
	}
	text, err := source.PatchText(name, raw)
	if err != nil {
		report.Add(model.Outcome{PatchFile: name, Status: model.StatusParseError, Detail: err.Error()})
		return "", false
	}
	return text, true
}

// Patch applies the diff text of a single patch file, appending one
// outcome per file diff (or one for the whole patch on parse failure).
func (r *Runner) Patch(name, text string, report *model.Report) {
	diffs, err := diff.Parse([]byte(text))
	if err != nil {
		report.Add(model.Outcome{PatchFile: name, Status: model.StatusParseError, Detail: err.Error()})
		return
	}
	if len(diffs) == 0 {
		status := model.StatusParseError
		if r.opts.AllowEmpty {
			status = model.StatusEmpty
		}
		report.Add(model.Outcome{PatchFile: name, Status: status, Detail: "patch contains no file diffs"})
		return
	}

	type job struct {
		idx    int
		fd     *diff.FileDiff
		target *resolve.Target
	}

	// Resolve up front so unresolved paths report without touching any
	// worker, then group by target: diffs sharing a file keep their
	// declaration order, disjoint targets may run concurrently.
	outcomes := make([]*model.Outcome, len(diffs))
	groups := make(map[string][]job)
	var order []string
	for i, fd := range diffs {
		mustExist := !fd.IsNew && !fd.IsDelete
		target, err := r.resolver.Resolve(fd.Path(), mustExist)
		if err != nil {
			outcomes[i] = &model.Outcome{
				PatchFile: name,
				FilePath:  diff.StripPrefix(fd.Path()),
				Status:    model.StatusPathUnresolved,
				Detail:    err.Error(),
			}
			continue
		}
		if _, seen := groups[target.AbsolutePath]; !seen {
			order = append(order, target.AbsolutePath)
		}
		groups[target.AbsolutePath] = append(groups[target.AbsolutePath], job{idx: i, fd: fd, target: target})
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Jobs)
	for _, path := range order {
		jobs := groups[path]
		g.Go(func() error {
			for _, j := range jobs {
				o := r.applyOne(name, j.fd, j.target)
				outcomes[j.idx] = &o
			}
			return nil
		})
	}
	_ = g.Wait() // workers report through outcomes, never errors

	for _, o := range outcomes {
		if o != nil {
			report.Add(*o)
		}
	}
}

// applyOne applies a single file diff to its resolved target. All hunks
// are validated in memory before any bytes reach the disk.
func (r *Runner) applyOne(patch string, fd *diff.FileDiff, target *resolve.Target) model.Outcome {
	unlock := r.locks.Lock(target.AbsolutePath)
	defer unlock()

	o := model.Outcome{PatchFile: patch, FilePath: target.AbsolutePath}

	switch {
	case fd.IsDelete:
		return r.deleteFile(o, fd, target)
	case fd.IsNew:
		return r.createFile(o, fd, target)
	}

	content, err := os.ReadFile(target.AbsolutePath)
	if err != nil {
		o.Status = model.StatusIOError
		o.Detail = err.Error()
		return o
	}
	patched, res, err := apply.Patch(content, fd, apply.Options{
		FuzzWindow:    r.opts.FuzzWindow,
		WhitespaceFix: r.opts.WhitespaceFix,
	})
	if err != nil {
		o.Status = model.StatusContextMismatch
		o.Detail = err.Error()
		return o
	}
	if res.AllPreapplied() {
		o.Status = model.StatusAlreadyApplied
		return o
	}
	if !r.opts.DryRun {
		if err := apply.WriteAtomic(target.AbsolutePath, patched, 0o644); err != nil {
			o.Status = model.StatusIOError
			o.Detail = err.Error()
			return o
		}
	}
	o.Status = model.StatusApplied
	if res.Preapplied > 0 {
		o.Detail = fmt.Sprintf("%d of %d hunks were already applied", res.Preapplied, res.Applied+res.Preapplied)
	}
	return o
}

func (r *Runner) createFile(o model.Outcome, fd *diff.FileDiff, target *resolve.Target) model.Outcome {
	want := apply.NewFileContent(fd)
	if existing, err := os.ReadFile(target.AbsolutePath); err == nil {
		if bytes.Equal(existing, want) {
			o.Status = model.StatusAlreadyApplied
			return o
		}
		o.Status = model.StatusContextMismatch
		o.Detail = "file to create already exists with different content"
		return o
	}
	if !r.opts.DryRun {
		if err := apply.WriteAtomic(target.AbsolutePath, want, 0o644); err != nil {
			o.Status = model.StatusIOError
			o.Detail = err.Error()
			return o
		}
	}
	o.Status = model.StatusApplied
	return o
}

func (r *Runner) deleteFile(o model.Outcome, fd *diff.FileDiff, target *resolve.Target) model.Outcome {
	content, err := os.ReadFile(target.AbsolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			o.Status = model.StatusAlreadyApplied
			return o
		}
		o.Status = model.StatusIOError
		o.Detail = err.Error()
		return o
	}
	if !apply.MatchesOldContent(content, fd, apply.Options{WhitespaceFix: r.opts.WhitespaceFix}) {
		o.Status = model.StatusContextMismatch
		o.Detail = "file to delete does not match the patch content"
		return o
	}
	if !r.opts.DryRun {
		if err := os.Remove(target.AbsolutePath); err != nil {
			o.Status = model.StatusIOError
			o.Detail = err.Error()
			return o
		}
	}
	o.Status = model.StatusApplied
	return o
}
