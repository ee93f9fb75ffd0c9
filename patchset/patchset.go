package patchset

import (
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/sokinpui/patchset/cli"
	"github.com/sokinpui/patchset/internal/config"
	"github.com/sokinpui/patchset/internal/resolve"
	"github.com/sokinpui/patchset/internal/run"
	"github.com/sokinpui/patchset/internal/source"
	"github.com/sokinpui/patchset/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(done, total int)

// Options control one engine run when using patchset as a library.
type Options struct {
	AllowEmpty    bool
	WhitespaceFix bool
	Strict        bool
	DryRun        bool
	FuzzWindow    int
	Jobs          int
}

// App orchestrates the entire application logic.
type App struct {
	cfg      *cli.Config
	resolver *resolve.Resolver
	opts     run.Options
	progress ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

// New creates a new App instance from parsed flags, merging the YAML
// config file (when given) with the -m flags. Flags override the file.
func New(cfg *cli.Config) (*App, error) {
	var modules []resolve.Module
	opts := run.Options{
		AllowEmpty:    cfg.AllowEmpty,
		WhitespaceFix: cfg.WhitespaceFix,
		Strict:        cfg.Strict,
		DryRun:        cfg.DryRun,
		FuzzWindow:    cfg.Fuzz,
		Jobs:          cfg.Jobs,
	}

	if cfg.ConfigPath != "" {
		f, err := config.Load(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		modules = f.ResolverModules()
		opts.AllowEmpty = opts.AllowEmpty || f.Options.AllowEmpty
		opts.WhitespaceFix = opts.WhitespaceFix || f.Options.WhitespaceFix
		opts.Strict = opts.Strict || f.Options.Strict
		if opts.FuzzWindow == 0 {
			opts.FuzzWindow = f.Options.Fuzz
		}
		if opts.Jobs == 0 {
			opts.Jobs = f.Options.Jobs
		}
	}

	for _, m := range cfg.Modules {
		name, root, ok := strings.Cut(m, "=")
		if !ok {
			return nil, fmt.Errorf("invalid module mapping %q, expected name=root", m)
		}
		modules = append(modules, resolve.Module{Name: name, Root: root})
	}

	resolver, err := resolve.New(modules)
	if err != nil {
		return nil, fmt.Errorf("failed to build module resolver: %w", err)
	}
	return &App{cfg: cfg, resolver: resolver, opts: opts}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progress = cb
}

// Execute runs the engine according to the parsed flags.
func (a *App) Execute() (report *model.Report, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	if a.cfg.Stdin {
		return a.applyAdhoc()
	}
	return a.applyDir(a.cfg.Dir)
}

func (a *App) runner() *run.Runner {
	runner := run.New(a.resolver, a.opts)
	if a.progress != nil {
		runner.Progress = a.progress
	}
	return runner
}

func (a *App) applyDir(dir string) (*model.Report, error) {
	return a.runner().Dir(dir)
}

// applyAdhoc applies a single patch read from stdin or the clipboard.
func (a *App) applyAdhoc() (*model.Report, error) {
	content, err := source.New().GetContent()
	if err != nil {
		return nil, err
	}

	report := &model.Report{}
	runner := run.New(a.resolver, a.opts)
	runner.Patch("<stdin>", source.DiffText(content), report)
	if a.progress != nil {
		a.progress(1, 1)
	}
	return report, nil
}

// ApplyAll applies every patch file under dir against the given module
// mapping and returns the aggregated report. It is the one-shot library
// entry point for build pipelines.
func ApplyAll(dir string, modules map[string]string, opts Options) (*model.Report, error) {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]resolve.Module, 0, len(names))
	for _, name := range names {
		list = append(list, resolve.Module{Name: name, Root: modules[name]})
	}
	resolver, err := resolve.New(list)
	if err != nil {
		return nil, fmt.Errorf("failed to build module resolver: %w", err)
	}

	runner := run.New(resolver, run.Options{
		AllowEmpty:    opts.AllowEmpty,
		WhitespaceFix: opts.WhitespaceFix,
		Strict:        opts.Strict,
		DryRun:        opts.DryRun,
		FuzzWindow:    opts.FuzzWindow,
		Jobs:          opts.Jobs,
	})
	return runner.Dir(dir)
}
