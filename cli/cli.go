package cli

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	Dir           string
	Modules       []string
	ConfigPath    string
	AllowEmpty    bool
	WhitespaceFix bool
	Strict        bool
	DryRun        bool
	Stdin         bool
	Fuzz          int
	Jobs          int
	NoAnimation   bool
}

// ParseFlags defines and parses command-line flags using pflag.
func ParseFlags() (*Config, error) {
	cfg := &Config{}

	pflag.StringVarP(&cfg.Dir, "dir", "d", "", "Directory containing the patch files to apply.")
	pflag.StringSliceVarP(&cfg.Modules, "module", "m", []string{}, "Module mapping as name=root. Repeatable.")
	pflag.StringVarP(&cfg.ConfigPath, "config", "C", "", "YAML config file with module mappings and option defaults.")
	pflag.BoolVar(&cfg.AllowEmpty, "allow-empty", false, "Treat patches with zero file diffs as success instead of a parse error.")
	pflag.BoolVarP(&cfg.WhitespaceFix, "whitespace-fix", "w", false, "Tolerate trailing-whitespace differences when matching hunks.")
	pflag.BoolVar(&cfg.Strict, "strict", false, "Stop at the first failed patch file instead of continuing.")
	pflag.BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Validate and report without writing any files.")
	pflag.BoolVar(&cfg.Stdin, "stdin", false, "Apply a single patch read from stdin (pipe) or the clipboard.")
	pflag.IntVar(&cfg.Fuzz, "fuzz", 0, "Hunk search window in lines (default 20).")
	pflag.IntVarP(&cfg.Jobs, "jobs", "j", 0, "Concurrent workers per patch file (default 4).")
	pflag.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable the interactive progress display.")

	pflag.Usage = func() {
		fmt.Println("Usage: patchset -d <patch-dir> -m <name=root> [flags]")
		fmt.Println("\nApply a directory of unified-diff patches onto a multi-module source tree.")
		fmt.Println("\nExample: patchset -d patches -m Loop=./Loop -m LoopKit=./LoopKit")
		fmt.Println("\nFlags:")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if cfg.Dir == "" && !cfg.Stdin {
		return nil, fmt.Errorf("error: a patch directory (-d) or --stdin is required")
	}

	return cfg, nil
}
