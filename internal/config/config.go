package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/patchset/internal/resolve"
)

// File is the on-disk YAML configuration. Flags override anything set
// here.
type File struct {
	// Modules maps module names to their filesystem roots. A list, not
	// a map, so configuration order is preserved and duplicates can be
	// reported as ambiguity instead of silently shadowed.
	Modules []ModuleEntry `yaml:"modules"`

	Options Options `yaml:"options"`
}

// ModuleEntry is one module-name to root mapping.
type ModuleEntry struct {
	Name string `yaml:"name"`
	Root string `yaml:"root"`
}

// Options are the default engine options.
type Options struct {
	AllowEmpty    bool `yaml:"allow_empty"`
	WhitespaceFix bool `yaml:"whitespace_fix"`
	Strict        bool `yaml:"strict"`
	Fuzz          int  `yaml:"fuzz"`
	Jobs          int  `yaml:"jobs"`
}

// Load reads and decodes a YAML configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &f, nil
}

// ResolverModules converts the config entries to resolver modules.
func (f *File) ResolverModules() []resolve.Module {
	modules := make([]resolve.Module, 0, len(f.Modules))
	for _, m := range f.Modules {
		modules = append(modules, resolve.Module{Name: m.Name, Root: m.Root})
	}
	return modules
}
