package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sokinpui/patchset/internal/diff"
)

// Module maps one module name to the filesystem root it lives under.
type Module struct {
	Name string
	Root string
}

// Target is the concrete file a file-diff resolves to. It is derived
// per file-diff and never persisted.
type Target struct {
	ModuleRoot   string
	RelativePath string
	AbsolutePath string
}

// UnresolvedError explains why a declared path could not be mapped to a
// file under any configured module root.
type UnresolvedError struct {
	Path   string
	Reason string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Path, e.Reason)
}

// Resolver maps declared diff paths onto configured module roots.
type Resolver struct {
	modules []Module
}

// New creates a resolver over the given modules. Configuration order is
// preserved so duplicate names can be detected as ambiguity rather than
// silently shadowed.
func New(modules []Module) (*Resolver, error) {
	abs := make([]Module, 0, len(modules))
	for _, m := range modules {
		if m.Name == "" || m.Root == "" {
			return nil, fmt.Errorf("module mapping needs both name and root, got %q=%q", m.Name, m.Root)
		}
		root, err := filepath.Abs(m.Root)
		if err != nil {
			return nil, fmt.Errorf("invalid root for module %q: %w", m.Name, err)
		}
		abs = append(abs, Module{Name: strings.Trim(m.Name, "/"), Root: root})
	}
	return &Resolver{modules: abs}, nil
}

// Modules returns the configured mapping.
func (r *Resolver) Modules() []Module {
	return r.modules
}

// Resolve maps a declared diff path to a concrete target. When
// mustExist is true the target file itself has to exist on disk;
// creation and deletion diffs pass false and only the module root has
// to exist (a deletion may have already happened on a previous run).
func (r *Resolver) Resolve(declared string, mustExist bool) (*Target, error) {
	path := diff.StripPrefix(declared)
	if path == "" || path == diff.DevNull {
		return nil, &UnresolvedError{Path: declared, Reason: "empty target path"}
	}

	matches := r.match(path)
	if len(matches) == 0 {
		return nil, &UnresolvedError{Path: path, Reason: "no configured module matches"}
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = fmt.Sprintf("%s=%s", m.Name, m.Root)
		}
		return nil, &UnresolvedError{
			Path:   path,
			Reason: "ambiguous module mapping: " + strings.Join(names, ", "),
		}
	}

	m := matches[0]
	rel := strings.TrimPrefix(strings.TrimPrefix(path, m.Name), "/")
	if rel == "" {
		return nil, &UnresolvedError{Path: path, Reason: "path names a module root, not a file"}
	}
	target := &Target{
		ModuleRoot:   m.Root,
		RelativePath: rel,
		AbsolutePath: filepath.Join(m.Root, rel),
	}

	if !mustExist {
		info, err := os.Stat(m.Root)
		if err != nil || !info.IsDir() {
			return nil, &UnresolvedError{Path: path, Reason: fmt.Sprintf("module root %s does not exist", m.Root)}
		}
		return target, nil
	}
	if _, err := os.Stat(target.AbsolutePath); err != nil {
		return nil, &UnresolvedError{Path: path, Reason: fmt.Sprintf("no such file under module %q", m.Name)}
	}
	return target, nil
}

// match returns every module whose name is a segment prefix of path,
// keeping only the longest prefix length. More than one survivor means
// the configuration is ambiguous.
func (r *Resolver) match(path string) []Module {
	var best []Module
	bestLen := -1
	for _, m := range r.modules {
		if path != m.Name && !strings.HasPrefix(path, m.Name+"/") {
			continue
		}
		switch {
		case len(m.Name) > bestLen:
			bestLen = len(m.Name)
			best = []Module{m}
		case len(m.Name) == bestLen:
			best = append(best, m)
		}
	}
	// Identical duplicate entries are harmless, not ambiguous.
	if len(best) > 1 {
		uniq := best[:1]
		for _, m := range best[1:] {
			if m.Root != uniq[0].Root {
				uniq = append(uniq, m)
			}
		}
		best = uniq
	}
	return best
}
