package diff

import "strings"

// DevNull is the sentinel path marking file creation or deletion.
const DevNull = "/dev/null"

// LineKind is the leading marker of a hunk body line.
type LineKind byte

const (
	Context LineKind = ' '
	Add     LineKind = '+'
	Remove  LineKind = '-'
)

// Line is a single hunk body line without its leading marker.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk describes one region of change with its declared positions.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// OldLines returns the text the hunk expects in the original file
// (context and remove lines, in order).
func (h *Hunk) OldLines() []string {
	var lines []string
	for _, l := range h.Lines {
		if l.Kind == Context || l.Kind == Remove {
			lines = append(lines, l.Text)
		}
	}
	return lines
}

// NewLines returns the text the hunk produces (context and add lines,
// in order).
func (h *Hunk) NewLines() []string {
	var lines []string
	for _, l := range h.Lines {
		if l.Kind == Context || l.Kind == Add {
			lines = append(lines, l.Text)
		}
	}
	return lines
}

// FileDiff is the parsed change set for a single target file.
type FileDiff struct {
	OldPath  string
	NewPath  string
	IsNew    bool
	IsDelete bool
	Hunks    []*Hunk

	// OldNoEOF/NewNoEOF record "\ No newline at end of file" markers on
	// the old and new side respectively.
	OldNoEOF bool
	NewNoEOF bool
}

// Path returns the declared target path: the new path, unless the diff
// deletes the file.
func (d *FileDiff) Path() string {
	if d.IsDelete {
		return d.OldPath
	}
	return d.NewPath
}

// StripPrefix removes the conventional "a/" or "b/" diff prefix.
func StripPrefix(path string) string {
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return path[2:]
	}
	return path
}
