package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseError reports a malformed construct and the 1-based line number
// in the patch text where it was found.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse turns raw patch text into an ordered sequence of file diffs.
// It is a pure function: no filesystem access, deterministic on
// identical input. A patch with zero file diffs returns an empty slice;
// the caller decides whether that is an error.
func Parse(raw []byte) ([]*FileDiff, error) {
	lines := strings.Split(string(raw), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		// The artifact of a trailing newline, not an empty context line.
		lines = lines[:n-1]
	}
	var diffs []*FileDiff

	i := 0
	for i < len(lines) {
		if !strings.HasPrefix(lines[i], "--- ") {
			// Noise between file diffs: "diff --git", "index", mail
			// headers and the like are skipped, not rejected.
			i++
			continue
		}

		d := &FileDiff{OldPath: headerPath(lines[i])}
		i++
		if i >= len(lines) || !strings.HasPrefix(lines[i], "+++ ") {
			return nil, &ParseError{Line: i + 1, Msg: "expected '+++' header after '---'"}
		}
		d.NewPath = headerPath(lines[i])
		d.IsNew = d.OldPath == DevNull
		d.IsDelete = d.NewPath == DevNull
		if d.IsNew && d.IsDelete {
			return nil, &ParseError{Line: i + 1, Msg: "both sides of file header are /dev/null"}
		}
		i++

		for i < len(lines) && strings.HasPrefix(lines[i], "@@") {
			h, next, err := parseHunk(lines, i, d)
			if err != nil {
				return nil, err
			}
			d.Hunks = append(d.Hunks, h)
			i = next
		}
		if len(d.Hunks) == 0 {
			return nil, &ParseError{Line: i + 1, Msg: fmt.Sprintf("file header for %q has no hunks", d.Path())}
		}
		diffs = append(diffs, d)
	}

	return diffs, nil
}

// parseHunk consumes one hunk starting at lines[i] and returns it with
// the index of the first line after it. Body lines are consumed until
// the header's declared counts are satisfied exactly.
func parseHunk(lines []string, i int, d *FileDiff) (*Hunk, int, error) {
	m := hunkHeaderRegex.FindStringSubmatch(lines[i])
	if m == nil {
		return nil, 0, &ParseError{Line: i + 1, Msg: "malformed hunk header"}
	}
	h := &Hunk{
		OldStart: atoi(m[1]),
		OldCount: atoiDefault(m[2], 1),
		NewStart: atoi(m[3]),
		NewCount: atoiDefault(m[4], 1),
	}

	oldLeft, newLeft := h.OldCount, h.NewCount
	prev := Context
	for oldLeft > 0 || newLeft > 0 {
		i++
		if i >= len(lines) {
			return nil, 0, &ParseError{Line: i, Msg: "patch ends inside a hunk"}
		}
		l := lines[i]
		if l == "" {
			// Some producers drop the marker on empty context lines.
			l = " "
		}
		switch LineKind(l[0]) {
		case Context:
			if oldLeft == 0 || newLeft == 0 {
				return nil, 0, &ParseError{Line: i + 1, Msg: "hunk has more lines than its header declares"}
			}
			h.Lines = append(h.Lines, Line{Kind: Context, Text: l[1:]})
			oldLeft--
			newLeft--
			prev = Context
		case Add:
			if newLeft == 0 {
				return nil, 0, &ParseError{Line: i + 1, Msg: "hunk has more added lines than its header declares"}
			}
			h.Lines = append(h.Lines, Line{Kind: Add, Text: l[1:]})
			newLeft--
			prev = Add
		case Remove:
			if oldLeft == 0 {
				return nil, 0, &ParseError{Line: i + 1, Msg: "hunk has more removed lines than its header declares"}
			}
			h.Lines = append(h.Lines, Line{Kind: Remove, Text: l[1:]})
			oldLeft--
			prev = Remove
		case '\\':
			d.markNoEOF(prev)
		default:
			return nil, 0, &ParseError{Line: i + 1, Msg: fmt.Sprintf("unexpected line in hunk: %q", l)}
		}
	}

	i++
	// A trailing "\ No newline at end of file" after the counted lines.
	if i < len(lines) && strings.HasPrefix(lines[i], "\\") {
		d.markNoEOF(prev)
		i++
	}
	// A body-like line here means the hunk carries more lines than its
	// header declared.
	if i < len(lines) {
		switch l := lines[i]; {
		case l == "", strings.HasPrefix(l, "--- "), strings.HasPrefix(l, "+++ "), strings.HasPrefix(l, "@@"):
		case l[0] == '+' || l[0] == '-' || l[0] == ' ':
			return nil, 0, &ParseError{Line: i + 1, Msg: "hunk has more lines than its header declares"}
		}
	}
	return h, i, nil
}

func (d *FileDiff) markNoEOF(prev LineKind) {
	switch prev {
	case Remove:
		d.OldNoEOF = true
	case Add:
		d.NewNoEOF = true
	default:
		d.OldNoEOF = true
		d.NewNoEOF = true
	}
}

// headerPath extracts the path from a "--- " or "+++ " header line,
// dropping a trailing tab-separated timestamp if present.
func headerPath(line string) string {
	path := line[4:]
	if idx := strings.IndexByte(path, '\t'); idx >= 0 {
		path = path[:idx]
	}
	return strings.TrimSpace(path)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	return atoi(s)
}
