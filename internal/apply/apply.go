package apply

import (
	"fmt"
	"strings"

	"github.com/sokinpui/patchset/internal/diff"
)

// DefaultFuzzWindow is how many lines in either direction a hunk may
// drift from its declared start and still be located.
const DefaultFuzzWindow = 20

// Options control hunk matching.
type Options struct {
	// FuzzWindow overrides DefaultFuzzWindow when positive.
	FuzzWindow int
	// WhitespaceFix retries failed matches ignoring trailing whitespace
	// per line. It only affects matching; emitted lines are taken
	// verbatim from the hunk.
	WhitespaceFix bool
}

func (o Options) fuzz() int {
	if o.FuzzWindow > 0 {
		return o.FuzzWindow
	}
	return DefaultFuzzWindow
}

// MismatchError identifies the first hunk that could not be located,
// with fuzz and whitespace leniency exhausted.
type MismatchError struct {
	Hunk   int // 1-based hunk index within the file diff
	Wanted int // 1-based line where the hunk was expected
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("hunk #%d does not match file content near line %d", e.Hunk, e.Wanted)
}

// Result summarizes a successful Patch call.
type Result struct {
	Applied    int
	Preapplied int
}

// AllPreapplied reports whether every hunk was already present in the
// target, so the file needs no write.
func (r *Result) AllPreapplied() bool {
	return r.Applied == 0 && r.Preapplied > 0
}

// Patch applies every hunk of d to content and returns the new content.
// It never returns partial output: the first unmatched hunk fails the
// whole file diff. Hunks whose post-state is already present count as
// pre-applied and leave the content untouched.
func Patch(content []byte, d *diff.FileDiff, opts Options) ([]byte, *Result, error) {
	lines, hadNL := splitLines(content)
	res := &Result{}

	// delta tracks how far the live file has drifted from the hunks'
	// declared coordinates: earlier hunk size changes plus fuzz offsets.
	delta := 0
	for idx, h := range d.Hunks {
		oldBlock := h.OldLines()
		newBlock := h.NewLines()

		want := h.OldStart - 1 + delta
		if h.OldCount == 0 {
			// Pure insertion: the header addresses the line the new
			// text follows, so the insert index is OldStart itself.
			// An empty old block matches anywhere, so look for the
			// inserted lines first or a re-run would double them.
			want = clamp(h.OldStart+delta, len(lines))
			npos, nok := locate(lines, newBlock, want, opts.fuzz(), eqExact)
			if !nok && opts.WhitespaceFix {
				npos, nok = locate(lines, newBlock, want, opts.fuzz(), eqTrimmed)
			}
			if nok && len(newBlock) > 0 {
				res.Preapplied++
				delta += (npos - want) + len(newBlock)
				continue
			}
			lines = splice(lines, want, 0, newBlock)
			res.Applied++
			delta += len(newBlock)
			continue
		}

		pos, ok := locate(lines, oldBlock, want, opts.fuzz(), eqExact)
		if !ok && opts.WhitespaceFix {
			pos, ok = locate(lines, oldBlock, want, opts.fuzz(), eqTrimmed)
		}
		if ok {
			lines = splice(lines, pos, len(oldBlock), newBlock)
			res.Applied++
			delta += (pos - want) + (len(newBlock) - len(oldBlock))
			continue
		}

		// Idempotency: the target state may already be in place from a
		// previous run against this tree.
		npos, nok := locate(lines, newBlock, want, opts.fuzz(), eqExact)
		if !nok && opts.WhitespaceFix {
			npos, nok = locate(lines, newBlock, want, opts.fuzz(), eqTrimmed)
		}
		if nok && len(newBlock) > 0 {
			res.Preapplied++
			delta += (npos - want) + (len(newBlock) - len(oldBlock))
			continue
		}

		return nil, nil, &MismatchError{Hunk: idx + 1, Wanted: want + 1}
	}

	trailNL := hadNL
	if d.OldNoEOF {
		trailNL = true
	}
	if d.NewNoEOF {
		trailNL = false
	}
	return joinLines(lines, trailNL), res, nil
}

// NewFileContent renders the full content of a file-creation diff.
func NewFileContent(d *diff.FileDiff) []byte {
	var lines []string
	for _, h := range d.Hunks {
		lines = append(lines, h.NewLines()...)
	}
	return joinLines(lines, !d.NewNoEOF)
}

// MatchesOldContent reports whether content is exactly the old side of
// d. Used to verify a file before a deletion diff removes it.
func MatchesOldContent(content []byte, d *diff.FileDiff, opts Options) bool {
	lines, _ := splitLines(content)
	var want []string
	for _, h := range d.Hunks {
		want = append(want, h.OldLines()...)
	}
	if len(lines) != len(want) {
		return false
	}
	for i := range want {
		if lines[i] == want[i] {
			continue
		}
		if opts.WhitespaceFix && eqTrimmed(lines[i], want[i]) {
			continue
		}
		return false
	}
	return true
}

// locate finds block in lines, preferring the wanted position and then
// searching a bounded window around it. Ties between equal distances
// resolve to the earlier position.
func locate(lines, block []string, want, window int, eq func(a, b string) bool) (int, bool) {
	want = clamp(want, len(lines))
	if len(block) == 0 {
		return want, true
	}
	if matchAt(lines, block, want, eq) {
		return want, true
	}
	for off := 1; off <= window; off++ {
		if matchAt(lines, block, want-off, eq) {
			return want - off, true
		}
		if matchAt(lines, block, want+off, eq) {
			return want + off, true
		}
	}
	return 0, false
}

func matchAt(lines, block []string, pos int, eq func(a, b string) bool) bool {
	if pos < 0 || pos+len(block) > len(lines) {
		return false
	}
	for j, b := range block {
		if !eq(lines[pos+j], b) {
			return false
		}
	}
	return true
}

func clamp(pos, max int) int {
	if pos < 0 {
		return 0
	}
	if pos > max {
		return max
	}
	return pos
}

func eqExact(a, b string) bool {
	return a == b
}

func eqTrimmed(a, b string) bool {
	return strings.TrimRight(a, " \t") == strings.TrimRight(b, " \t")
}

func splice(lines []string, pos, removed int, insert []string) []string {
	out := make([]string, 0, len(lines)-removed+len(insert))
	out = append(out, lines[:pos]...)
	out = append(out, insert...)
	out = append(out, lines[pos+removed:]...)
	return out
}

func splitLines(content []byte) (lines []string, hadNL bool) {
	if len(content) == 0 {
		return nil, true
	}
	s := string(content)
	hadNL = strings.HasSuffix(s, "\n")
	if hadNL {
		s = s[:len(s)-1]
	}
	return strings.Split(s, "\n"), hadNL
}

func joinLines(lines []string, trailNL bool) []byte {
	if len(lines) == 0 {
		return nil
	}
	s := strings.Join(lines, "\n")
	if trailNL {
		s += "\n"
	}
	return []byte(s)
}
