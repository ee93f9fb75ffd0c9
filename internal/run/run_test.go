package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sokinpui/patchset/internal/resolve"
	"github.com/sokinpui/patchset/model"
)

// fixture builds a repo with one module root "Loop" containing
// Foo.swift (numbered lines, with line 10 set to "let x = 1") and a
// sibling patches directory.
type fixture struct {
	repo    string
	patches string
	runner  func(opts Options) *Runner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	patches := filepath.Join(dir, "patches")
	if err := os.MkdirAll(filepath.Join(repo, "Loop"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(patches, 0o755); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	for i := 1; i <= 25; i++ {
		if i == 10 {
			b.WriteString("let x = 1\n")
			continue
		}
		fmt.Fprintf(&b, "line %d\n", i)
	}
	writeFile(t, filepath.Join(repo, "Loop", "Foo.swift"), b.String())

	resolver, err := resolve.New([]resolve.Module{{Name: "Loop", Root: filepath.Join(repo, "Loop")}})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		repo:    repo,
		patches: patches,
		runner: func(opts Options) *Runner {
			return New(resolver, opts)
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func (f *fixture) fooPath() string {
	return filepath.Join(f.repo, "Loop", "Foo.swift")
}

func onePatch(declared int, oldLine, newLine string) string {
	return fmt.Sprintf(`--- a/Loop/Foo.swift
+++ b/Loop/Foo.swift
@@ -%d,1 +%d,1 @@
-%s
+%s
`, declared, declared, oldLine, newLine)
}

func TestRunnerAppliesScenario(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "0001-x.patch"), onePatch(10, "let x = 1", "let x = 2"))

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if n := len(report.Outcomes); n != 1 {
		t.Fatalf("expected 1 outcome, got %d", n)
	}
	o := report.Outcomes[0]
	if o.Status != model.StatusApplied {
		t.Fatalf("status = %s (%s)", o.Status, o.Detail)
	}
	if o.FilePath != f.fooPath() {
		t.Errorf("resolved path = %q", o.FilePath)
	}
	if !report.BuildMayProceed() {
		t.Error("build should proceed")
	}

	lines := strings.Split(readFile(t, f.fooPath()), "\n")
	if lines[9] != "let x = 2" {
		t.Errorf("line 10 = %q, want %q", lines[9], "let x = 2")
	}
}

func TestRunnerOrdering(t *testing.T) {
	f := newFixture(t)
	// 01 edits line 5, 02 edits the line 01 just produced: the result
	// only exists if 01 ran first, whatever order the directory lists.
	writeFile(t, filepath.Join(f.patches, "01-a.patch"), onePatch(5, "line 5", "changed by a"))
	writeFile(t, filepath.Join(f.patches, "02-b.patch"), onePatch(5, "changed by a", "changed by b"))

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	for _, o := range report.Outcomes {
		if o.Status != model.StatusApplied {
			t.Fatalf("outcome %s: %s (%s)", o.PatchFile, o.Status, o.Detail)
		}
	}
	if !strings.Contains(readFile(t, f.fooPath()), "changed by b\n") {
		t.Error("patches did not apply in filename order")
	}
}

func TestRunnerDisjointEdits(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "01-a.patch"), onePatch(5, "line 5", "five"))
	writeFile(t, filepath.Join(f.patches, "02-b.patch"), onePatch(20, "line 20", "twenty"))

	report, err := f.runner(Options{Jobs: 4}).Dir(f.patches)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	counts := report.Counts()
	if counts[model.StatusApplied] != 2 {
		t.Fatalf("expected 2 applied, got %v", counts)
	}
	content := readFile(t, f.fooPath())
	if !strings.Contains(content, "five\n") || !strings.Contains(content, "twenty\n") {
		t.Errorf("both edits must land:\n%s", content)
	}
}

func TestRunnerAtomicityOnMismatch(t *testing.T) {
	f := newFixture(t)
	before := readFile(t, f.fooPath())

	// First hunk matches, second cannot: nothing may be written.
	patch := `--- a/Loop/Foo.swift
+++ b/Loop/Foo.swift
@@ -5,1 +5,1 @@
-line 5
+five
@@ -20,1 +20,1 @@
-no such line
+whatever
`
	writeFile(t, filepath.Join(f.patches, "bad.patch"), patch)

	report, err := f.runner(Options{FuzzWindow: 2}).Dir(f.patches)
	if err != nil {
		t.Fatalf("Dir failed: %v", err)
	}
	if report.Outcomes[0].Status != model.StatusContextMismatch {
		t.Fatalf("status = %s", report.Outcomes[0].Status)
	}
	if report.BuildMayProceed() {
		t.Error("build must not proceed")
	}
	if after := readFile(t, f.fooPath()); after != before {
		t.Error("target file changed despite a failed hunk")
	}
}

func TestRunnerIdempotentRerun(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "0001-x.patch"), onePatch(10, "let x = 1", "let x = 2"))

	if _, err := f.runner(Options{}).Dir(f.patches); err != nil {
		t.Fatal(err)
	}
	after := readFile(t, f.fooPath())

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[0].Status != model.StatusAlreadyApplied {
		t.Fatalf("rerun status = %s", report.Outcomes[0].Status)
	}
	if !report.BuildMayProceed() {
		t.Error("already-applied must not block the build")
	}
	if readFile(t, f.fooPath()) != after {
		t.Error("rerun changed the file")
	}
}

func TestRunnerUnresolvedPath(t *testing.T) {
	f := newFixture(t)
	before := readFile(t, f.fooPath())
	writeFile(t, filepath.Join(f.patches, "orphan.patch"), `--- a/Unknown/File.swift
+++ b/Unknown/File.swift
@@ -1,1 +1,1 @@
-x
+y
`)

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	o := report.Outcomes[0]
	if o.Status != model.StatusPathUnresolved {
		t.Fatalf("status = %s", o.Status)
	}
	if o.FilePath != "Unknown/File.swift" {
		t.Errorf("unresolved outcome path = %q", o.FilePath)
	}
	if report.BuildMayProceed() {
		t.Error("build must not proceed")
	}
	if readFile(t, f.fooPath()) != before {
		t.Error("file tree changed")
	}
}

func TestRunnerEmptyPatch(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "empty.patch"), "")

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[0].Status != model.StatusParseError {
		t.Fatalf("without allow-empty: status = %s", report.Outcomes[0].Status)
	}

	report, err = f.runner(Options{AllowEmpty: true}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[0].Status != model.StatusEmpty {
		t.Fatalf("with allow-empty: status = %s", report.Outcomes[0].Status)
	}
	if !report.BuildMayProceed() {
		t.Error("empty patch must not block the build")
	}
	if report.Counts()[model.StatusEmpty] != 1 {
		t.Error("empty patches must be counted separately")
	}
}

func TestRunnerCreateAndDelete(t *testing.T) {
	f := newFixture(t)
	doomed := filepath.Join(f.repo, "Loop", "Old.swift")
	writeFile(t, doomed, "line one\nline two\n")
	writeFile(t, filepath.Join(f.patches, "01-new.patch"), `--- /dev/null
+++ b/Loop/Nested/New.swift
@@ -0,0 +1,2 @@
+line one
+line two
`)
	writeFile(t, filepath.Join(f.patches, "02-del.patch"), `--- a/Loop/Old.swift
+++ /dev/null
@@ -1,2 +0,0 @@
-line one
-line two
`)

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range report.Outcomes {
		if o.Status != model.StatusApplied {
			t.Fatalf("outcome %s: %s (%s)", o.PatchFile, o.Status, o.Detail)
		}
	}

	created := filepath.Join(f.repo, "Loop", "Nested", "New.swift")
	if readFile(t, created) != "line one\nline two\n" {
		t.Error("created file has wrong content")
	}
	if _, err := os.Stat(doomed); !os.IsNotExist(err) {
		t.Error("deleted file still exists")
	}

	// Rerun: creation and deletion are both idempotent.
	report, err = f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range report.Outcomes {
		if o.Status != model.StatusAlreadyApplied {
			t.Fatalf("rerun outcome %s: %s (%s)", o.PatchFile, o.Status, o.Detail)
		}
	}
}

func TestRunnerDeleteMismatch(t *testing.T) {
	f := newFixture(t)
	modified := filepath.Join(f.repo, "Loop", "Old.swift")
	writeFile(t, modified, "line one\nsomething else\n")
	writeFile(t, filepath.Join(f.patches, "del.patch"), `--- a/Loop/Old.swift
+++ /dev/null
@@ -1,2 +0,0 @@
-line one
-line two
`)

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	o := report.Outcomes[0]
	if o.Status != model.StatusContextMismatch {
		t.Fatalf("status = %s (%s)", o.Status, o.Detail)
	}
	if _, err := os.Stat(modified); err != nil {
		t.Error("a modified file must survive a mismatched deletion diff")
	}
	if report.BuildMayProceed() {
		t.Error("build must not proceed")
	}
}

func TestRunnerStrictStops(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "01-bad.patch"), onePatch(10, "does not match", "whatever"))
	writeFile(t, filepath.Join(f.patches, "02-good.patch"), onePatch(5, "line 5", "five"))
	writeFile(t, filepath.Join(f.patches, "03-broken.patch"), "--- a/f\nnot a header\n")

	report, err := f.runner(Options{Strict: true, FuzzWindow: 2}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}

	if report.Outcomes[0].Status != model.StatusContextMismatch {
		t.Fatalf("first outcome = %s", report.Outcomes[0].Status)
	}
	// 02 must not have been applied after the stop.
	if strings.Contains(readFile(t, f.fooPath()), "five\n") {
		t.Error("strict mode applied a patch after the first failure")
	}
	// 03 is still parsed for diagnostics.
	found := false
	for _, o := range report.Outcomes {
		if o.PatchFile == "03-broken.patch" && o.Status == model.StatusParseError {
			found = true
		}
	}
	if !found {
		t.Error("strict mode must keep reporting parse errors after stopping")
	}
}

func TestRunnerSoftFailContinues(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "01-bad.patch"), onePatch(10, "does not match", "whatever"))
	writeFile(t, filepath.Join(f.patches, "02-good.patch"), onePatch(5, "line 5", "five"))

	report, err := f.runner(Options{FuzzWindow: 2}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	counts := report.Counts()
	if counts[model.StatusContextMismatch] != 1 || counts[model.StatusApplied] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	if !strings.Contains(readFile(t, f.fooPath()), "five\n") {
		t.Error("soft-fail mode must continue after a failure")
	}
}

func TestRunnerDryRun(t *testing.T) {
	f := newFixture(t)
	before := readFile(t, f.fooPath())
	writeFile(t, filepath.Join(f.patches, "0001-x.patch"), onePatch(10, "let x = 1", "let x = 2"))

	report, err := f.runner(Options{DryRun: true}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[0].Status != model.StatusApplied {
		t.Fatalf("status = %s", report.Outcomes[0].Status)
	}
	if readFile(t, f.fooPath()) != before {
		t.Error("dry run wrote to the tree")
	}
}

func TestRunnerMarkdownPatch(t *testing.T) {
	f := newFixture(t)
	note := "Fixes the x constant.\n\n```diff\n" + onePatch(10, "let x = 1", "let x = 2") + "```\n"
	writeFile(t, filepath.Join(f.patches, "note.md"), note)

	report, err := f.runner(Options{}).Dir(f.patches)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[0].Status != model.StatusApplied {
		t.Fatalf("status = %s (%s)", report.Outcomes[0].Status, report.Outcomes[0].Detail)
	}
	if !strings.Contains(readFile(t, f.fooPath()), "let x = 2\n") {
		t.Error("markdown-embedded diff not applied")
	}
}

func TestRunnerProgress(t *testing.T) {
	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "01-a.patch"), onePatch(5, "line 5", "five"))
	writeFile(t, filepath.Join(f.patches, "02-b.patch"), onePatch(20, "line 20", "twenty"))

	var calls []int
	r := f.runner(Options{})
	r.Progress = func(done, total int) {
		if total != 2 {
			t.Errorf("total = %d", total)
		}
		calls = append(calls, done)
	}
	if _, err := r.Dir(f.patches); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("progress calls = %v", calls)
	}
}
