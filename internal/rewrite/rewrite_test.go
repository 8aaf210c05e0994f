package rewrite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relint/internal/logging"
	"relint/internal/parse"
	"relint/internal/pattern"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func snapshot(patterns ...*pattern.Pattern) map[string][]*pattern.Pattern {
	return pattern.ByCode(patterns)
}

func violation(path string, line int, code string) *parse.Violation {
	return &parse.Violation{
		FilePath:   path,
		Line:       line,
		Column:     1,
		Code:       code,
		Message:    "test",
		Severity:   parse.ClassifySeverity(code),
		ObservedAt: time.Now(),
	}
}

func TestFixAppliesPattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "x = 1\ny = 2\nprint(foo)\n")

	p1 := &pattern.Pattern{ID: "P1", Code: "E001", MatchExpr: "foo", ReplaceExpr: "bar", Confidence: 0.9}
	e := NewEngine(snapshot(p1), false, logging.Nop())

	v := violation(path, 3, "E001")
	res := e.Fix([]*parse.Violation{v})

	if res.Fixed != 1 {
		t.Errorf("fixed: got %d, want 1", res.Fixed)
	}
	if !v.CorrectionApplied || v.CorrectionMethod != "P1" {
		t.Errorf("violation not marked: applied=%v method=%q", v.CorrectionApplied, v.CorrectionMethod)
	}
	if res.PatternsUsed["P1"] != 1 {
		t.Errorf("patterns used: %v", res.PatternsUsed)
	}
	if len(res.Changes) != 1 {
		t.Fatalf("changes: got %d, want 1", len(res.Changes))
	}

	content, _ := os.ReadFile(path)
	if string(content) != "x = 1\ny = 2\nprint(bar)\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFixNoPatternLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "def broken(:\n")

	before, _ := os.ReadFile(path)
	infoBefore, _ := os.Stat(path)

	e := NewEngine(snapshot(), false, logging.Nop())
	v := violation(path, 1, "E999")
	res := e.Fix([]*parse.Violation{v})

	if res.Fixed != 0 || res.NoPattern != 1 {
		t.Errorf("got fixed=%d noPattern=%d, want 0, 1", res.Fixed, res.NoPattern)
	}
	if v.CorrectionApplied {
		t.Error("violation must stay uncorrected")
	}
	if len(res.Changes) != 0 {
		t.Errorf("expected no changes, got %d", len(res.Changes))
	}

	after, _ := os.ReadFile(path)
	if string(after) != string(before) {
		t.Error("file content changed")
	}
	infoAfter, _ := os.Stat(path)
	if !infoAfter.ModTime().Equal(infoBefore.ModTime()) {
		t.Error("file mtime changed")
	}
}

func TestFixMatchWithoutEffectIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	long := "x = '" + strings.Repeat("a", 100) + "'\n"
	writeFile(t, path, long)

	// Detection-only pattern: identity replacement.
	p := &pattern.Pattern{ID: "E501_detect_only", Code: "E501", MatchExpr: `^(.{80,})$`, ReplaceExpr: `$1`, Confidence: 0.5}
	e := NewEngine(snapshot(p), false, logging.Nop())

	v := violation(path, 1, "E501")
	res := e.Fix([]*parse.Violation{v})

	if res.Fixed != 0 || res.Failed != 1 {
		t.Errorf("got fixed=%d failed=%d, want 0, 1", res.Fixed, res.Failed)
	}
	if v.CorrectionApplied {
		t.Error("violation must stay uncorrected")
	}
	after, _ := os.ReadFile(path)
	if string(after) != long {
		t.Error("file content changed")
	}
}

func TestFixDescendingOrderAndLineConservation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	var lines []string
	for i := 1; i <= 12; i++ {
		lines = append(lines, "line")
	}
	lines[4] = "x = 1   " // line 5: trailing whitespace
	lines[9] = "if x == None:" // line 10
	writeFile(t, path, strings.Join(lines, "\n")+"\n")

	w291 := &pattern.Pattern{ID: "W291_strip_trailing", Code: "W291", MatchExpr: `^(.*[^ \t])[ \t]+$`, ReplaceExpr: `$1`, Confidence: 0.95}
	e711 := &pattern.Pattern{ID: "E711_is_none", Code: "E711", MatchExpr: `^(.*?)\s*==\s*None(.*)$`, ReplaceExpr: `$1 is None$2`, Confidence: 0.85}
	e := NewEngine(snapshot(w291, e711), false, logging.Nop())

	// Present violations in ascending order; the engine must still fix
	// line 10 first and line 5 second without interference.
	res := e.Fix([]*parse.Violation{
		violation(path, 5, "W291"),
		violation(path, 10, "E711"),
	})

	if res.Fixed != 2 {
		t.Fatalf("fixed: got %d, want 2", res.Fixed)
	}

	content, _ := os.ReadFile(path)
	got := strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
	if len(got) != 12 {
		t.Fatalf("line count changed: got %d, want 12", len(got))
	}
	if got[4] != "x = 1" {
		t.Errorf("line 5: got %q", got[4])
	}
	if got[9] != "if x is None:" {
		t.Errorf("line 10: got %q", got[9])
	}
}

func TestFixIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "x = 1   \n")

	w291 := &pattern.Pattern{ID: "W291_strip_trailing", Code: "W291", MatchExpr: `^(.*[^ \t])[ \t]+$`, ReplaceExpr: `$1`, Confidence: 0.95}
	e := NewEngine(snapshot(w291), false, logging.Nop())

	res1 := e.Fix([]*parse.Violation{violation(path, 1, "W291")})
	if res1.Fixed != 1 {
		t.Fatalf("first pass fixed: got %d, want 1", res1.Fixed)
	}
	afterFirst, _ := os.ReadFile(path)
	firstInfo, _ := os.Stat(path)

	// Second pass over the already-fixed tree: nothing left to change.
	res2 := e.Fix([]*parse.Violation{violation(path, 1, "W291")})
	if res2.Fixed != 0 {
		t.Errorf("second pass fixed: got %d, want 0", res2.Fixed)
	}
	afterSecond, _ := os.ReadFile(path)
	if string(afterSecond) != string(afterFirst) {
		t.Error("second pass changed the file")
	}
	secondInfo, _ := os.Stat(path)
	if !secondInfo.ModTime().Equal(firstInfo.ModTime()) {
		t.Error("second pass rewrote the file")
	}
}

func TestFixDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "print(foo)\n")

	p1 := &pattern.Pattern{ID: "P1", Code: "E001", MatchExpr: "foo", ReplaceExpr: "bar", Confidence: 0.9}
	e := NewEngine(snapshot(p1), true, logging.Nop())

	res := e.Fix([]*parse.Violation{violation(path, 1, "E001")})
	if res.Fixed != 1 || len(res.Changes) != 1 {
		t.Fatalf("dry run: fixed=%d changes=%d, want 1, 1", res.Fixed, len(res.Changes))
	}
	if string(res.Changes[0].After) != "print(bar)\n" {
		t.Errorf("computed change: %q", res.Changes[0].After)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "print(foo)\n" {
		t.Error("dry run wrote the file")
	}
}

func TestFixSingleWritePerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "a = foo\nb = foo\nc = foo\n")

	p1 := &pattern.Pattern{ID: "P1", Code: "E001", MatchExpr: "foo", ReplaceExpr: "bar", Confidence: 0.9}
	e := NewEngine(snapshot(p1), false, logging.Nop())

	res := e.Fix([]*parse.Violation{
		violation(path, 1, "E001"),
		violation(path, 2, "E001"),
		violation(path, 3, "E001"),
	})
	if res.Fixed != 3 {
		t.Fatalf("fixed: got %d, want 3", res.Fixed)
	}
	if len(res.Changes) != 1 {
		t.Errorf("expected one change record per file, got %d", len(res.Changes))
	}
	if res.Changes[0].Applied != 3 {
		t.Errorf("applied: got %d, want 3", res.Changes[0].Applied)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "a = bar\nb = bar\nc = bar\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFixPreservesNewlineStyle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	// CRLF endings and no trailing newline on the last line.
	writeFile(t, path, "x = 1   \r\ny = foo")

	w291 := &pattern.Pattern{ID: "W291_strip_trailing", Code: "W291", MatchExpr: `^(.*[^ \t])[ \t]+$`, ReplaceExpr: `$1`, Confidence: 0.95}
	p1 := &pattern.Pattern{ID: "P1", Code: "E001", MatchExpr: "foo", ReplaceExpr: "bar", Confidence: 0.9}
	e := NewEngine(snapshot(w291, p1), false, logging.Nop())

	res := e.Fix([]*parse.Violation{
		violation(path, 1, "W291"),
		violation(path, 2, "E001"),
	})
	if res.Fixed != 2 {
		t.Fatalf("fixed: got %d, want 2", res.Fixed)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "x = 1\r\ny = bar" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFixSelectsHighestConfidence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "print(foo)\n")

	weak := &pattern.Pattern{ID: "WEAK", Code: "E001", MatchExpr: "foo", ReplaceExpr: "weak", Confidence: 0.3}
	strong := &pattern.Pattern{ID: "STRONG", Code: "E001", MatchExpr: "foo", ReplaceExpr: "strong", Confidence: 0.9}
	e := NewEngine(snapshot(weak, strong), false, logging.Nop())

	v := violation(path, 1, "E001")
	e.Fix([]*parse.Violation{v})

	if v.CorrectionMethod != "STRONG" {
		t.Errorf("selected %q, want STRONG", v.CorrectionMethod)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "print(strong)\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFixWriteFailureRollsBackCounts(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("write failure cannot be provoked as root")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "print(foo)\n")

	// Read works, write-back does not.
	if err := os.Chmod(dir, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	p1 := &pattern.Pattern{ID: "P1", Code: "E001", MatchExpr: "foo", ReplaceExpr: "bar", Confidence: 0.9}
	e := NewEngine(snapshot(p1), false, logging.Nop())

	v := violation(path, 1, "E001")
	res := e.Fix([]*parse.Violation{v})

	if res.Fixed != 0 || res.Failed != 1 {
		t.Errorf("got fixed=%d failed=%d, want 0, 1", res.Fixed, res.Failed)
	}
	if v.CorrectionApplied {
		t.Error("violation must be unmarked after a failed write")
	}
	if len(res.PatternsUsed) != 0 {
		t.Errorf("patterns used must be rolled back, got %v", res.PatternsUsed)
	}
	if len(res.Changes) != 1 || !res.Changes[0].WriteFailed {
		t.Errorf("expected one failed change, got %+v", res.Changes)
	}
}

func TestFixOutOfRangeLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.py")
	writeFile(t, path, "x = 1\n")

	p1 := &pattern.Pattern{ID: "P1", Code: "E001", MatchExpr: "x", ReplaceExpr: "y", Confidence: 0.9}
	e := NewEngine(snapshot(p1), false, logging.Nop())

	res := e.Fix([]*parse.Violation{violation(path, 99, "E001")})
	if res.Fixed != 0 || res.Failed != 1 {
		t.Errorf("got fixed=%d failed=%d, want 0, 1", res.Fixed, res.Failed)
	}
}
