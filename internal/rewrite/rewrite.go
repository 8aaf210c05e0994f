// Package rewrite applies stored patterns to the lines they flag.
package rewrite

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"relint/internal/parse"
	"relint/internal/pattern"
)

// FileChange captures one file's correction pass. Before and After hold the
// full file content; Applied counts line rewrites that took effect.
type FileChange struct {
	Path        string
	Before      []byte
	After       []byte
	Applied     int
	Codes       []string
	WriteFailed bool
}

// Result aggregates one fixing pass over all violations.
type Result struct {
	// Changes holds one entry per file with at least one applied fix.
	Changes []*FileChange
	// Fixed counts violations whose line was rewritten.
	Fixed int
	// Failed counts violations where a pattern existed but produced no
	// change, plus fixes lost to a failed file write.
	Failed int
	// NoPattern counts violations with no pattern for their code.
	NoPattern int
	// PatternsUsed maps pattern id to its application count.
	PatternsUsed map[string]int
}

// Engine rewrites violating lines using a pattern snapshot taken at
// construction. The snapshot keeps selection stable for the whole run.
type Engine struct {
	byCode   map[string][]*pattern.Pattern
	compiled map[string]*regexp.Regexp
	dryRun   bool
	log      *zap.SugaredLogger
}

// NewEngine compiles the snapshot's match expressions. Patterns that fail to
// compile are dropped with a warning; stored patterns are validated on
// insert, so this only catches rows written by other tools.
func NewEngine(byCode map[string][]*pattern.Pattern, dryRun bool, log *zap.SugaredLogger) *Engine {
	e := &Engine{
		byCode:   make(map[string][]*pattern.Pattern, len(byCode)),
		compiled: make(map[string]*regexp.Regexp),
		dryRun:   dryRun,
		log:      log,
	}
	for code, candidates := range byCode {
		for _, p := range candidates {
			re, err := regexp.Compile(p.MatchExpr)
			if err != nil {
				log.Warnw("dropping pattern with invalid match expression",
					"pattern", p.ID, "error", err)
				continue
			}
			e.compiled[p.ID] = re
			e.byCode[code] = append(e.byCode[code], p)
		}
	}
	return e
}

// Fix processes all violations grouped by file and returns the aggregate
// result. Violations are mutated in place: CorrectionApplied and
// CorrectionMethod record the outcome. File content is written back at most
// once per file, and only when at least one line changed.
func (e *Engine) Fix(violations []*parse.Violation) *Result {
	res := &Result{PatternsUsed: make(map[string]int)}

	byFile := make(map[string][]*parse.Violation)
	var order []string
	for _, v := range violations {
		if _, seen := byFile[v.FilePath]; !seen {
			order = append(order, v.FilePath)
		}
		byFile[v.FilePath] = append(byFile[v.FilePath], v)
	}

	for _, path := range order {
		e.fixFile(path, byFile[path], res)
	}
	return res
}

func (e *Engine) fixFile(path string, violations []*parse.Violation, res *Result) {
	info, err := os.Stat(path)
	if err != nil {
		e.log.Warnw("cannot stat file, leaving violations uncorrected",
			"file", path, "error", err)
		return
	}
	before, err := os.ReadFile(path)
	if err != nil {
		e.log.Warnw("cannot read file, leaving violations uncorrected",
			"file", path, "error", err)
		return
	}

	lines := splitLines(string(before))

	// Descending line order so earlier edits never see shifted numbers.
	// Edits stay within their own line, but the ordering also makes runs
	// reproducible when two violations land on the same line.
	ordered := make([]*parse.Violation, len(violations))
	copy(ordered, violations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Line > ordered[j].Line
	})

	change := &FileChange{Path: path, Before: before}
	seenCodes := make(map[string]bool)

	for _, v := range ordered {
		candidates := e.byCode[v.Code]
		if len(candidates) == 0 {
			res.NoPattern++
			continue
		}
		p := pattern.Select(candidates)
		re, ok := e.compiled[p.ID]
		if !ok {
			res.NoPattern++
			continue
		}

		idx := v.Line - 1
		if idx < 0 || idx >= len(lines) {
			e.log.Debugw("violation line out of range", "file", path, "line", v.Line)
			res.Failed++
			continue
		}

		text := lines[idx].text
		if !re.MatchString(text) {
			res.Failed++
			continue
		}
		rewritten := re.ReplaceAllString(text, p.ReplaceExpr)
		if rewritten == text {
			// The pattern matched but changed nothing. Not an error,
			// just an uncorrected violation.
			res.Failed++
			continue
		}

		lines[idx].text = rewritten
		v.CorrectionApplied = true
		v.CorrectionMethod = p.ID
		change.Applied++
		res.PatternsUsed[p.ID]++
		if !seenCodes[v.Code] {
			seenCodes[v.Code] = true
			change.Codes = append(change.Codes, v.Code)
		}
	}

	if change.Applied == 0 {
		// Untouched files must stay byte-identical, so no write happens.
		return
	}

	sort.Strings(change.Codes)
	change.After = []byte(joinLines(lines))
	res.Fixed += change.Applied

	if e.dryRun {
		res.Changes = append(res.Changes, change)
		return
	}

	if err := os.WriteFile(path, change.After, info.Mode().Perm()); err != nil {
		e.log.Errorw("writing corrected file failed", "file", path, "error", err)
		change.WriteFailed = true
		res.Fixed -= change.Applied
		res.Failed += change.Applied
		for _, v := range ordered {
			if v.CorrectionMethod != "" && v.CorrectionApplied {
				v.CorrectionApplied = false
				res.PatternsUsed[v.CorrectionMethod]--
				if res.PatternsUsed[v.CorrectionMethod] == 0 {
					delete(res.PatternsUsed, v.CorrectionMethod)
				}
			}
		}
	}
	res.Changes = append(res.Changes, change)
}

// line is one source line split from its end-of-line marker, so rewrites
// can never change the file's line count or newline style.
type line struct {
	text string
	eol  string
}

func splitLines(content string) []line {
	if content == "" {
		return nil
	}
	var lines []line
	for len(content) > 0 {
		nl := strings.IndexByte(content, '\n')
		if nl < 0 {
			lines = append(lines, line{text: content})
			break
		}
		raw := content[:nl]
		eol := "\n"
		if strings.HasSuffix(raw, "\r") {
			raw = strings.TrimSuffix(raw, "\r")
			eol = "\r\n"
		}
		lines = append(lines, line{text: raw, eol: eol})
		content = content[nl+1:]
	}
	return lines
}

func joinLines(lines []line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.text)
		b.WriteString(l.eol)
	}
	return b.String()
}
