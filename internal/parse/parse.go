// Package parse converts raw linter output into structured violations.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Severity classifies a violation.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMedium   Severity = "MEDIUM"
)

// Codes that indicate broken code rather than style drift.
var criticalCodes = map[string]bool{
	"F821": true, // undefined name
	"F822": true, // undefined name in __all__
	"E999": true, // syntax error
}

// Violation is one diagnostic instance reported by the external tool.
type Violation struct {
	FilePath          string    `json:"file_path"`
	Line              int       `json:"line"`
	Column            int       `json:"column"`
	Code              string    `json:"code"`
	Message           string    `json:"message"`
	Severity          Severity  `json:"severity"`
	CorrectionApplied bool      `json:"correction_applied"`
	CorrectionMethod  string    `json:"correction_method,omitempty"`
	ObservedAt        time.Time `json:"observed_at"`
}

// Canonical diagnostic form: <path>:<line>:<col>: <code> <message>
var lineRe = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s*([A-Z]{1,3}\d{1,4})\s+(.*)$`)

// ParseLine parses one line of tool output. The second return is false for
// lines that do not match the grammar (blank lines, banners, malformed
// numbers); those are an expected miss, not an error.
func ParseLine(raw string) (*Violation, bool) {
	raw = strings.TrimRight(raw, "\r")
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}

	m := lineRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}

	line, err := strconv.Atoi(m[2])
	if err != nil || line < 1 {
		return nil, false
	}
	col, err := strconv.Atoi(m[3])
	if err != nil || col < 1 {
		return nil, false
	}

	return &Violation{
		FilePath:   m[1],
		Line:       line,
		Column:     col,
		Code:       m[4],
		Message:    m[5],
		Severity:   ClassifySeverity(m[4]),
		ObservedAt: time.Now(),
	}, true
}

// ParseOutput parses full tool output for one file. skipped counts non-empty
// lines that did not match the grammar.
func ParseOutput(out string) (violations []*Violation, skipped int) {
	for _, raw := range strings.Split(out, "\n") {
		v, ok := ParseLine(raw)
		if ok {
			violations = append(violations, v)
			continue
		}
		if strings.TrimSpace(raw) != "" {
			skipped++
		}
	}
	return violations, skipped
}

// ClassifySeverity maps a diagnostic code to its severity class.
func ClassifySeverity(code string) Severity {
	if criticalCodes[code] {
		return SeverityCritical
	}
	return SeverityMedium
}
