// Package history turns a fixing pass into durable audit records: the
// violations observed, a before/after event per modified file, and the
// pattern outcome feedback that drives future selection.
package history

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"relint/internal/parse"
	"relint/internal/rewrite"
	"relint/internal/store"
)

// Recorder persists the outcome of one run in a single transaction.
type Recorder struct {
	db         *store.DB
	snippetCap int
	log        *zap.SugaredLogger
}

// NewRecorder creates a recorder. snippetCap bounds the stored before/after
// snippets in bytes; zero or negative keeps the default of 1000.
func NewRecorder(db *store.DB, snippetCap int, log *zap.SugaredLogger) *Recorder {
	if snippetCap <= 0 {
		snippetCap = 1000
	}
	return &Recorder{db: db, snippetCap: snippetCap, log: log}
}

// Record writes all run artifacts atomically: the violation rows, one
// correction event per changed file, and the per-pattern outcome updates.
// Either everything lands or nothing does.
func (r *Recorder) Record(runID string, violations []*parse.Violation, res *rewrite.Result) error {
	tx, err := r.db.BeginTx()
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.db.InsertViolations(tx, runID, violations); err != nil {
		return err
	}

	patternsByFile := make(map[string][]string)
	for _, v := range violations {
		if v.CorrectionMethod == "" {
			continue
		}
		ids := patternsByFile[v.FilePath]
		if !contains(ids, v.CorrectionMethod) {
			patternsByFile[v.FilePath] = append(ids, v.CorrectionMethod)
		}
	}

	for _, ch := range res.Changes {
		ev := &store.CorrectionEvent{
			RunID:          runID,
			FilePath:       ch.Path,
			CorrectionType: strings.Join(ch.Codes, ","),
			BeforeContent:  truncate(string(ch.Before), r.snippetCap),
			AfterContent:   truncate(string(ch.After), r.snippetCap),
			BeforeDigest:   digest(ch.Before),
			AfterDigest:    digest(ch.After),
			DiffSummary:    summarize(string(ch.Before), string(ch.After)),
			PatternUsed:    strings.Join(patternsByFile[ch.Path], ","),
			Success:        !ch.WriteFailed,
		}
		if err := r.db.InsertCorrectionEvent(tx, ev); err != nil {
			return err
		}
	}

	if err := r.recordOutcomes(tx, violations); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// recordOutcomes folds each pattern's applications and successes from this
// run into its stored success rate. A violation carrying a correction method
// counts as an application; it counts as a success only when the fix stuck.
func (r *Recorder) recordOutcomes(tx *sql.Tx, violations []*parse.Violation) error {
	type outcome struct {
		applied   int64
		succeeded int64
	}
	outcomes := make(map[string]*outcome)
	var order []string
	for _, v := range violations {
		if v.CorrectionMethod == "" {
			continue
		}
		o := outcomes[v.CorrectionMethod]
		if o == nil {
			o = &outcome{}
			outcomes[v.CorrectionMethod] = o
			order = append(order, v.CorrectionMethod)
		}
		o.applied++
		if v.CorrectionApplied {
			o.succeeded++
		}
	}

	for _, id := range order {
		o := outcomes[id]
		if err := r.db.RecordPatternOutcome(tx, id, o.applied, o.succeeded); err != nil {
			return err
		}
	}
	return nil
}

func digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// summarize reduces a before/after pair to a one-line change count.
func summarize(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	var inserted, deleted int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return fmt.Sprintf("+%d/-%d bytes", inserted, deleted)
}

// truncate caps s at limit bytes without cutting a UTF-8 rune in half.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
