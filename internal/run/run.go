// Package run coordinates a full correction pass: scan, fix, persist.
package run

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"relint/internal/config"
	"relint/internal/history"
	"relint/internal/parse"
	"relint/internal/rewrite"
	"relint/internal/scan"
	"relint/internal/store"
)

// State names one phase of a run. Transitions only move forward; any fatal
// error lands in StateFailed.
type State string

const (
	StateInit       State = "INIT"
	StateScanning   State = "SCANNING"
	StateFixing     State = "FIXING"
	StatePersisting State = "PERSISTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Summary reports one run's outcome. FilesModified lists the files whose
// corrected content was written back (in dry-run: the files that would have
// been written); Violations carries the full list for reporting.
type Summary struct {
	RunID           string             `json:"run_id"`
	Root            string             `json:"root"`
	State           State              `json:"state"`
	DryRun          bool               `json:"dry_run"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
	DurationSeconds float64            `json:"duration_seconds"`
	FilesScanned    int                `json:"files_scanned"`
	FilesSkipped    int                `json:"files_skipped"`
	ParseSkips      int                `json:"parse_skips"`
	ViolationsFound int                `json:"violations_found"`
	ViolationsFixed int                `json:"violations_fixed"`
	FailedFixes     int                `json:"failed_fixes"`
	NoPattern       int                `json:"no_pattern"`
	FilesModified   []string           `json:"files_modified"`
	PatternsUsed    map[string]int     `json:"patterns_used,omitempty"`
	Violations      []*parse.Violation `json:"violations,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// Coordinator drives the scan/fix/persist pipeline.
type Coordinator struct {
	cfg *config.Config
	db  *store.DB
	log *zap.SugaredLogger
}

// New creates a coordinator.
func New(cfg *config.Config, db *store.DB, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{cfg: cfg, db: db, log: log}
}

// Run executes one correction pass over root. Per-file problems degrade to
// skips inside the scanner; only a missing root or an unreachable store is
// fatal. In dry-run mode corrections are computed but neither files nor the
// database are written.
func (c *Coordinator) Run(ctx context.Context, root string) (*Summary, error) {
	sum := &Summary{
		RunID:     uuid.NewString(),
		Root:      root,
		State:     StateInit,
		DryRun:    c.cfg.DryRun,
		StartedAt: time.Now(),
	}
	c.log.Infow("run starting", "run", sum.RunID, "root", root, "dryRun", c.cfg.DryRun)

	if _, err := os.Stat(root); err != nil {
		return c.fail(sum, fmt.Errorf("scan root: %w", scan.ErrRootNotFound))
	}
	if err := c.db.Ping(); err != nil {
		return c.fail(sum, fmt.Errorf("pattern store unavailable: %w", err))
	}

	sum.State = StateScanning
	scanner := scan.New(scan.Options{
		Tool:       c.cfg.Tool,
		Args:       c.cfg.ToolArgs,
		Extensions: c.cfg.Extensions,
		Timeout:    c.cfg.Timeout,
		Jobs:       c.cfg.Jobs,
	}, c.log)
	scanRes, err := scanner.Scan(ctx, root)
	if err != nil {
		return c.fail(sum, err)
	}
	sum.FilesScanned = scanRes.FilesScanned
	sum.FilesSkipped = scanRes.FilesSkipped
	sum.ParseSkips = scanRes.ParseSkips
	sum.ViolationsFound = len(scanRes.Violations)
	sum.Violations = scanRes.Violations
	c.log.Infow("scan complete", "run", sum.RunID,
		"files", sum.FilesScanned, "skipped", sum.FilesSkipped,
		"violations", sum.ViolationsFound)

	sum.State = StateFixing
	snapshot, err := c.db.PatternsByCode()
	if err != nil {
		return c.fail(sum, err)
	}
	engine := rewrite.NewEngine(snapshot, c.cfg.DryRun, c.log)
	fixRes := engine.Fix(scanRes.Violations)
	sum.ViolationsFixed = fixRes.Fixed
	sum.FailedFixes = fixRes.Failed
	sum.NoPattern = fixRes.NoPattern
	sum.PatternsUsed = fixRes.PatternsUsed
	for _, ch := range fixRes.Changes {
		if !ch.WriteFailed {
			sum.FilesModified = append(sum.FilesModified, ch.Path)
		}
	}
	c.log.Infow("fixing complete", "run", sum.RunID,
		"fixed", sum.ViolationsFixed, "failed", sum.FailedFixes,
		"noPattern", sum.NoPattern, "filesModified", len(sum.FilesModified))

	sum.State = StatePersisting
	if !c.cfg.DryRun {
		rec := history.NewRecorder(c.db, c.cfg.SnippetCap, c.log)
		if err := rec.Record(sum.RunID, scanRes.Violations, fixRes); err != nil {
			return c.fail(sum, err)
		}
	}

	sum.State = StateDone
	finish(sum)

	if !c.cfg.DryRun {
		if err := c.db.InsertRun(runRecord(sum)); err != nil {
			c.log.Warnw("persisting run summary failed", "run", sum.RunID, "error", err)
		}
	}

	c.log.Infow("run complete", "run", sum.RunID, "state", sum.State)
	return sum, nil
}

func (c *Coordinator) fail(sum *Summary, err error) (*Summary, error) {
	sum.State = StateFailed
	finish(sum)
	sum.Error = err.Error()
	c.log.Errorw("run failed", "run", sum.RunID, "error", err)
	if !c.cfg.DryRun {
		if insErr := c.db.InsertRun(runRecord(sum)); insErr != nil {
			c.log.Warnw("persisting failed run failed", "run", sum.RunID, "error", insErr)
		}
	}
	return sum, err
}

func finish(sum *Summary) {
	sum.FinishedAt = time.Now()
	sum.DurationSeconds = sum.FinishedAt.Sub(sum.StartedAt).Seconds()
}

func runRecord(sum *Summary) *store.RunRecord {
	return &store.RunRecord{
		RunID:           sum.RunID,
		Root:            sum.Root,
		Status:          string(sum.State),
		StartedAt:       sum.StartedAt,
		FinishedAt:      sum.FinishedAt,
		FilesScanned:    sum.FilesScanned,
		FilesSkipped:    sum.FilesSkipped,
		ViolationsFound: sum.ViolationsFound,
		ViolationsFixed: sum.ViolationsFixed,
		FailedFixes:     sum.FailedFixes,
		FilesModified:   len(sum.FilesModified),
	}
}
