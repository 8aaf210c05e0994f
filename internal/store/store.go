// Package store provides SQLite-backed storage for relint: rewrite patterns,
// violation records, the correction audit log, and run summaries.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"relint/internal/parse"
	"relint/internal/pattern"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrPatternExists   = errors.New("pattern id already exists")
	ErrPatternNotFound = errors.New("pattern not found")
)

// DB wraps a SQLite connection for relint storage.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates a database at the given path, creating the parent
// directory if needed.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable and the schema is present.
func (db *DB) Ping() error {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM patterns`).Scan(&n); err != nil {
		return fmt.Errorf("pinging pattern store: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx() (*sql.Tx, error) {
	return db.conn.Begin()
}

// ----- Patterns -----

// InsertPattern stores a new pattern. The id must be unique.
func (db *DB) InsertPattern(p *pattern.Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := db.conn.Exec(
		`INSERT INTO patterns (pattern_id, code, match_expression, replacement_expression,
		                       description, confidence, success_rate, usage_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Code, p.MatchExpr, p.ReplaceExpr, p.Description,
		p.Confidence, p.SuccessRate, p.UsageCount, created.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return ErrPatternExists
		}
		return fmt.Errorf("inserting pattern: %w", err)
	}
	return nil
}

// SeedPatterns inserts the given patterns if their ids are absent.
// Existing patterns are never overwritten. Returns the number inserted.
func (db *DB) SeedPatterns(seeds []*pattern.Pattern) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	now := time.Now().UnixMilli()
	for _, p := range seeds {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("seed %s: %w", p.ID, err)
		}
		res, err := tx.Exec(
			`INSERT OR IGNORE INTO patterns (pattern_id, code, match_expression, replacement_expression,
			                                 description, confidence, success_rate, usage_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)`,
			p.ID, p.Code, p.MatchExpr, p.ReplaceExpr, p.Description, p.Confidence, now,
		)
		if err != nil {
			return 0, fmt.Errorf("seeding pattern %s: %w", p.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing seeds: %w", err)
	}
	return inserted, nil
}

// ListPatterns returns all patterns ordered by code then id.
func (db *DB) ListPatterns() ([]*pattern.Pattern, error) {
	rows, err := db.conn.Query(
		`SELECT pattern_id, code, match_expression, replacement_expression,
		        description, confidence, success_rate, usage_count, created_at
		 FROM patterns ORDER BY code, pattern_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*pattern.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// GetPattern retrieves one pattern by id.
func (db *DB) GetPattern(id string) (*pattern.Pattern, error) {
	row := db.conn.QueryRow(
		`SELECT pattern_id, code, match_expression, replacement_expression,
		        description, confidence, success_rate, usage_count, created_at
		 FROM patterns WHERE pattern_id = ?`, id,
	)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, ErrPatternNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// PatternsByCode returns a snapshot of all patterns grouped by diagnostic
// code. The rewrite stage works off this snapshot; later store writes do not
// affect an in-flight run.
func (db *DB) PatternsByCode() (map[string][]*pattern.Pattern, error) {
	patterns, err := db.ListPatterns()
	if err != nil {
		return nil, err
	}
	return pattern.ByCode(patterns), nil
}

// BumpPatternUsage increments a pattern's usage count.
func (db *DB) BumpPatternUsage(tx *sql.Tx, id string, delta int64) error {
	res, err := tx.Exec(
		`UPDATE patterns SET usage_count = usage_count + ? WHERE pattern_id = ?`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("bumping usage for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPatternNotFound
	}
	return nil
}

// RecordPatternOutcome folds n applications with s successes into the
// pattern's running success rate (simple ratio over total usage) and bumps
// its usage count.
func (db *DB) RecordPatternOutcome(tx *sql.Tx, id string, applied, succeeded int64) error {
	var rate float64
	var count int64
	err := tx.QueryRow(
		`SELECT success_rate, usage_count FROM patterns WHERE pattern_id = ?`, id,
	).Scan(&rate, &count)
	if err == sql.ErrNoRows {
		return ErrPatternNotFound
	}
	if err != nil {
		return fmt.Errorf("reading pattern %s: %w", id, err)
	}

	total := count + applied
	if total > 0 {
		rate = (rate*float64(count) + float64(succeeded)) / float64(total)
	}

	_, err = tx.Exec(
		`UPDATE patterns SET usage_count = ?, success_rate = ? WHERE pattern_id = ?`,
		total, rate, id,
	)
	if err != nil {
		return fmt.Errorf("updating pattern %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPattern(row rowScanner) (*pattern.Pattern, error) {
	var p pattern.Pattern
	var created int64
	err := row.Scan(&p.ID, &p.Code, &p.MatchExpr, &p.ReplaceExpr,
		&p.Description, &p.Confidence, &p.SuccessRate, &p.UsageCount, &created)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(created)
	return &p, nil
}

// ----- Violations -----

// InsertViolations persists the violations observed in a run.
func (db *DB) InsertViolations(tx *sql.Tx, runID string, violations []*parse.Violation) error {
	for _, v := range violations {
		var method any
		if v.CorrectionMethod != "" {
			method = v.CorrectionMethod
		}
		_, err := tx.Exec(
			`INSERT INTO violations (run_id, file_path, line_number, column_number, code,
			                         message, severity, correction_applied, correction_method, observed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, v.FilePath, v.Line, v.Column, v.Code,
			v.Message, string(v.Severity), boolToInt(v.CorrectionApplied), method, v.ObservedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("inserting violation: %w", err)
		}
	}
	return nil
}

// CountViolations returns the number of violations recorded for a run.
func (db *DB) CountViolations(runID string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM violations WHERE run_id = ?`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting violations: %w", err)
	}
	return n, nil
}

// ----- Correction history -----

// CorrectionEvent is one audit record of a per-file correction pass.
type CorrectionEvent struct {
	ID             int64
	RunID          string
	FilePath       string
	CorrectionType string
	BeforeContent  string
	AfterContent   string
	BeforeDigest   string
	AfterDigest    string
	DiffSummary    string
	PatternUsed    string
	Success        bool
	CreatedAt      time.Time
}

// InsertCorrectionEvent appends an audit record. Events are never updated
// or deleted.
func (db *DB) InsertCorrectionEvent(tx *sql.Tx, ev *CorrectionEvent) error {
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := tx.Exec(
		`INSERT INTO correction_history (run_id, file_path, correction_type, before_content,
		                                 after_content, before_digest, after_digest, diff_summary,
		                                 pattern_used, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.FilePath, ev.CorrectionType, ev.BeforeContent,
		ev.AfterContent, ev.BeforeDigest, ev.AfterDigest, ev.DiffSummary,
		ev.PatternUsed, boolToInt(ev.Success), created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting correction event: %w", err)
	}
	return nil
}

// ListCorrectionEvents returns the most recent audit records, newest first.
func (db *DB) ListCorrectionEvents(limit int) ([]*CorrectionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		`SELECT id, run_id, file_path, correction_type, before_content, after_content,
		        before_digest, after_digest, diff_summary, pattern_used, success, created_at
		 FROM correction_history ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying correction history: %w", err)
	}
	defer rows.Close()

	var events []*CorrectionEvent
	for rows.Next() {
		var ev CorrectionEvent
		var success int
		var created int64
		err := rows.Scan(&ev.ID, &ev.RunID, &ev.FilePath, &ev.CorrectionType,
			&ev.BeforeContent, &ev.AfterContent, &ev.BeforeDigest, &ev.AfterDigest,
			&ev.DiffSummary, &ev.PatternUsed, &success, &created)
		if err != nil {
			return nil, fmt.Errorf("scanning correction event: %w", err)
		}
		ev.Success = success != 0
		ev.CreatedAt = time.UnixMilli(created)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// ----- Runs -----

// RunRecord is the persisted form of a run summary.
type RunRecord struct {
	RunID           string
	Root            string
	Status          string
	StartedAt       time.Time
	FinishedAt      time.Time
	FilesScanned    int
	FilesSkipped    int
	ViolationsFound int
	ViolationsFixed int
	FailedFixes     int
	FilesModified   int
}

// InsertRun persists a finished run. One row per invocation, never updated.
func (db *DB) InsertRun(rec *RunRecord) error {
	_, err := db.conn.Exec(
		`INSERT INTO runs (run_id, root, status, started_at, finished_at, files_scanned,
		                   files_skipped, violations_found, violations_fixed, failed_fixes, files_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Root, rec.Status, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.FilesScanned, rec.FilesSkipped, rec.ViolationsFound, rec.ViolationsFixed,
		rec.FailedFixes, rec.FilesModified,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// ListRuns returns recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		`SELECT run_id, root, status, started_at, finished_at, files_scanned,
		        files_skipped, violations_found, violations_fixed, failed_fixes, files_modified
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var recs []*RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished int64
		err := rows.Scan(&rec.RunID, &rec.Root, &rec.Status, &started, &finished,
			&rec.FilesScanned, &rec.FilesSkipped, &rec.ViolationsFound,
			&rec.ViolationsFixed, &rec.FailedFixes, &rec.FilesModified)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
