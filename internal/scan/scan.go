// Package scan walks a file tree and runs the external linter per file.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"relint/internal/ignore"
	"relint/internal/parse"
)

var ErrRootNotFound = errors.New("scan root does not exist")

// Options configure a scanner.
type Options struct {
	// Tool is the linter binary; it is invoked as `tool args... <file>`.
	Tool string
	// Args are passed before the file path.
	Args []string
	// Extensions restrict which files are scanned (e.g. ".py").
	Extensions []string
	// Timeout bounds each per-file tool invocation.
	Timeout time.Duration
	// Jobs bounds the worker pool; zero picks min(4, NumCPU).
	Jobs int
}

// Result aggregates one scan pass.
type Result struct {
	// Violations across all files, ordered by file then line.
	Violations []*parse.Violation
	// FilesScanned counts files the tool ran to completion on.
	FilesScanned int
	// FilesSkipped counts files dropped by timeout or invocation failure.
	FilesSkipped int
	// ParseSkips counts tool output lines that did not match the grammar.
	ParseSkips int
}

// Scanner discovers candidate files and collects their violations.
type Scanner struct {
	opts Options
	log  *zap.SugaredLogger
}

// New creates a scanner.
func New(opts Options, log *zap.SugaredLogger) *Scanner {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
		if opts.Jobs > 4 {
			opts.Jobs = 4
		}
	}
	return &Scanner{opts: opts, log: log}
}

// Discover enumerates candidate files under root, honoring the ignore
// matcher and the extension filter. Paths come back sorted.
func (s *Scanner) Discover(root string) ([]string, error) {
	matcher, err := ignore.LoadFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("loading ignore rules: %w", err)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return ErrRootNotFound
			}
			s.log.Warnw("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.Match(rel, false) {
			return nil
		}
		if !s.wantExtension(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) wantExtension(path string) bool {
	if len(s.opts.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, want := range s.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

type fileResult struct {
	violations []*parse.Violation
	parseSkips int
	skipped    bool
}

// Scan runs the tool over every candidate file with a bounded worker pool
// and returns the merged result. Per-file failures degrade to skips; only
// a missing root is fatal.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	files, err := s.Discover(root)
	if err != nil {
		return nil, err
	}

	// One slot per file keeps the merged output deterministic regardless
	// of worker scheduling.
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Jobs)
	for i, file := range files {
		g.Go(func() error {
			results[i] = s.scanFile(gctx, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, fr := range results {
		if fr.skipped {
			res.FilesSkipped++
			continue
		}
		res.FilesScanned++
		res.ParseSkips += fr.parseSkips
		res.Violations = append(res.Violations, fr.violations...)
	}
	return res, nil
}

func (s *Scanner) scanFile(ctx context.Context, file string) fileResult {
	cctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	args := append(append([]string{}, s.opts.Args...), file)
	cmd := exec.CommandContext(cctx, s.opts.Tool, args...)
	out, err := cmd.Output()

	if cctx.Err() == context.DeadlineExceeded {
		s.log.Warnw("tool timed out", "file", file, "timeout", s.opts.Timeout)
		return fileResult{skipped: true}
	}

	if err == nil {
		// Exit 0 means clean, whatever the tool printed.
		return fileResult{}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		s.log.Warnw("tool invocation failed", "file", file, "error", err)
		return fileResult{skipped: true}
	}

	// Non-zero exit with output means violations; without output it is a
	// tool failure.
	text := strings.ToValidUTF8(string(out), "�")
	if strings.TrimSpace(text) == "" {
		s.log.Warnw("tool exited non-zero with no output", "file", file, "error", err)
		return fileResult{skipped: true}
	}

	violations, skips := parse.ParseOutput(text)
	if skips > 0 {
		s.log.Debugw("unparseable tool output lines", "file", file, "count", skips)
	}
	return fileResult{violations: violations, parseSkips: skips}
}
