// Package main provides the relint CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"relint/internal/config"
	"relint/internal/logging"
	"relint/internal/pattern"
	"relint/internal/run"
	"relint/internal/scan"
	"relint/internal/store"
)

// Version is the current relint CLI version.
var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:     "relint",
	Short:   "relint - database-driven lint violation corrector",
	Long:    `relint runs an external linter over a file tree, matches each diagnostic against a store of correction patterns, rewrites the flagged lines, and records every correction in a local SQLite database.`,
	Version: Version,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the relint database and seed built-in patterns",
	RunE:  runInit,
}

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Scan, fix, and record violations under a path",
	Long: `Run one full correction pass: discover source files, invoke the
configured linter per file, apply the best stored pattern to each
violation, and persist violations, corrections, and pattern outcomes.

Examples:
  relint run                # current directory
  relint run src/           # specific tree
  relint run --dry-run      # report without writing
  relint run --json         # machine-readable summary`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan only: report violations without fixing anything",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Pattern store commands",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored correction patterns",
	RunE:  runPatternsList,
}

var patternsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add one correction pattern",
	Long: `Add a pattern to the store. The match expression is applied to the
single line a violation points at; the replacement may use $1-style
capture references.

Example:
  relint patterns add --id E711_is_none --code E711 \
    --match '^(.*?)\s*==\s*None(.*)$' --replace '$1 is None$2' \
    --confidence 0.85`,
	RunE: runPatternsAdd,
}

var patternsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import patterns from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsImport,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent correction events",
	RunE:  runHistory,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent run summaries",
	RunE:  runRuns,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the relint version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("relint %s\n", Version)
	},
}

var (
	dryRunFlag     bool
	jsonFlag       bool
	toolFlag       string
	timeoutFlag    time.Duration
	jobsFlag       int
	debugFlag      bool
	limitFlag      int
	addID          string
	addCode        string
	addMatch       string
	addReplace     string
	addDescription string
	addConfidence  float64
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Compute corrections without writing files or history")
	runCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output the run summary as JSON")
	runCmd.Flags().StringVar(&toolFlag, "tool", "", "Linter binary to invoke (default from config)")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Per-file tool timeout (default from config)")
	runCmd.Flags().IntVar(&jobsFlag, "jobs", 0, "Scanner worker pool size (default: auto)")

	scanCmd.Flags().BoolVar(&jsonFlag, "json", false, "Output violations as JSON")
	scanCmd.Flags().StringVar(&toolFlag, "tool", "", "Linter binary to invoke (default from config)")
	scanCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Per-file tool timeout (default from config)")

	patternsAddCmd.Flags().StringVar(&addID, "id", "", "Unique pattern id (required)")
	patternsAddCmd.Flags().StringVar(&addCode, "code", "", "Diagnostic code the pattern corrects (required)")
	patternsAddCmd.Flags().StringVar(&addMatch, "match", "", "Regular expression matched against the flagged line (required)")
	patternsAddCmd.Flags().StringVar(&addReplace, "replace", "", "Replacement expression")
	patternsAddCmd.Flags().StringVar(&addDescription, "desc", "", "Human-readable description")
	patternsAddCmd.Flags().Float64Var(&addConfidence, "confidence", 0.5, "Selection confidence in [0,1]")

	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of events to show")
	runsCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Number of runs to show")

	patternsCmd.AddCommand(patternsListCmd, patternsAddCmd, patternsImportCmd)
	rootCmd.AddCommand(initCmd, runCmd, scanCmd, patternsCmd, historyCmd, runsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg := config.FromEnv()
	if toolFlag != "" {
		cfg.Tool = toolFlag
		// A custom tool keeps its own output format.
		cfg.ToolArgs = nil
	}
	if timeoutFlag > 0 {
		cfg.Timeout = timeoutFlag
	}
	if jobsFlag > 0 {
		cfg.Jobs = jobsFlag
	}
	cfg.DryRun = dryRunFlag
	cfg.Debug = debugFlag
	return cfg
}

func openStore(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", cfg.DBPath(), err)
	}
	return db, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	inserted, err := db.SeedPatterns(pattern.Seeds())
	if err != nil {
		return fmt.Errorf("seeding patterns: %w", err)
	}

	fmt.Printf("Initialized relint database at %s\n", cfg.DBPath())
	if inserted > 0 {
		fmt.Printf("Seeded %d built-in patterns\n", inserted)
	} else {
		fmt.Println("Built-in patterns already present")
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg := loadConfig()
	log, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sum, runErr := run.New(cfg, db, log).Run(cmd.Context(), root)

	if jsonFlag {
		out, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printSummary(sum)
	}

	return runErr
}

func printSummary(sum *run.Summary) {
	fmt.Printf("Run %s: %s\n", sum.RunID, sum.State)
	if sum.DryRun {
		fmt.Println("  (dry run: nothing written)")
	}
	fmt.Printf("  Files scanned:    %d (%d skipped)\n", sum.FilesScanned, sum.FilesSkipped)
	fmt.Printf("  Violations found: %d\n", sum.ViolationsFound)
	fmt.Printf("  Fixed:            %d\n", sum.ViolationsFixed)
	fmt.Printf("  Failed:           %d\n", sum.FailedFixes)
	fmt.Printf("  No pattern:       %d\n", sum.NoPattern)
	fmt.Printf("  Files modified:   %d\n", len(sum.FilesModified))
	for _, path := range sum.FilesModified {
		fmt.Printf("    %s\n", path)
	}
	fmt.Printf("  Duration:         %.2fs\n", sum.DurationSeconds)
	if sum.Error != "" {
		fmt.Printf("  Error: %s\n", sum.Error)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg := loadConfig()
	log, err := logging.New(cfg.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	scanner := scan.New(scan.Options{
		Tool:       cfg.Tool,
		Args:       cfg.ToolArgs,
		Extensions: cfg.Extensions,
		Timeout:    cfg.Timeout,
		Jobs:       cfg.Jobs,
	}, log)
	res, err := scanner.Scan(cmd.Context(), root)
	if err != nil {
		return err
	}

	if jsonFlag {
		out, err := json.MarshalIndent(res.Violations, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	for _, v := range res.Violations {
		fmt.Printf("%s:%d:%d: %s %s [%s]\n",
			v.FilePath, v.Line, v.Column, v.Code, v.Message, v.Severity)
	}
	fmt.Printf("%d violations in %d files (%d skipped)\n",
		len(res.Violations), res.FilesScanned, res.FilesSkipped)
	return nil
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	patterns, err := db.ListPatterns()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tCONFIDENCE\tSUCCESS\tUSED\tDESCRIPTION")
	for _, p := range patterns {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%d\t%s\n",
			p.ID, p.Code, p.Confidence, p.SuccessRate, p.UsageCount, p.Description)
	}
	return w.Flush()
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	p := &pattern.Pattern{
		ID:          addID,
		Code:        addCode,
		MatchExpr:   addMatch,
		ReplaceExpr: addReplace,
		Description: addDescription,
		Confidence:  addConfidence,
	}
	if err := db.InsertPattern(p); err != nil {
		return err
	}
	fmt.Printf("Added pattern %s for %s\n", p.ID, p.Code)
	return nil
}

func runPatternsImport(cmd *cobra.Command, args []string) error {
	patterns, err := pattern.LoadFile(args[0])
	if err != nil {
		return err
	}

	cfg := loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	added := 0
	for _, p := range patterns {
		if err := db.InsertPattern(p); err != nil {
			if err == store.ErrPatternExists {
				fmt.Printf("Skipping %s: already exists\n", p.ID)
				continue
			}
			return fmt.Errorf("importing %s: %w", p.ID, err)
		}
		added++
	}
	fmt.Printf("Imported %d of %d patterns from %s\n", added, len(patterns), args[0])
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListCorrectionEvents(limitFlag)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No correction history")
		return nil
	}

	for _, ev := range events {
		status := "ok"
		if !ev.Success {
			status = "FAILED"
		}
		fmt.Printf("%s  %s  %s  [%s] patterns=%s %s  %s\n",
			ev.CreatedAt.Format("2006-01-02 15:04:05"),
			shortID(ev.RunID), ev.FilePath, ev.CorrectionType,
			ev.PatternUsed, ev.DiffSummary, status)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(limitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tSCANNED\tFOUND\tFIXED\tFAILED\tMODIFIED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			shortID(r.RunID), r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
			r.FilesScanned, r.ViolationsFound, r.ViolationsFixed,
			r.FailedFixes, r.FilesModified)
	}
	return w.Flush()
}

// shortID safely truncates an id string to 8 characters.
func shortID(s string) string {
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}
