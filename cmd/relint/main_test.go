package main

import (
	"testing"
	"time"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "relint" {
		t.Errorf("expected Use 'relint', got %q", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("Short description should not be empty")
	}
	if !rootCmd.HasSubCommands() {
		t.Error("root should have subcommands")
	}
}

func TestCommandWiring(t *testing.T) {
	if initCmd.RunE == nil || runCmd.RunE == nil || scanCmd.RunE == nil {
		t.Error("leaf commands must set RunE")
	}
	if !patternsCmd.HasSubCommands() {
		t.Error("patterns should have subcommands")
	}
	if patternsCmd.RunE != nil {
		t.Error("patterns group should not run directly")
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	defer func() {
		toolFlag = ""
		timeoutFlag = 0
		jobsFlag = 0
		dryRunFlag = false
	}()

	toolFlag = "pylint"
	timeoutFlag = 5 * time.Second
	jobsFlag = 2
	dryRunFlag = true

	cfg := loadConfig()
	if cfg.Tool != "pylint" {
		t.Errorf("tool: got %q", cfg.Tool)
	}
	if len(cfg.ToolArgs) != 0 {
		t.Errorf("custom tool must clear default args, got %v", cfg.ToolArgs)
	}
	if cfg.Timeout != 5*time.Second || cfg.Jobs != 2 || !cfg.DryRun {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abcdefghijkl"); got != "abcdefgh" {
		t.Errorf("shortID: got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID short input: got %q", got)
	}
}
