package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Tool != "flake8" {
		t.Errorf("tool: got %q", cfg.Tool)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout: got %v", cfg.Timeout)
	}
	if cfg.SnippetCap != 1000 {
		t.Errorf("snippet cap: got %d", cfg.SnippetCap)
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".py" {
		t.Errorf("extensions: got %v", cfg.Extensions)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("RELINT_DATA", "/tmp/relint-test")
	t.Setenv("RELINT_TOOL", "ruff")
	t.Setenv("RELINT_TOOL_ARGS", "check --output-format concise")
	t.Setenv("RELINT_EXTENSIONS", ".py .pyi")
	t.Setenv("RELINT_TIMEOUT", "45s")
	t.Setenv("RELINT_JOBS", "8")
	t.Setenv("RELINT_DEBUG", "true")

	cfg := FromEnv()
	if cfg.DataDir != "/tmp/relint-test" || cfg.Tool != "ruff" {
		t.Errorf("data=%q tool=%q", cfg.DataDir, cfg.Tool)
	}
	if len(cfg.ToolArgs) != 3 {
		t.Errorf("tool args: got %v", cfg.ToolArgs)
	}
	if len(cfg.Extensions) != 2 {
		t.Errorf("extensions: got %v", cfg.Extensions)
	}
	if cfg.Timeout != 45*time.Second || cfg.Jobs != 8 || !cfg.Debug {
		t.Errorf("timeout=%v jobs=%d debug=%v", cfg.Timeout, cfg.Jobs, cfg.Debug)
	}
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("RELINT_TIMEOUT", "not-a-duration")
	t.Setenv("RELINT_JOBS", "many")

	cfg := FromEnv()
	if cfg.Timeout != 30*time.Second {
		t.Errorf("timeout fallback: got %v", cfg.Timeout)
	}
	if cfg.Jobs != 0 {
		t.Errorf("jobs fallback: got %d", cfg.Jobs)
	}
}

func TestDBPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/relint"
	if got := cfg.DBPath(); got != "/var/lib/relint/relint.db" {
		t.Errorf("db path: got %q", got)
	}
}
