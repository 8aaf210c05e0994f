// Package config provides configuration for relint runs.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all run configuration.
type Config struct {
	// DataDir is the directory holding the relint database.
	DataDir string
	// Tool is the external linter binary to invoke per file.
	Tool string
	// ToolArgs are passed to the tool before the file path argument.
	ToolArgs []string
	// Extensions lists file extensions eligible for scanning (e.g. ".py").
	Extensions []string
	// Timeout is the per-file tool invocation timeout.
	Timeout time.Duration
	// SnippetCap truncates before/after audit snippets to this many bytes.
	SnippetCap int
	// Jobs bounds the scanner worker pool. Zero means auto.
	Jobs int
	// DryRun computes corrections without writing files or history.
	DryRun bool
	// Debug enables debug logging.
	Debug bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: ".relint",
		Tool:    "flake8",
		ToolArgs: []string{
			"--format=%(path)s:%(row)d:%(col)d: %(code)s %(text)s",
		},
		Extensions: []string{".py"},
		Timeout:    30 * time.Second,
		SnippetCap: 1000,
	}
}

// FromEnv creates a Config from environment variables, falling back to defaults.
func FromEnv() *Config {
	def := Default()
	cfg := &Config{
		DataDir:    getEnv("RELINT_DATA", def.DataDir),
		Tool:       getEnv("RELINT_TOOL", def.Tool),
		ToolArgs:   getEnvList("RELINT_TOOL_ARGS", def.ToolArgs),
		Extensions: getEnvList("RELINT_EXTENSIONS", def.Extensions),
		Timeout:    getEnvDuration("RELINT_TIMEOUT", def.Timeout),
		SnippetCap: getEnvInt("RELINT_SNIPPET_CAP", def.SnippetCap),
		Jobs:       getEnvInt("RELINT_JOBS", 0),
		Debug:      getEnvBool("RELINT_DEBUG", false),
	}
	return cfg
}

// DBPath returns the path of the SQLite database file.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "relint.db")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		return strings.Fields(val)
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
