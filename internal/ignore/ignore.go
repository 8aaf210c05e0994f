// Package ignore filters the file tree before scanning, gitignore style.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type rule struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool
}

// Matcher holds compiled ignore rules. Later rules override earlier ones
// via negation, like git.
type Matcher struct {
	rules []rule
}

// NewMatcher returns an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Add parses one ignore line. Blank lines and # comments are dropped.
func (m *Matcher) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	}
	// Bare names match at any depth unless anchored.
	if !r.anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}
	r.pattern = line
	m.rules = append(m.rules, r)
}

// AddAll parses multiple ignore lines in order.
func (m *Matcher) AddAll(lines []string) {
	for _, line := range lines {
		m.Add(line)
	}
}

// LoadFile loads rules from an ignore file. A missing file is fine.
func (m *Matcher) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.Add(scanner.Text())
	}
	return scanner.Err()
}

// Match reports whether path (relative, slash or OS separators) is ignored.
func (m *Matcher) Match(path string, isDir bool) bool {
	path = strings.TrimPrefix(filepath.ToSlash(path), "./")

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			// A file is covered when any parent directory matches.
			if matchParent(r.pattern, path) {
				ignored = !r.negated
			}
			continue
		}
		if matchPath(r.pattern, path) {
			ignored = !r.negated
		}
	}
	return ignored
}

func matchPath(pattern, path string) bool {
	if ok, _ := doublestar.Match(pattern, path); ok {
		return true
	}
	// "build" also covers "build/sub/file.py".
	if !strings.HasSuffix(pattern, "/**") {
		if ok, _ := doublestar.Match(pattern+"/**", path); ok {
			return true
		}
	}
	return false
}

func matchParent(pattern, path string) bool {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		if matchPath(pattern, strings.Join(parts[:i], "/")) {
			return true
		}
	}
	return false
}

// Defaults are directories and files no linter run should descend into.
var Defaults = []string{
	".git/",
	".hg/",
	".svn/",
	".relint/",
	"__pycache__/",
	".mypy_cache/",
	".pytest_cache/",
	".ruff_cache/",
	".tox/",
	".nox/",
	"venv/",
	".venv/",
	"env/",
	"site-packages/",
	"node_modules/",
	"build/",
	"dist/",
	"*.egg-info/",
	"*.pyc",
	"*.pyo",
	"*.sqlite*",
	"*.db-shm",
	"*.db-wal",
}

// LoadFromDir builds a matcher for a scan root: defaults, then .gitignore,
// then .relintignore (which takes precedence).
func LoadFromDir(dir string) (*Matcher, error) {
	m := NewMatcher()
	m.AddAll(Defaults)
	if err := m.LoadFile(filepath.Join(dir, ".gitignore")); err != nil {
		return nil, err
	}
	if err := m.LoadFile(filepath.Join(dir, ".relintignore")); err != nil {
		return nil, err
	}
	return m, nil
}
