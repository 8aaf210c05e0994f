package pattern

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// patternFile is the on-disk import format (relint.patterns.yaml).
type patternFile struct {
	Patterns []*Pattern `yaml:"patterns"`
}

// LoadFile reads user-supplied patterns from a YAML file. Every entry must
// validate; a single bad entry rejects the whole file so a partial import
// never goes unnoticed.
func LoadFile(path string) ([]*Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}

	var doc patternFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing pattern file: %w", err)
	}

	for _, p := range doc.Patterns {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p.ID, err)
		}
	}
	return doc.Patterns, nil
}
