// Package pattern defines rewrite rules and their selection order.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
)

var (
	ErrMissingID    = errors.New("pattern id is required")
	ErrMissingCode  = errors.New("pattern code is required")
	ErrMissingMatch = errors.New("pattern match expression is required")
	ErrBadRange     = errors.New("confidence and success rate must be in [0,1]")
)

// Pattern is a stored regex match-and-replace rule for one diagnostic code.
// Many patterns may target the same code; Select picks at most one per
// violation. The replacement expression uses Go regexp template syntax ($1).
type Pattern struct {
	ID          string    `yaml:"id"`
	Code        string    `yaml:"code"`
	MatchExpr   string    `yaml:"match"`
	ReplaceExpr string    `yaml:"replace"`
	Description string    `yaml:"description"`
	Confidence  float64   `yaml:"confidence"`
	SuccessRate float64   `yaml:"-"`
	UsageCount  int64     `yaml:"-"`
	CreatedAt   time.Time `yaml:"-"`
}

// Validate checks required fields and that the match expression compiles.
func (p *Pattern) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.Code == "" {
		return ErrMissingCode
	}
	if p.MatchExpr == "" {
		return ErrMissingMatch
	}
	if p.Confidence < 0 || p.Confidence > 1 || p.SuccessRate < 0 || p.SuccessRate > 1 {
		return ErrBadRange
	}
	if _, err := regexp.Compile(p.MatchExpr); err != nil {
		return fmt.Errorf("compiling match expression for %s: %w", p.ID, err)
	}
	return nil
}

// Select picks the pattern to apply among candidates for one code:
// highest confidence, ties broken by highest success rate, then newest,
// then lexically smallest id. Returns nil for an empty candidate list.
func Select(candidates []*Pattern) *Pattern {
	if len(candidates) == 0 {
		return nil
	}
	ordered := make([]*Pattern, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered[0]
}

// ByCode groups patterns by the diagnostic code they target.
func ByCode(patterns []*Pattern) map[string][]*Pattern {
	grouped := make(map[string][]*Pattern)
	for _, p := range patterns {
		grouped[p.Code] = append(grouped[p.Code], p)
	}
	return grouped
}
