package analysis

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CountPolicy selects which levels contribute to RiskCount.
type CountPolicy int

const (
	// CountAllLevels counts every non-empty level.
	CountAllLevels CountPolicy = iota
	// CountTrackedLevels counts only TrackedLevels; other levels still
	// appear in the match list.
	CountTrackedLevels
)

// MatchOutcome is what the matcher hands to the aggregator.
type MatchOutcome struct {
	Matches []Match
	Counts  RiskCount
}

// Matcher looks corrected terms up in the dictionary.
type Matcher struct {
	Dictionary Dictionary
	Policy     CountPolicy
}

// Match deduplicates terms and looks each distinct one up exactly.
// Misses are dropped silently.
func (m *Matcher) Match(ctx context.Context, terms []string) (MatchOutcome, error) {
	out := MatchOutcome{Matches: []Match{}, Counts: NewRiskCount()}
	seenIngredient := make(map[int64]bool)

	for _, term := range DistinctTerms(terms) {
		ing, found, err := m.Dictionary.FindByName(ctx, term)
		if err != nil {
			return MatchOutcome{}, fmt.Errorf("%w: lookup %q: %v", ErrDictionary, term, err)
		}
		if !found || seenIngredient[ing.ID] {
			continue
		}
		seenIngredient[ing.ID] = true
		out.Matches = append(out.Matches, Match{
			ID:     ing.ID,
			Name:   ing.NameKr,
			Level:  ing.Level,
			Reason: ing.Reason,
		})
		out.Counts.add(ing.Level, m.Policy)
	}
	return out, nil
}

// DistinctTerms trims and NFC-normalizes terms, drops empties and keeps the
// first occurrence of each.
func DistinctTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = norm.NFC.String(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NewRiskCount returns a count with every tracked level at zero.
func NewRiskCount() RiskCount {
	c := RiskCount{TotalKey: 0}
	for _, l := range TrackedLevels {
		c[l] = 0
	}
	return c
}

func (c RiskCount) add(level string, policy CountPolicy) {
	if level == "" || level == TotalKey {
		return
	}
	if policy == CountTrackedLevels && !isTracked(level) {
		return
	}
	c[level]++
	c[TotalKey]++
}

func isTracked(level string) bool {
	for _, l := range TrackedLevels {
		if l == level {
			return true
		}
	}
	return false
}
