package analysis

import "sort"

// Assessment is the aggregated verdict for one request.
type Assessment struct {
	RiskLevel RiskLevel
	Counts    RiskCount
	Matches   []Match
}

// Aggregate derives the risk level from the counts and sorts the matches by
// level label. The first rule that applies wins: any 1등급 is high, else any
// 2등급 is middle, else low.
func Aggregate(outcome MatchOutcome) Assessment {
	counts := outcome.Counts
	if counts == nil {
		counts = NewRiskCount()
	}

	level := RiskLow
	switch {
	case counts[LevelFirst] > 0:
		level = RiskHigh
	case counts[LevelSecond] > 0:
		level = RiskMiddle
	}

	matches := make([]Match, len(outcome.Matches))
	copy(matches, outcome.Matches)
	// lexicographic on the label, not numeric
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Level != matches[j].Level {
			return matches[i].Level < matches[j].Level
		}
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].ID < matches[j].ID
	})

	return Assessment{RiskLevel: level, Counts: counts, Matches: matches}
}
