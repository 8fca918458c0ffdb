package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mombo-site/mombo-api/internal/domain/ingredient"
)

type mapDictionary struct {
	byName  map[string]ingredient.Ingredient
	err     error
	lookups []string
}

func (d *mapDictionary) FindByName(_ context.Context, name string) (ingredient.Ingredient, bool, error) {
	d.lookups = append(d.lookups, name)
	if d.err != nil {
		return ingredient.Ingredient{}, false, d.err
	}
	ing, ok := d.byName[name]
	return ing, ok, nil
}

func testDictionary() *mapDictionary {
	return &mapDictionary{byName: map[string]ingredient.Ingredient{
		"향료":   {ID: 1, NameKr: "향료", Level: LevelSecond, Reason: "알레르기"},
		"파라벤":  {ID: 2, NameKr: "파라벤", Level: LevelFirst, Reason: "내분비"},
		"글리세린": {ID: 3, NameKr: "글리세린", Level: "3등급"},
		"정제수":  {ID: 4, NameKr: "정제수"},
	}}
}

func TestDistinctTerms(t *testing.T) {
	got := DistinctTerms([]string{" 향료 ", "향료", "", "  ", "향료", "정제수"})
	assert.Equal(t, []string{"향료", "정제수"}, got)
}

func TestMatcher_LooksUpEachTermOnce(t *testing.T) {
	dict := testDictionary()
	m := Matcher{Dictionary: dict}

	out, err := m.Match(context.Background(), []string{"향료", "향료", "없는성분", " 향료"})
	require.NoError(t, err)

	assert.Equal(t, []string{"향료", "없는성분"}, dict.lookups)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, 1, out.Counts[LevelSecond])
	assert.Equal(t, 0, out.Counts[LevelFirst])
	assert.Equal(t, 1, out.Counts.Total())
}

func TestMatcher_CountPolicies(t *testing.T) {
	terms := []string{"향료", "글리세린", "정제수"}

	all, err := (&Matcher{Dictionary: testDictionary(), Policy: CountAllLevels}).Match(context.Background(), terms)
	require.NoError(t, err)
	assert.Len(t, all.Matches, 3)
	assert.Equal(t, 1, all.Counts["3등급"])
	assert.Equal(t, 2, all.Counts.Total())

	tracked, err := (&Matcher{Dictionary: testDictionary(), Policy: CountTrackedLevels}).Match(context.Background(), terms)
	require.NoError(t, err)
	assert.Len(t, tracked.Matches, 3)
	assert.NotContains(t, tracked.Counts, "3등급")
	assert.Equal(t, 1, tracked.Counts.Total())
}

func TestMatcher_DictionaryError(t *testing.T) {
	dict := testDictionary()
	dict.err = errors.New("connection refused")

	_, err := (&Matcher{Dictionary: dict}).Match(context.Background(), []string{"향료"})
	require.ErrorIs(t, err, ErrDictionary)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		terms []string
		want  RiskLevel
	}{
		{"no terms", nil, RiskLow},
		{"only unrated", []string{"정제수", "글리세린"}, RiskLow},
		{"second level", []string{"향료", "글리세린"}, RiskMiddle},
		{"first level wins", []string{"향료", "파라벤"}, RiskHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&Matcher{Dictionary: testDictionary()}).Match(context.Background(), tt.terms)
			require.NoError(t, err)

			got := Aggregate(out)
			assert.Equal(t, tt.want, got.RiskLevel)
			assert.Contains(t, got.Counts, LevelFirst)
			assert.Contains(t, got.Counts, LevelSecond)
			assert.Contains(t, got.Counts, TotalKey)
		})
	}
}

func TestAggregate_SortsByLevelLabel(t *testing.T) {
	got := Aggregate(MatchOutcome{Matches: []Match{
		{ID: 9, Name: "b", Level: LevelSecond},
		{ID: 3, Name: "z", Level: ""},
		{ID: 2, Name: "a", Level: LevelSecond},
		{ID: 5, Name: "c", Level: LevelFirst},
	}})

	ids := make([]int64, 0, len(got.Matches))
	for _, m := range got.Matches {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{3, 5, 2, 9}, ids)
	assert.Equal(t, RiskLow, got.RiskLevel)
	assert.Equal(t, 0, got.Counts.Total())
}
