package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(badges []Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.Name)
	}
	return out
}

func TestCandidatesHighestTierWins(t *testing.T) {
	tests := []struct {
		name   string
		totals Totals
		want   []string
	}{
		{name: "nothing yet", totals: Totals{}, want: []string{}},
		{name: "first hundred", totals: Totals{Points: 100, Predictions: 9}, want: []string{"Market Novice"}},
		{name: "exact maven threshold", totals: Totals{Points: 2500}, want: []string{"Market Maven"}},
		{name: "just below maven", totals: Totals{Points: 2499}, want: []string{"Trading Pro"}},
		{name: "legend", totals: Totals{Points: 9000}, want: []string{"Market Legend"}},
		{name: "streak family", totals: Totals{MaxStreak: 10}, want: []string{"Hot Streak Master"}},
		{name: "activity family", totals: Totals{Predictions: 50, Correct: 10}, want: []string{"Dedicated Analyst"}},
		{
			name:   "all families at once",
			totals: Totals{Points: 1200, Correct: 85, Predictions: 100, MaxStreak: 25},
			want:   []string{"Trading Pro", "Market Oracle", "Legendary Streak", "Market Veteran"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, names(Candidates(tc.totals)))
		})
	}
}

func TestCandidatesAtMostOnePerFamily(t *testing.T) {
	got := Candidates(Totals{Points: 2500, Correct: 20, Predictions: 20, MaxStreak: 20})
	seen := map[string]int{}
	for _, b := range got {
		seen[b.Family]++
	}
	for family, n := range seen {
		assert.Equal(t, 1, n, family)
	}
	assert.NotContains(t, names(got), "Trading Pro")
	assert.NotContains(t, names(got), "Market Expert")
}

func TestAccuracyNeedsMinimumSample(t *testing.T) {
	// 19 out of 19 would qualify on ratio alone.
	got := Candidates(Totals{Correct: 19, Predictions: 19})
	for _, b := range got {
		assert.NotEqual(t, FamilyAccuracy, b.Family)
	}

	got = Candidates(Totals{Correct: 18, Predictions: 20})
	assert.Contains(t, names(got), "Prediction Master")

	got = Candidates(Totals{Correct: 17, Predictions: 20})
	assert.Contains(t, names(got), "Market Oracle")
	assert.NotContains(t, names(got), "Prediction Master")
}

func TestAccuracyZeroPredictions(t *testing.T) {
	_, ok := Totals{}.Accuracy()
	assert.False(t, ok)
	assert.Empty(t, Candidates(Totals{Correct: 0, Predictions: 0}))
}

func TestCandidatesDeterministic(t *testing.T) {
	in := Totals{Points: 640, Correct: 33, Predictions: 41, MaxStreak: 7}
	first := Candidates(in)
	for range 10 {
		require.Equal(t, first, Candidates(in))
	}
}

func TestCatalogLookup(t *testing.T) {
	all := Catalog()
	require.Len(t, all, 14)
	for _, b := range all {
		got, ok := LookupBadge(b.Name)
		require.True(t, ok, b.Name)
		assert.Equal(t, b, got)
	}
	_, ok := LookupBadge("Nope")
	assert.False(t, ok)
}

func TestCrossedMilestone(t *testing.T) {
	tests := []struct {
		before, after int64
		want          int64
		ok            bool
	}{
		{before: 90, after: 100, want: 100, ok: true},
		{before: 100, after: 105, ok: false},
		{before: 0, after: 95, ok: false},
		{before: 180, after: 320, want: 300, ok: true},
		{before: 120, after: 95, ok: false},
		{before: 199, after: 200, want: 200, ok: true},
	}
	for _, tc := range tests {
		got, ok := crossedMilestone(tc.before, tc.after)
		assert.Equal(t, tc.ok, ok, "%d -> %d", tc.before, tc.after)
		assert.Equal(t, tc.want, got, "%d -> %d", tc.before, tc.after)
	}
}
