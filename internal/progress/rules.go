package progress

const (
	FamilyPoints   = "points"
	FamilyAccuracy = "accuracy"
	FamilyStreak   = "streak"
	FamilyActivity = "activity"

	// MinAccuracySample is the number of predictions below which accuracy
	// badges are not considered at all.
	MinAccuracySample = 20

	MilestoneStep = 100
)

type tier struct {
	min   int64
	badge Badge
}

// Accuracy thresholds are ratios num/den compared in integers so that
// 18/20 meets 0.9 exactly.
type ratioTier struct {
	num, den int64
	badge    Badge
}

// Every table is ordered by descending threshold; the first match wins and
// no lower tier of the same family is proposed.
var pointTiers = []tier{
	{5000, Badge{Name: "Market Legend", Family: FamilyPoints, Icon: "👑", Description: "Earned 5000 total points."}},
	{2500, Badge{Name: "Market Maven", Family: FamilyPoints, Icon: "🏆", Description: "Earned 2500 total points."}},
	{1000, Badge{Name: "Trading Pro", Family: FamilyPoints, Icon: "📈", Description: "Earned 1000 total points."}},
	{500, Badge{Name: "Market Expert", Family: FamilyPoints, Icon: "💹", Description: "Earned 500 total points."}},
	{100, Badge{Name: "Market Novice", Family: FamilyPoints, Icon: "🎯", Description: "Earned your first 100 points."}},
}

var accuracyTiers = []ratioTier{
	{9, 10, Badge{Name: "Prediction Master", Family: FamilyAccuracy, Icon: "🎓", Description: "90% prediction accuracy over at least 20 predictions."}},
	{8, 10, Badge{Name: "Market Oracle", Family: FamilyAccuracy, Icon: "🔮", Description: "80% prediction accuracy over at least 20 predictions."}},
	{7, 10, Badge{Name: "Analysis Expert", Family: FamilyAccuracy, Icon: "🔍", Description: "70% prediction accuracy over at least 20 predictions."}},
}

var streakTiers = []tier{
	{20, Badge{Name: "Legendary Streak", Family: FamilyStreak, Icon: "🌟", Description: "20 correct predictions in a row."}},
	{10, Badge{Name: "Hot Streak Master", Family: FamilyStreak, Icon: "🔥", Description: "10 correct predictions in a row."}},
	{5, Badge{Name: "Momentum Builder", Family: FamilyStreak, Icon: "⚡", Description: "5 correct predictions in a row."}},
}

var activityTiers = []tier{
	{100, Badge{Name: "Market Veteran", Family: FamilyActivity, Icon: "🏅", Description: "Made 100 predictions."}},
	{50, Badge{Name: "Dedicated Analyst", Family: FamilyActivity, Icon: "📊", Description: "Made 50 predictions."}},
	{10, Badge{Name: "Getting Started", Family: FamilyActivity, Icon: "🚀", Description: "Made 10 predictions."}},
}

// Candidates is the pure rule engine: the same totals always yield the same
// badges, at most one per family, in family order.
func Candidates(t Totals) []Badge {
	var out []Badge
	if b, ok := highest(t.Points, pointTiers); ok {
		out = append(out, b)
	}
	if t.Predictions >= MinAccuracySample {
		for _, r := range accuracyTiers {
			if t.Correct*r.den >= t.Predictions*r.num {
				out = append(out, r.badge)
				break
			}
		}
	}
	if b, ok := highest(int64(t.MaxStreak), streakTiers); ok {
		out = append(out, b)
	}
	if b, ok := highest(t.Predictions, activityTiers); ok {
		out = append(out, b)
	}
	return out
}

// Catalog lists every badge that can be earned.
func Catalog() []Badge {
	var out []Badge
	for _, t := range pointTiers {
		out = append(out, t.badge)
	}
	for _, t := range accuracyTiers {
		out = append(out, t.badge)
	}
	for _, t := range streakTiers {
		out = append(out, t.badge)
	}
	for _, t := range activityTiers {
		out = append(out, t.badge)
	}
	return out
}

func LookupBadge(name string) (Badge, bool) {
	for _, b := range Catalog() {
		if b.Name == name {
			return b, true
		}
	}
	return Badge{}, false
}

func highest(value int64, tiers []tier) (Badge, bool) {
	for _, t := range tiers {
		if value >= t.min {
			return t.badge, true
		}
	}
	return Badge{}, false
}

// crossedMilestone reports the highest multiple of MilestoneStep passed when
// the total moved from before to after.
func crossedMilestone(before, after int64) (int64, bool) {
	if after < MilestoneStep || after <= before {
		return 0, false
	}
	reached := (after / MilestoneStep) * MilestoneStep
	if before >= reached {
		return 0, false
	}
	return reached, true
}
