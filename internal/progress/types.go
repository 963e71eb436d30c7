package progress

import (
	"context"
	"time"
)

const GamePricePrediction = "price_prediction"

type Record struct {
	UserID        int64     `json:"user_id"`
	GameName      string    `json:"game_name"`
	Points        int64     `json:"points"`
	Correct       int64     `json:"correct_predictions"`
	Total         int64     `json:"total_predictions"`
	HighestStreak int       `json:"highest_streak"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Totals aggregates every Record of one user. Achievements are evaluated
// against these global figures, never against a single game.
type Totals struct {
	Points      int64 `json:"total_points"`
	Correct     int64 `json:"total_correct"`
	Predictions int64 `json:"total_predictions"`
	MaxStreak   int   `json:"max_streak"`
}

func (t Totals) Accuracy() (float64, bool) {
	if t.Predictions <= 0 {
		return 0, false
	}
	return float64(t.Correct) / float64(t.Predictions), true
}

type UpdateInput struct {
	UserID      int64
	GameName    string
	PointsDelta int64
	Correct     bool
	// Streak is the caller's current session streak.
	Streak int
}

type Badge struct {
	Name        string `json:"name"`
	Family      string `json:"family"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type Achievement struct {
	Badge
	AchievedAt time.Time `json:"achieved_at"`
}

type Event struct {
	GameName    string    `json:"game_name"`
	PointsDelta int64     `json:"points_delta"`
	Correct     bool      `json:"correct"`
	Streak      int       `json:"streak"`
	CreatedAt   time.Time `json:"created_at"`
}

type SeriesPoint struct {
	At     time.Time `json:"at"`
	Points int64     `json:"points"`
}

type Milestone struct {
	Reached int64 `json:"reached"`
	Total   int64 `json:"total"`
}

type Outcome struct {
	Record       Record     `json:"record"`
	AppliedDelta int64      `json:"applied_delta"`
	Totals       Totals     `json:"totals"`
	NewBadges    []Badge    `json:"new_badges"`
	Milestone    *Milestone `json:"milestone,omitempty"`
}

type Summary struct {
	Totals       Totals        `json:"totals"`
	Accuracy     float64       `json:"accuracy"`
	Games        []Record      `json:"games"`
	Achievements []Achievement `json:"achievements"`
	Locked       []Badge       `json:"locked"`
	Recent       []Event       `json:"recent"`
	Series       []SeriesPoint `json:"series"`
}

// Applied is the result of one Store.Apply. Before and After are the user's
// points summed over all games, read under the same lock as the write.
type Applied struct {
	Record Record
	Delta  int64
	Before int64
	After  int64
}

type Store interface {
	// Apply performs the read-then-write increment of one (user, game) row
	// and appends the matching event, atomically. Updates of the same user
	// are serialized even across games. Delta is the change actually applied
	// after flooring points at zero.
	Apply(ctx context.Context, in UpdateInput) (Applied, error)
	Totals(ctx context.Context, userID int64) (Totals, error)
	// AwardIfAbsent reports whether the achievement row was inserted by this
	// call.
	AwardIfAbsent(ctx context.Context, userID int64, name string) (bool, error)
	Records(ctx context.Context, userID int64) ([]Record, error)
	Achievements(ctx context.Context, userID int64) ([]Achievement, error)
	// Events returns at most limit events, newest first.
	Events(ctx context.Context, userID int64, limit int) ([]Event, error)
}

type CelebrationKind string

const (
	CelebrateAchievement CelebrationKind = "achievement"
	CelebrateMilestone   CelebrationKind = "milestone"
	CelebrateTutorial    CelebrationKind = "tutorial"
)

type Celebration struct {
	Kind        CelebrationKind `json:"kind"`
	UserID      int64           `json:"user_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Points      int64           `json:"points,omitempty"`
}

// Notifier is fire-and-forget: implementations must not block the caller
// for long and have no way to report failure back.
type Notifier interface {
	Notify(ctx context.Context, c Celebration)
}

type NotifierFunc func(ctx context.Context, c Celebration)

func (f NotifierFunc) Notify(ctx context.Context, c Celebration) { f(ctx, c) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Celebration) {}
