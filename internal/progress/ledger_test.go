package progress

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmentor/internal/apperr"
)

type recorder struct {
	mu  sync.Mutex
	got []Celebration
}

func (r *recorder) Notify(_ context.Context, c Celebration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c)
}

func (r *recorder) kinds(kind CelebrationKind) []Celebration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Celebration
	for _, c := range r.got {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func newTestLedger() (*Ledger, *MemoryStore, *recorder) {
	store := NewMemoryStore()
	rec := &recorder{}
	return NewLedger(store, rec, nil), store, rec
}

func play(t *testing.T, l *Ledger, userID int64, delta int64, correct bool, streak int) Outcome {
	t.Helper()
	out, err := l.Update(context.Background(), UpdateInput{
		UserID:      userID,
		GameName:    GamePricePrediction,
		PointsDelta: delta,
		Correct:     correct,
		Streak:      streak,
	})
	require.NoError(t, err)
	return out
}

func TestUpdateCountsCalls(t *testing.T) {
	l, _, _ := newTestLedger()
	pattern := []bool{true, false, true, true, false, false, true}
	var correct int64
	for _, c := range pattern {
		if c {
			correct++
		}
		play(t, l, 1, 10, c, 0)
	}

	sum, err := l.Summary(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sum.Games, 1)
	assert.Equal(t, int64(len(pattern)), sum.Games[0].Total)
	assert.Equal(t, correct, sum.Games[0].Correct)
}

func TestFirstUpdateCreatesRow(t *testing.T) {
	l, _, _ := newTestLedger()
	out := play(t, l, 7, 15, true, 1)
	assert.Equal(t, int64(15), out.Record.Points)
	assert.Equal(t, int64(1), out.Record.Total)
	assert.Equal(t, int64(1), out.Record.Correct)
	assert.Equal(t, 1, out.Record.HighestStreak)
}

func TestPointsFloorAtZero(t *testing.T) {
	l, _, _ := newTestLedger()
	play(t, l, 1, 3, true, 1)
	out := play(t, l, 1, -5, false, 0)
	assert.Equal(t, int64(0), out.Record.Points)
	assert.Equal(t, int64(-3), out.AppliedDelta)

	out = play(t, l, 1, -5, false, 0)
	assert.Equal(t, int64(0), out.Record.Points)
	assert.Equal(t, int64(0), out.AppliedDelta)
}

func TestHighestStreakNeverDecreases(t *testing.T) {
	l, _, _ := newTestLedger()
	streaks := []int{1, 2, 3, 0, 1, 0, 4, 2}
	prev := 0
	for _, s := range streaks {
		out := play(t, l, 1, 10, s > 0, s)
		assert.GreaterOrEqual(t, out.Record.HighestStreak, prev)
		prev = out.Record.HighestStreak
	}
	assert.Equal(t, 4, prev)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	l, _, _ := newTestLedger()
	for range 10 {
		play(t, l, 1, 10, true, 1)
	}

	again, err := l.Evaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, again)

	again, err = l.Evaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPredictionMasterAwardedOnce(t *testing.T) {
	l, _, rec := newTestLedger()
	var awarded []string
	for i := range 20 {
		out := play(t, l, 1, 1, i >= 2, 0)
		awarded = append(awarded, names(out.NewBadges)...)
	}
	assert.Equal(t, 1, countOf(awarded, "Prediction Master"))

	out := play(t, l, 1, 1, true, 0)
	assert.NotContains(t, names(out.NewBadges), "Prediction Master")

	var titles []string
	for _, c := range rec.kinds(CelebrateAchievement) {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, 1, countOf(titles, "🎓 Prediction Master"))
}

func countOf(items []string, want string) int {
	n := 0
	for _, s := range items {
		if s == want {
			n++
		}
	}
	return n
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	l, _, _ := newTestLedger()
	const workers = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Update(context.Background(), UpdateInput{
				UserID: 3, GameName: GamePricePrediction, PointsDelta: 10, Correct: true, Streak: 1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sum, err := l.Summary(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), sum.Totals.Points)
	assert.Equal(t, int64(workers), sum.Totals.Predictions)

	// One award per badge even when evaluations raced.
	seen := map[string]int{}
	for _, a := range sum.Achievements {
		seen[a.Name]++
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
}

func TestMilestoneFiresOncePerCrossing(t *testing.T) {
	l, _, rec := newTestLedger()

	out := play(t, l, 1, 90, true, 1)
	assert.Nil(t, out.Milestone)

	out = play(t, l, 1, 10, true, 2)
	require.NotNil(t, out.Milestone)
	assert.Equal(t, int64(100), out.Milestone.Reached)
	assert.Equal(t, int64(100), out.Milestone.Total)

	out = play(t, l, 1, 5, true, 3)
	assert.Nil(t, out.Milestone)

	milestones := rec.kinds(CelebrateMilestone)
	require.Len(t, milestones, 1)
	assert.Equal(t, "Congratulations on reaching 100 points!", milestones[0].Description)
}

func TestMilestoneUsesGlobalTotals(t *testing.T) {
	l, _, _ := newTestLedger()
	play(t, l, 1, 60, true, 1)
	_, err := l.Update(context.Background(), UpdateInput{UserID: 1, GameName: "quiz", PointsDelta: 50, Correct: true})
	require.NoError(t, err)

	sum, err := l.Summary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(110), sum.Totals.Points)
	assert.Len(t, sum.Games, 2)
	assert.Contains(t, achievementNames(sum.Achievements), "Market Novice")
}

func TestMilestoneNotMissedByConcurrentGames(t *testing.T) {
	l, _, rec := newTestLedger()
	const users = 20

	for u := int64(1); u <= users; u++ {
		_, err := l.Update(context.Background(), UpdateInput{UserID: u, GameName: GamePricePrediction, PointsDelta: 95})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for u := int64(1); u <= users; u++ {
		for _, game := range []string{GamePricePrediction, "quiz"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := l.Update(context.Background(), UpdateInput{UserID: u, GameName: game, PointsDelta: 10, Correct: true})
				assert.NoError(t, err)
			}()
		}
	}
	close(start)
	wg.Wait()

	perUser := map[int64]int{}
	for _, c := range rec.kinds(CelebrateMilestone) {
		assert.Equal(t, "Congratulations on reaching 100 points!", c.Description)
		perUser[c.UserID]++
	}
	for u := int64(1); u <= users; u++ {
		assert.Equal(t, 1, perUser[u], "user %d", u)
	}
}

func TestApplyReportsUserSums(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	res, err := store.Apply(ctx, UpdateInput{UserID: 1, GameName: GamePricePrediction, PointsDelta: 60})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Before)
	assert.Equal(t, int64(60), res.After)

	res, err = store.Apply(ctx, UpdateInput{UserID: 1, GameName: "quiz", PointsDelta: -80})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Delta)
	assert.Equal(t, int64(60), res.Before)
	assert.Equal(t, int64(60), res.After)
}

func achievementNames(as []Achievement) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.Name)
	}
	return out
}

func TestUpdateValidation(t *testing.T) {
	l, _, _ := newTestLedger()
	tests := []struct {
		name  string
		in    UpdateInput
		field string
	}{
		{name: "no user", in: UpdateInput{GameName: "g"}, field: "user_id"},
		{name: "blank game", in: UpdateInput{UserID: 1, GameName: "   "}, field: "game_name"},
		{name: "negative streak", in: UpdateInput{UserID: 1, GameName: "g", Streak: -1}, field: "streak"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Update(context.Background(), tc.in)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

type failingStore struct {
	*MemoryStore
	applyErr  error
	totalsErr error
}

func (f *failingStore) Apply(ctx context.Context, in UpdateInput) (Applied, error) {
	if f.applyErr != nil {
		return Applied{}, f.applyErr
	}
	return f.MemoryStore.Apply(ctx, in)
}

func (f *failingStore) Totals(ctx context.Context, userID int64) (Totals, error) {
	if f.totalsErr != nil {
		return Totals{}, f.totalsErr
	}
	return f.MemoryStore.Totals(ctx, userID)
}

func TestStorageFailureIsReported(t *testing.T) {
	cause := errors.New("connection reset")
	store := &failingStore{MemoryStore: NewMemoryStore(), applyErr: cause}
	l := NewLedger(store, nil, nil)

	_, err := l.Update(context.Background(), UpdateInput{UserID: 1, GameName: "g", PointsDelta: 10})
	var se *apperr.StorageError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, cause)

	recs, err := store.Records(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestEvaluationFailureKeepsCommittedWrite(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), totalsErr: errors.New("timeout")}
	l := NewLedger(store, nil, nil)

	out, err := l.Update(context.Background(), UpdateInput{UserID: 1, GameName: "g", PointsDelta: 10})
	var se *apperr.StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, int64(10), out.Record.Points)
}

func TestSummarySeriesEndsAtTotal(t *testing.T) {
	l, _, _ := newTestLedger()
	for _, d := range []int64{10, 15, -5, 20, 10, 10} {
		play(t, l, 1, d, d > 0, 0)
	}
	sum, err := l.Summary(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, sum.Series, 6)
	assert.Equal(t, int64(10), sum.Series[0].Points)
	assert.Equal(t, sum.Totals.Points, sum.Series[len(sum.Series)-1].Points)
	assert.Len(t, sum.Recent, 5)
	assert.Equal(t, int64(10), sum.Recent[0].PointsDelta)
	assert.Len(t, sum.Locked, len(Catalog())-len(sum.Achievements))
}
