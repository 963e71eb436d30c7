package progress

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"finmentor/internal/apperr"
)

const recentEvents = 5

type Ledger struct {
	store  Store
	notify Notifier
	log    *slog.Logger
}

func NewLedger(store Store, notifier Notifier, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Ledger{store: store, notify: notifier, log: logger}
}

// Update records one game outcome and then evaluates achievements for the
// same user. A failed write leaves the ledger untouched; a failed evaluation
// after a committed write is reported but does not undo the write.
func (l *Ledger) Update(ctx context.Context, in UpdateInput) (Outcome, error) {
	in.GameName = strings.TrimSpace(in.GameName)
	if err := validateUpdate(in); err != nil {
		return Outcome{}, err
	}

	res, err := l.store.Apply(ctx, in)
	if err != nil {
		l.log.Error("progress update failed", "user_id", in.UserID, "game", in.GameName, "err", err)
		return Outcome{}, apperr.Storage("update progress", err)
	}
	out := Outcome{Record: res.Record, AppliedDelta: res.Delta}

	badges, totals, err := l.evaluate(ctx, in.UserID)
	if err != nil {
		return out, err
	}
	out.Totals = totals
	out.NewBadges = badges

	// The crossing is judged on the sums read inside Apply. Totals may
	// already include a concurrent update of another game.
	if reached, ok := crossedMilestone(res.Before, res.After); ok {
		out.Milestone = &Milestone{Reached: reached, Total: res.After}
		l.notify.Notify(ctx, Celebration{
			Kind:        CelebrateMilestone,
			UserID:      in.UserID,
			Title:       "Milestone Reached!",
			Description: "Congratulations on reaching " + strconv.FormatInt(reached, 10) + " points!",
			Points:      res.After,
		})
	}

	l.log.Info("progress updated",
		"user_id", in.UserID,
		"game", in.GameName,
		"applied_delta", res.Delta,
		"total_points", totals.Points,
		"new_badges", len(badges),
	)
	return out, nil
}

// Evaluate is safe to call repeatedly: a second call without an intervening
// update returns no badges.
func (l *Ledger) Evaluate(ctx context.Context, userID int64) ([]Badge, error) {
	if userID <= 0 {
		return nil, apperr.Invalid("user_id", "must be positive")
	}
	badges, _, err := l.evaluate(ctx, userID)
	return badges, err
}

func (l *Ledger) evaluate(ctx context.Context, userID int64) ([]Badge, Totals, error) {
	totals, err := l.store.Totals(ctx, userID)
	if err != nil {
		return nil, Totals{}, apperr.Storage("aggregate progress", err)
	}

	var awarded []Badge
	for _, b := range Candidates(totals) {
		inserted, err := l.store.AwardIfAbsent(ctx, userID, b.Name)
		if err != nil {
			return awarded, totals, apperr.Storage("award achievement", err)
		}
		if !inserted {
			continue
		}
		awarded = append(awarded, b)
		l.notify.Notify(ctx, Celebration{
			Kind:        CelebrateAchievement,
			UserID:      userID,
			Title:       b.Icon + " " + b.Name,
			Description: b.Description,
		})
	}
	return awarded, totals, nil
}

func (l *Ledger) Summary(ctx context.Context, userID int64) (Summary, error) {
	var out Summary
	totals, err := l.store.Totals(ctx, userID)
	if err != nil {
		return out, apperr.Storage("aggregate progress", err)
	}
	out.Totals = totals
	out.Accuracy, _ = totals.Accuracy()

	if out.Games, err = l.store.Records(ctx, userID); err != nil {
		return out, apperr.Storage("list progress", err)
	}
	if out.Achievements, err = l.store.Achievements(ctx, userID); err != nil {
		return out, apperr.Storage("list achievements", err)
	}
	earned := make(map[string]struct{}, len(out.Achievements))
	for _, a := range out.Achievements {
		earned[a.Name] = struct{}{}
	}
	for _, b := range Catalog() {
		if _, ok := earned[b.Name]; !ok {
			out.Locked = append(out.Locked, b)
		}
	}

	events, err := l.store.Events(ctx, userID, 500)
	if err != nil {
		return out, apperr.Storage("list events", err)
	}
	if len(events) > recentEvents {
		out.Recent = events[:recentEvents]
	} else {
		out.Recent = events
	}
	out.Series = cumulative(events, totals.Points)
	return out, nil
}

// cumulative rebuilds the points-over-time series from newest-first events,
// anchored so the last point equals the current total.
func cumulative(events []Event, total int64) []SeriesPoint {
	if len(events) == 0 {
		return nil
	}
	asc := make([]Event, len(events))
	for i, e := range events {
		asc[len(events)-1-i] = e
	}

	var window int64
	for _, e := range asc {
		window += e.PointsDelta
	}
	running := total - window
	out := make([]SeriesPoint, 0, len(asc))
	for _, e := range asc {
		running += e.PointsDelta
		out = append(out, SeriesPoint{At: e.CreatedAt, Points: running})
	}
	return out
}

func validateUpdate(in UpdateInput) error {
	if in.UserID <= 0 {
		return apperr.Invalid("user_id", "must be positive")
	}
	if in.GameName == "" {
		return apperr.Invalid("game_name", "is required")
	}
	if in.Streak < 0 {
		return apperr.Invalid("streak", "must not be negative")
	}
	return nil
}
