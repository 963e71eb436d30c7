package progress

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Apply serializes concurrent updates of the same user on the user's row
// lock, so the before and after sums cannot interleave with an update of
// another game. The zero progress row is created under that lock.
func (s *PostgresStore) Apply(ctx context.Context, in UpdateInput) (Applied, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Applied{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `SELECT id FROM users WHERE id = $1 FOR NO KEY UPDATE`, in.UserID)
	if err != nil {
		return Applied{}, fmt.Errorf("lock user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO game_progress (user_id, game_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, game_name) DO NOTHING
	`, in.UserID, in.GameName)
	if err != nil {
		return Applied{}, fmt.Errorf("ensure progress row: %w", err)
	}

	var prevPoints, before int64
	err = tx.QueryRow(ctx, `
		SELECT points
		FROM game_progress
		WHERE user_id = $1 AND game_name = $2
		FOR UPDATE
	`, in.UserID, in.GameName).Scan(&prevPoints)
	if err != nil {
		return Applied{}, fmt.Errorf("lock progress row: %w", err)
	}
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM game_progress WHERE user_id = $1
	`, in.UserID).Scan(&before)
	if err != nil {
		return Applied{}, fmt.Errorf("sum progress: %w", err)
	}

	correct := int64(0)
	if in.Correct {
		correct = 1
	}
	rec := Record{UserID: in.UserID, GameName: in.GameName}
	err = tx.QueryRow(ctx, `
		UPDATE game_progress
		SET points = GREATEST(0, points + $3),
		    correct_predictions = correct_predictions + $4,
		    total_predictions = total_predictions + 1,
		    highest_streak = GREATEST(highest_streak, $5),
		    updated_at = now()
		WHERE user_id = $1 AND game_name = $2
		RETURNING points, correct_predictions, total_predictions, highest_streak, updated_at
	`, in.UserID, in.GameName, in.PointsDelta, correct, in.Streak).Scan(
		&rec.Points, &rec.Correct, &rec.Total, &rec.HighestStreak, &rec.UpdatedAt,
	)
	if err != nil {
		return Applied{}, fmt.Errorf("update progress row: %w", err)
	}

	applied := rec.Points - prevPoints
	_, err = tx.Exec(ctx, `
		INSERT INTO game_events (user_id, game_name, points_delta, was_correct, streak)
		VALUES ($1, $2, $3, $4, $5)
	`, in.UserID, in.GameName, applied, in.Correct, in.Streak)
	if err != nil {
		return Applied{}, fmt.Errorf("append game event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Applied{}, fmt.Errorf("commit progress: %w", err)
	}
	return Applied{Record: rec, Delta: applied, Before: before, After: before + applied}, nil
}

func (s *PostgresStore) Totals(ctx context.Context, userID int64) (Totals, error) {
	var t Totals
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0),
		       COALESCE(SUM(correct_predictions), 0),
		       COALESCE(SUM(total_predictions), 0),
		       COALESCE(MAX(highest_streak), 0)
		FROM game_progress
		WHERE user_id = $1
	`, userID).Scan(&t.Points, &t.Correct, &t.Predictions, &t.MaxStreak)
	return t, err
}

func (s *PostgresStore) AwardIfAbsent(ctx context.Context, userID int64, name string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO achievements (user_id, achievement_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id, achievement_name) DO NOTHING
	`, userID, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Records(ctx context.Context, userID int64) ([]Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, game_name, points, correct_predictions, total_predictions, highest_streak, updated_at
		FROM game_progress
		WHERE user_id = $1
		ORDER BY game_name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.UserID, &r.GameName, &r.Points, &r.Correct, &r.Total, &r.HighestStreak, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Achievements(ctx context.Context, userID int64) ([]Achievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT achievement_name, achieved_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY achieved_at, achievement_name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Achievement
	for rows.Next() {
		var a Achievement
		if err := rows.Scan(&a.Name, &a.AchievedAt); err != nil {
			return nil, err
		}
		if b, ok := LookupBadge(a.Name); ok {
			a.Badge = b
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Events(ctx context.Context, userID int64, limit int) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT game_name, points_delta, was_correct, streak, created_at
		FROM game_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.GameName, &e.PointsDelta, &e.Correct, &e.Streak, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
