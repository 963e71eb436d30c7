package db

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		tutorial_completed BOOLEAN NOT NULL DEFAULT false,
		tutorial_step INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS game_progress (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		game_name TEXT NOT NULL,
		points BIGINT NOT NULL DEFAULT 0,
		correct_predictions BIGINT NOT NULL DEFAULT 0,
		total_predictions BIGINT NOT NULL DEFAULT 0,
		highest_streak INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, game_name)
	)`,
	`CREATE TABLE IF NOT EXISTS achievements (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		achievement_name TEXT NOT NULL,
		achieved_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, achievement_name)
	)`,
	`CREATE TABLE IF NOT EXISTS game_events (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		game_name TEXT NOT NULL,
		points_delta BIGINT NOT NULL,
		was_correct BOOLEAN NOT NULL,
		streak INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))`,
	`CREATE INDEX IF NOT EXISTS game_events_user_created_idx ON game_events (user_id, created_at DESC)`,
}
