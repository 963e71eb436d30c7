package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresUsers struct {
	db *pgxpool.Pool
}

func NewPostgresUsers(db *pgxpool.Pool) *PostgresUsers {
	return &PostgresUsers{db: db}
}

const userColumns = `id, username, email, password_hash, tutorial_completed, tutorial_step, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.TutorialCompleted, &u.TutorialStep, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func (s *PostgresUsers) Create(ctx context.Context, in NewUser) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		in.Username, in.Email, in.PasswordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrUserExists
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresUsers) ByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *PostgresUsers) ByID(ctx context.Context, id int64) (User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresUsers) AdvanceTutorial(ctx context.Context, id int64, from, to int, completed bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET tutorial_step = $3, tutorial_completed = $4
		WHERE id = $1 AND tutorial_step = $2 AND NOT tutorial_completed
	`, id, from, to, completed)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.ByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
