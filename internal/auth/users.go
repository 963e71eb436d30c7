package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserExists         = errors.New("username or email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
)

type User struct {
	ID                int64     `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	TutorialCompleted bool      `json:"tutorial_completed"`
	TutorialStep      int       `json:"tutorial_step"`
	CreatedAt         time.Time `json:"created_at"`
}

type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// UserStore is the credential store. Create returns ErrUserExists on a
// unique violation; lookups return ErrUserNotFound. Emails arrive
// lowercased and are compared exactly.
type UserStore interface {
	Create(ctx context.Context, in NewUser) (User, error)
	ByUsername(ctx context.Context, username string) (User, error)
	ByID(ctx context.Context, id int64) (User, error)
	// AdvanceTutorial moves the tutorial from step from to step to, only if
	// it is still at from and not completed. It reports whether this call
	// made the change.
	AdvanceTutorial(ctx context.Context, id int64, from, to int, completed bool) (bool, error)
}
