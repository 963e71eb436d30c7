package auth

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"finmentor/internal/apperr"
	"finmentor/internal/progress"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,24}$`)

const (
	MinPasswordLen = 8
	// MaxPasswordLen is the longest input bcrypt accepts, in bytes.
	MaxPasswordLen = 72
)

type Service struct {
	users  UserStore
	cost   int
	notify progress.Notifier
	log    *slog.Logger
}

func NewService(users UserStore, bcryptCost int, notifier progress.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = progress.NotifierFunc(func(context.Context, progress.Celebration) {})
	}
	return &Service{users: users, cost: bcryptCost, notify: notifier, log: logger}
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm_password"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateRegister(in); err != nil {
		return User{}, err
	}

	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return User{}, err
	}
	u, err := s.users.Create(ctx, NewUser{Username: in.Username, Email: in.Email, PasswordHash: hash})
	if errors.Is(err, ErrUserExists) {
		return User{}, ErrUserExists
	}
	if err != nil {
		return User{}, apperr.Storage("create user", err)
	}
	s.log.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

func validateRegister(in RegisterInput) error {
	if !usernamePattern.MatchString(in.Username) {
		return apperr.Invalid("username", "must be 3-24 letters, digits or underscores")
	}
	if at := strings.Index(in.Email, "@"); at <= 0 || at == len(in.Email)-1 {
		return apperr.Invalid("email", "must be a valid email address")
	}
	if len(in.Password) < MinPasswordLen {
		return apperr.Invalid("password", "must be at least 8 characters")
	}
	if len(in.Password) > MaxPasswordLen {
		return apperr.Invalid("password", "must be at most 72 bytes")
	}
	if in.Password != in.Confirm {
		return apperr.Invalid("confirm_password", "passwords do not match")
	}
	return nil
}

func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.users.ByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, apperr.Storage("lookup user", err)
	}
	if !VerifyPassword(password, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) User(ctx context.Context, id int64) (User, error) {
	u, err := s.users.ByID(ctx, id)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return User{}, apperr.Storage("lookup user", err)
	}
	return u, err
}
