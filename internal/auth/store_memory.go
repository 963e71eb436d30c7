package auth

import (
	"context"
	"sync"
	"time"
)

type MemoryUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{byID: make(map[int64]User)}
}

func (m *MemoryUsers) Create(_ context.Context, in NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == in.Username || u.Email == in.Email {
			return User{}, ErrUserExists
		}
	}
	m.nextID++
	u := User{
		ID:           m.nextID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *MemoryUsers) ByUsername(_ context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (m *MemoryUsers) ByID(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUsers) AdvanceTutorial(_ context.Context, id int64, from, to int, completed bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return false, ErrUserNotFound
	}
	if u.TutorialCompleted || u.TutorialStep != from {
		return false, nil
	}
	u.TutorialStep = to
	u.TutorialCompleted = completed
	m.byID[id] = u
	return true, nil
}
