package auth

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"finmentor/internal/apperr"
)

// MaxChatHistory bounds the transcript kept on a session.
const MaxChatHistory = 20

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the per-login state of one user: identity plus streak, watchlist
// and mentor transcript. It is created by Manager.Create and dropped at
// logout or idle expiry.
type Session struct {
	Token    string
	UserID   int64
	Username string
	Created  time.Time

	mu        sync.Mutex
	lastSeen  time.Time
	streak    int
	watchlist []string
	recs      map[string]string
	history   []ChatMessage
	// played holds, per symbol, the hidden-bar date of the last scored round.
	played    map[string]time.Time
}

func (s *Session) Streak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streak
}

func (s *Session) SetStreak(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streak = max(0, n)
}

func (s *Session) ClaimRound(symbol string, day time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.played[symbol]; ok && !day.After(last) {
		return false
	}
	if s.played == nil {
		s.played = make(map[string]time.Time)
	}
	s.played[symbol] = day
	return true
}

func (s *Session) ReleaseRound(symbol string, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.played[symbol]; ok && last.Equal(day) {
		delete(s.played, symbol)
	}
}

func (s *Session) Watchlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.watchlist)
}

// AddWatch reports false when the symbol is already watched.
func (s *Session) AddWatch(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.watchlist, symbol) {
		return false
	}
	s.watchlist = append(s.watchlist, symbol)
	return true
}

func (s *Session) RemoveWatch(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.watchlist, symbol)
	if i < 0 {
		return false
	}
	s.watchlist = slices.Delete(s.watchlist, i, i+1)
	delete(s.recs, symbol)
	return true
}

func (s *Session) Recommendation(symbol string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recs[symbol]
	return r, ok
}

func (s *Session) SetRecommendation(symbol, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recs == nil {
		s.recs = make(map[string]string)
	}
	s.recs[symbol] = text
}

func (s *Session) ChatHistory() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Session) AppendChat(msgs ...ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
	if over := len(s.history) - MaxChatHistory; over > 0 {
		s.history = slices.Delete(s.history, 0, over)
	}
}

func (s *Session) ResetChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{sessions: make(map[string]*Session), ttl: ttl, now: time.Now}
}

func (m *Manager) Create(u User) *Session {
	now := m.now()
	s := &Session{
		Token:    uuid.NewString(),
		UserID:   u.ID,
		Username: u.Username,
		Created:  now,
		lastSeen: now,
	}
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return s
}

// Get returns an AuthError for unknown or idle-expired tokens and refreshes
// the idle timer otherwise.
func (m *Manager) Get(token string) (*Session, error) {
	if token == "" {
		return nil, apperr.Unauthorized("missing bearer token")
	}
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.Unauthorized("unknown session")
	}
	now := m.now()
	if now.Sub(s.idleSince()) > m.ttl {
		m.Destroy(token)
		return nil, apperr.Unauthorized("session expired")
	}
	s.touch(now)
	return s, nil
}

func (m *Manager) Destroy(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[token]
	delete(m.sessions, token)
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops idle sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.ttl {
			delete(m.sessions, token)
			n++
		}
	}
	return n
}

func (m *Manager) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
