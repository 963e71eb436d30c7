package auth

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finmentor/internal/apperr"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(ttl time.Duration) (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(ttl)
	m.now = clock.now
	return m, clock
}

func isAuthError(err error) bool {
	var ae *apperr.AuthError
	return errors.As(err, &ae)
}

func TestSessionLifecycle(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	s := m.Create(User{ID: 7, Username: "bob"})
	require.NotEmpty(t, s.Token)

	got, err := m.Get(s.Token)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, int64(7), got.UserID)

	assert.True(t, m.Destroy(s.Token))
	_, err = m.Get(s.Token)
	assert.True(t, isAuthError(err))
	assert.False(t, m.Destroy(s.Token))
}

func TestSessionTokensAreUnique(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	a := m.Create(User{ID: 1})
	b := m.Create(User{ID: 1})
	assert.NotEqual(t, a.Token, b.Token)
	assert.Equal(t, 2, m.Len())
}

func TestSessionIdleExpiry(t *testing.T) {
	m, clock := newTestManager(time.Hour)
	s := m.Create(User{ID: 1})

	clock.advance(50 * time.Minute)
	_, err := m.Get(s.Token)
	require.NoError(t, err)

	// Get refreshed the idle timer.
	clock.advance(50 * time.Minute)
	_, err = m.Get(s.Token)
	require.NoError(t, err)

	clock.advance(61 * time.Minute)
	_, err = m.Get(s.Token)
	assert.True(t, isAuthError(err))
	assert.Equal(t, 0, m.Len())
}

func TestSweep(t *testing.T) {
	m, clock := newTestManager(time.Hour)
	m.Create(User{ID: 1})
	m.Create(User{ID: 2})
	clock.advance(30 * time.Minute)
	fresh := m.Create(User{ID: 3})

	clock.advance(45 * time.Minute)
	assert.Equal(t, 2, m.Sweep())
	_, err := m.Get(fresh.Token)
	assert.NoError(t, err)
}

func TestMissingToken(t *testing.T) {
	m, _ := newTestManager(time.Hour)
	_, err := m.Get("")
	assert.True(t, isAuthError(err))
}

func TestSessionState(t *testing.T) {
	s := &Session{}
	s.SetStreak(3)
	assert.Equal(t, 3, s.Streak())
	s.SetStreak(-2)
	assert.Equal(t, 0, s.Streak())

	assert.True(t, s.AddWatch("AAPL"))
	assert.False(t, s.AddWatch("AAPL"))
	assert.True(t, s.AddWatch("MSFT"))
	s.SetRecommendation("AAPL", "hold")
	assert.Equal(t, []string{"AAPL", "MSFT"}, s.Watchlist())

	assert.True(t, s.RemoveWatch("AAPL"))
	_, ok := s.Recommendation("AAPL")
	assert.False(t, ok)
	assert.False(t, s.RemoveWatch("AAPL"))
}

func TestSessionClaimRound(t *testing.T) {
	s := &Session{}
	day := time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)
	assert.True(t, s.ClaimRound("AAPL", day))
	assert.False(t, s.ClaimRound("AAPL", day))
	assert.False(t, s.ClaimRound("AAPL", day.AddDate(0, 0, -1)))
	assert.True(t, s.ClaimRound("MSFT", day))
	assert.True(t, s.ClaimRound("AAPL", day.AddDate(0, 0, 1)))

	s.ReleaseRound("MSFT", day)
	assert.True(t, s.ClaimRound("MSFT", day))
}

func TestChatHistoryBounded(t *testing.T) {
	s := &Session{}
	for i := range MaxChatHistory + 7 {
		s.AppendChat(ChatMessage{Role: "user", Content: fmt.Sprint(i)})
	}
	h := s.ChatHistory()
	require.Len(t, h, MaxChatHistory)
	assert.Equal(t, "7", h[0].Content)
	assert.Equal(t, fmt.Sprint(MaxChatHistory+6), h[len(h)-1].Content)

	s.ResetChat()
	assert.Empty(t, s.ChatHistory())
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := &Session{}
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetStreak(i)
			s.AddWatch(fmt.Sprintf("S%d", i))
			s.AppendChat(ChatMessage{Role: "user", Content: "hi"})
		}()
	}
	wg.Wait()
	assert.Len(t, s.Watchlist(), 20)
	assert.Len(t, s.ChatHistory(), 20)
}
