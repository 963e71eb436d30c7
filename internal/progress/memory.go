package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

type recordKey struct {
	userID int64
	game   string
}

// MemoryStore keeps progress in process. It backs tests and local runs
// without a database; one mutex makes every Apply atomic.
type MemoryStore struct {
	mu           sync.Mutex
	records      map[recordKey]*Record
	achievements map[int64]map[string]time.Time
	events       map[int64][]Event
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:      make(map[recordKey]*Record),
		achievements: make(map[int64]map[string]time.Time),
		events:       make(map[int64][]Event),
		now:          time.Now,
	}
}

func (m *MemoryStore) Apply(ctx context.Context, in UpdateInput) (Applied, error) {
	if err := ctx.Err(); err != nil {
		return Applied{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var before int64
	for key, rec := range m.records {
		if key.userID == in.UserID {
			before += rec.Points
		}
	}

	key := recordKey{in.UserID, in.GameName}
	rec, ok := m.records[key]
	if !ok {
		rec = &Record{UserID: in.UserID, GameName: in.GameName}
		m.records[key] = rec
	}
	prev := rec.Points
	rec.Points = max(0, rec.Points+in.PointsDelta)
	if in.Correct {
		rec.Correct++
	}
	rec.Total++
	rec.HighestStreak = max(rec.HighestStreak, in.Streak)
	rec.UpdatedAt = m.now()

	applied := rec.Points - prev
	m.events[in.UserID] = append(m.events[in.UserID], Event{
		GameName:    in.GameName,
		PointsDelta: applied,
		Correct:     in.Correct,
		Streak:      in.Streak,
		CreatedAt:   rec.UpdatedAt,
	})
	return Applied{Record: *rec, Delta: applied, Before: before, After: before + applied}, nil
}

func (m *MemoryStore) Totals(ctx context.Context, userID int64) (Totals, error) {
	if err := ctx.Err(); err != nil {
		return Totals{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var t Totals
	for key, rec := range m.records {
		if key.userID != userID {
			continue
		}
		t.Points += rec.Points
		t.Correct += rec.Correct
		t.Predictions += rec.Total
		t.MaxStreak = max(t.MaxStreak, rec.HighestStreak)
	}
	return t, nil
}

func (m *MemoryStore) AwardIfAbsent(ctx context.Context, userID int64, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	earned, ok := m.achievements[userID]
	if !ok {
		earned = make(map[string]time.Time)
		m.achievements[userID] = earned
	}
	if _, exists := earned[name]; exists {
		return false, nil
	}
	earned[name] = m.now()
	return true, nil
}

func (m *MemoryStore) Records(ctx context.Context, userID int64) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for key, rec := range m.records {
		if key.userID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameName < out[j].GameName })
	return out, nil
}

func (m *MemoryStore) Achievements(ctx context.Context, userID int64) ([]Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Achievement
	for name, at := range m.achievements[userID] {
		b, ok := LookupBadge(name)
		if !ok {
			b = Badge{Name: name}
		}
		out = append(out, Achievement{Badge: b, AchievedAt: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AchievedAt.Equal(out[j].AchievedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].AchievedAt.Before(out[j].AchievedAt)
	})
	return out, nil
}

func (m *MemoryStore) Events(ctx context.Context, userID int64, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.events[userID]
	out := make([]Event, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
