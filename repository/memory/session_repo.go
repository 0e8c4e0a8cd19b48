package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

// SessionRepository keeps sessions in a map and treats expired entries as absent.
type SessionRepository struct {
	clock
	mu       sync.Mutex
	sessions map[string]domain.Session
	ttl      time.Duration
}

func NewSessionRepository(ttl time.Duration, opts ...Option) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{
		clock:    newClock(opts),
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
	}
}

var _ repository.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.IsExpired(r.now()) {
		delete(r.sessions, id)
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepository) Save(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *SessionRepository) Extend(_ context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok || session.IsExpired(r.now()) {
		return domain.ErrSessionNotFound
	}
	session.ExpiresAt = r.now().Add(ttl)
	r.sessions[id] = session
	return nil
}

// StatsCache keeps stats for ttl after they are set, mirroring the Redis cache.
type StatsCache struct {
	clock
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[domain.ID]statsEntry
}

type statsEntry struct {
	stats     []domain.MonthlyCompleted
	expiresAt time.Time
}

func NewStatsCache(ttl time.Duration, opts ...Option) *StatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsCache{
		clock:   newClock(opts),
		ttl:     ttl,
		entries: make(map[domain.ID]statsEntry),
	}
}

var _ repository.StatsCache = (*StatsCache)(nil)

func (c *StatsCache) Get(_ context.Context, userID domain.ID) ([]domain.MonthlyCompleted, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	return append([]domain.MonthlyCompleted(nil), entry.stats...), true, nil
}

func (c *StatsCache) Set(_ context.Context, userID domain.ID, stats []domain.MonthlyCompleted) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, id)
		}
	}
	c.entries[userID] = statsEntry{
		stats:     append([]domain.MonthlyCompleted{}, stats...),
		expiresAt: now.Add(c.ttl),
	}
	return nil
}

func (c *StatsCache) Invalidate(_ context.Context, userIDs ...domain.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.entries, id)
	}
	return nil
}
