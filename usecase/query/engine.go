// Package query turns list parameters into store queries and serves the
// monthly completion aggregate.
package query

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/logger"
	"github.com/fastygo/tasktracker/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 20

	dateLayout = "2006-01-02"
)

// Params is the raw list request. Nil and empty fields are absent.
type Params struct {
	Page        *int
	Size        *int
	SortBy      string
	Sort        string
	DateCreated string
	DateUpdated string
	User        string
	Status      string
	Search      string
}

type Option func(*Engine)

// WithLegacySkip makes page N skip N-1 records instead of (N-1)*size.
func WithLegacySkip(enabled bool) Option {
	return func(e *Engine) { e.legacySkip = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStatsCache caches MonthlyStats results per user.
func WithStatsCache(cache repository.StatsCache) Option {
	return func(e *Engine) { e.cache = cache }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

type Engine struct {
	tasks      repository.TaskRepository
	cache      repository.StatsCache
	legacySkip bool
	now        func() time.Time
	logger     *zap.Logger
	flight     singleflight.Group

	// mu orders cache fills against invalidations; gens counts invalidations per user.
	mu   sync.Mutex
	gens map[domain.ID]uint64
}

func NewEngine(tasks repository.TaskRepository, opts ...Option) *Engine {
	e := &Engine{
		tasks:  tasks,
		now:    time.Now,
		logger: zap.NewNop(),
		gens:   make(map[domain.ID]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Build validates p and translates it into a store query.
func (e *Engine) Build(p Params) (repository.TaskQuery, error) {
	var q repository.TaskQuery

	if p.User != "" {
		id, err := domain.ParseID(p.User)
		if err != nil {
			return q, err
		}
		q.Filter.AssignedTo = &id
	}
	if p.Status != "" {
		status := domain.TaskStatus(p.Status)
		if !status.Valid() {
			return q, invalid("status %q not recognised", p.Status)
		}
		q.Filter.Status = status
	}
	if p.DateCreated != "" {
		r, err := dayRange(p.DateCreated)
		if err != nil {
			return q, err
		}
		q.Filter.CreatedAt = &r
	}
	if p.DateUpdated != "" {
		r, err := dayRange(p.DateUpdated)
		if err != nil {
			return q, err
		}
		q.Filter.UpdatedAt = &r
	}
	q.Filter.TitleContains = strings.TrimSpace(p.Search)

	sort, err := parseSort(p.SortBy, p.Sort)
	if err != nil {
		return q, err
	}
	q.Sort = sort

	page, err := e.page(p.Page, p.Size)
	if err != nil {
		return q, err
	}
	q.Page = page
	return q, nil
}

// Find builds and runs the query.
func (e *Engine) Find(ctx context.Context, p Params) ([]domain.Task, error) {
	q, err := e.Build(p)
	if err != nil {
		return nil, err
	}
	return e.tasks.FindMany(ctx, q)
}

// MonthlyStats counts userID's completed tasks per calendar month over the last year.
func (e *Engine) MonthlyStats(ctx context.Context, userID domain.ID) ([]domain.MonthlyCompleted, error) {
	log := logger.WithContext(ctx, e.logger)

	if e.cache != nil {
		stats, ok, err := e.cache.Get(ctx, userID)
		if err != nil {
			log.Warn("stats cache read failed", zap.Error(err))
		} else if ok {
			return stats, nil
		}
	}

	v, err, _ := e.flight.Do(userID.String(), func() (interface{}, error) {
		gen := e.generation(userID)
		since := e.now().UTC().AddDate(-1, 0, 0)
		stats, err := e.tasks.AggregateMonthlyCompleted(ctx, userID, since)
		if err != nil {
			return nil, err
		}
		domain.SortBuckets(stats)
		if e.cache != nil {
			e.fill(ctx, log, userID, gen, stats)
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.MonthlyCompleted), nil
}

// Invalidate drops cached stats for users whose completions may have changed.
func (e *Engine) Invalidate(ctx context.Context, userIDs ...domain.ID) {
	if e.cache == nil || len(userIDs) == 0 {
		return
	}
	e.mu.Lock()
	for _, id := range userIDs {
		e.gens[id]++
		e.flight.Forget(id.String())
	}
	e.mu.Unlock()
	if err := e.cache.Invalidate(ctx, userIDs...); err != nil {
		logger.WithContext(ctx, e.logger).Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func (e *Engine) generation(userID domain.ID) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gens[userID]
}

// fill stores stats unless userID was invalidated after gen was read.
func (e *Engine) fill(ctx context.Context, log *zap.Logger, userID domain.ID, gen uint64, stats []domain.MonthlyCompleted) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gens[userID] != gen {
		log.Debug("stats changed during computation, skipping cache write")
		return
	}
	if err := e.cache.Set(ctx, userID, stats); err != nil {
		log.Warn("stats cache write failed", zap.Error(err))
	}
}

func (e *Engine) page(page, size *int) (repository.Page, error) {
	limit := DefaultPageSize
	if size != nil {
		if *size < 1 {
			return repository.Page{}, invalid("size must be at least 1")
		}
		limit = min(*size, MaxPageSize)
	}

	n := 1
	if page != nil {
		if *page < 1 {
			return repository.Page{}, invalid("page must be at least 1")
		}
		n = *page
	}

	skip := (n - 1) * limit
	if e.legacySkip {
		skip = n - 1
	}
	return repository.Page{Skip: skip, Limit: limit}, nil
}

func parseSort(field, direction string) (repository.Sort, error) {
	s := repository.Sort{Field: repository.SortByCreatedAt}
	if field != "" {
		s.Field = repository.SortField(field)
		if !s.Field.Valid() {
			return s, invalid("sortBy %q not supported", field)
		}
	}
	switch strings.ToLower(direction) {
	case "", "asc":
	case "desc":
		s.Desc = true
	default:
		return s, invalid("sort must be asc or desc")
	}
	return s, nil
}

// dayRange covers the UTC calendar day of raw, which is either YYYY-MM-DD or an RFC 3339 timestamp.
func dayRange(raw string) (repository.TimeRange, error) {
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		ts, tsErr := time.Parse(time.RFC3339, raw)
		if tsErr != nil {
			return repository.TimeRange{}, invalid("date %q must be YYYY-MM-DD", raw)
		}
		ts = ts.UTC()
		day = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	return repository.TimeRange{From: day, Until: day.AddDate(0, 0, 1)}, nil
}

func invalid(format string, args ...interface{}) error {
	return domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf(format, args...))
}
