package repository

import (
	"context"
	"time"

	"github.com/fastygo/tasktracker/domain"
)

type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttl time.Duration) error
}

// StatsCache keeps computed monthly completion stats per user.
type StatsCache interface {
	Get(ctx context.Context, userID domain.ID) ([]domain.MonthlyCompleted, bool, error)
	Set(ctx context.Context, userID domain.ID, stats []domain.MonthlyCompleted) error
	Invalidate(ctx context.Context, userIDs ...domain.ID) error
}
