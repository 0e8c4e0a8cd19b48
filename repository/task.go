package repository

import (
	"context"
	"time"

	"github.com/fastygo/tasktracker/domain"
)

// TimeRange is the half-open interval [From, Until).
type TimeRange struct {
	From  time.Time
	Until time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.Until)
}

// TaskFilter is the predicate for FindMany. Zero-valued fields match everything;
// set fields are ANDed.
type TaskFilter struct {
	AssignedTo    *domain.ID
	Status        domain.TaskStatus
	CreatedAt     *TimeRange
	UpdatedAt     *TimeRange
	TitleContains string
}

// SortField names a sortable task attribute.
type SortField string

const (
	SortByCreatedAt   SortField = "createdAt"
	SortByUpdatedAt   SortField = "updatedAt"
	SortByTitle       SortField = "title"
	SortByStatus      SortField = "status"
	SortByCompletedAt SortField = "completedAt"
)

func (f SortField) Valid() bool {
	switch f {
	case SortByCreatedAt, SortByUpdatedAt, SortByTitle, SortByStatus, SortByCompletedAt:
		return true
	}
	return false
}

type Sort struct {
	Field SortField
	Desc  bool
}

// Page is a window over the ordered result: skip Skip records, return at most Limit.
type Page struct {
	Skip  int
	Limit int
}

type TaskQuery struct {
	Filter TaskFilter
	Sort   Sort
	Page   Page
}

// TaskPatch lists the task fields that may change after creation. Nil fields are left alone.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	CompletedAt *time.Time
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.CompletedAt == nil
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, id domain.ID) (*domain.Task, error)
	// UpdateFields returns the number of matched records; 0 means the task does not exist.
	UpdateFields(ctx context.Context, id domain.ID, patch TaskPatch) (int64, error)
	// AssignIf sets the assignee only while the current assignee equals expected
	// (nil meaning unassigned) and returns the number of records written.
	AssignIf(ctx context.Context, id domain.ID, expected *domain.ID, assignee domain.ID) (int64, error)
	AppendComment(ctx context.Context, id domain.ID, comment domain.Comment) (int64, error)
	Delete(ctx context.Context, id domain.ID) error
	FindMany(ctx context.Context, query TaskQuery) ([]domain.Task, error)
	// AggregateMonthlyCompleted counts completed tasks assigned to userID with
	// completedAt >= since, one row per non-empty UTC (year, month).
	AggregateMonthlyCompleted(ctx context.Context, userID domain.ID, since time.Time) ([]domain.MonthlyCompleted, error)
}
