// Package memory holds process-local implementations of the repository contracts.
// Every method locks the whole collection, which gives the same per-record
// atomicity the database engines provide and nothing more.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

// Option configures a memory repository.
type Option func(*clock)

type clock struct {
	now func() time.Time
}

// WithClock overrides the timestamp source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *clock) {
		if now != nil {
			c.now = now
		}
	}
}

func newClock(opts []Option) clock {
	c := clock{now: time.Now}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type TaskRepository struct {
	clock
	mu    sync.RWMutex
	tasks map[domain.ID]*domain.Task
	order []domain.ID
}

// NewTaskRepository returns an empty in-memory task store.
func NewTaskRepository(opts ...Option) *TaskRepository {
	return &TaskRepository{
		clock: newClock(opts),
		tasks: make(map[domain.ID]*domain.Task),
	}
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

// Create stores a copy of task. Timestamps already set on task are kept, which
// lets callers seed history.
func (r *TaskRepository) Create(_ context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := task.Clone()
	if stored.ID.IsZero() {
		stored.ID = domain.NewID()
	}
	if _, exists := r.tasks[stored.ID]; exists {
		return nil, domain.NewError(domain.ErrCodeConflict, "task already exists")
	}
	now := r.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	if stored.Comments == nil {
		stored.Comments = []domain.Comment{}
	}
	r.tasks[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	return stored.Clone(), nil
}

func (r *TaskRepository) GetByID(_ context.Context, id domain.ID) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task.Clone(), nil
}

func (r *TaskRepository) UpdateFields(_ context.Context, id domain.ID, patch repository.TaskPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return 0, nil
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.CompletedAt != nil {
		at := *patch.CompletedAt
		task.CompletedAt = &at
	}
	task.UpdatedAt = r.now()
	return 1, nil
}

func (r *TaskRepository) AssignIf(_ context.Context, id domain.ID, expected *domain.ID, assignee domain.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return 0, nil
	}
	current, assigned := task.Assignee()
	switch {
	case expected == nil && assigned:
		return 0, nil
	case expected != nil && (!assigned || current != *expected):
		return 0, nil
	}
	ref := domain.Reference(assignee)
	task.AssignedTo = &ref
	task.UpdatedAt = r.now()
	return 1, nil
}

func (r *TaskRepository) AppendComment(_ context.Context, id domain.ID, comment domain.Comment) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return 0, nil
	}
	comment.Author = domain.Reference(comment.Author.ID)
	task.Comments = append(task.Comments, comment)
	task.UpdatedAt = r.now()
	return 1, nil
}

func (r *TaskRepository) Delete(_ context.Context, id domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *TaskRepository) FindMany(_ context.Context, q repository.TaskQuery) ([]domain.Task, error) {
	r.mu.RLock()
	matched := make([]*domain.Task, 0, len(r.order))
	for _, id := range r.order {
		task := r.tasks[id]
		if matches(task, q.Filter) {
			matched = append(matched, task.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := compareTasks(a, b, q.Sort.Field); c != 0 {
			if q.Sort.Desc {
				return c > 0
			}
			return c < 0
		}
		// ties: oldest first, then by id
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})

	if q.Page.Skip >= len(matched) {
		return []domain.Task{}, nil
	}
	matched = matched[q.Page.Skip:]
	if q.Page.Limit > 0 && len(matched) > q.Page.Limit {
		matched = matched[:q.Page.Limit]
	}

	out := make([]domain.Task, 0, len(matched))
	for _, task := range matched {
		out = append(out, *task)
	}
	return out, nil
}

func (r *TaskRepository) AggregateMonthlyCompleted(_ context.Context, userID domain.ID, since time.Time) ([]domain.MonthlyCompleted, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type bucket struct{ year, month int }
	counts := make(map[bucket]int64)
	for _, task := range r.tasks {
		assignee, ok := task.Assignee()
		if !ok || assignee != userID || task.Status != domain.StatusCompleted || task.CompletedAt == nil {
			continue
		}
		if task.CompletedAt.Before(since) {
			continue
		}
		year, month := domain.BucketOf(*task.CompletedAt)
		counts[bucket{year, month}]++
	}

	out := make([]domain.MonthlyCompleted, 0, len(counts))
	for b, count := range counts {
		out = append(out, domain.MonthlyCompleted{Year: b.year, Month: b.month, Count: count})
	}
	domain.SortBuckets(out)
	return out, nil
}

func matches(task *domain.Task, f repository.TaskFilter) bool {
	if f.AssignedTo != nil {
		assignee, ok := task.Assignee()
		if !ok || assignee != *f.AssignedTo {
			return false
		}
	}
	if f.Status != "" && task.Status != f.Status {
		return false
	}
	if f.CreatedAt != nil && !f.CreatedAt.Contains(task.CreatedAt) {
		return false
	}
	if f.UpdatedAt != nil && !f.UpdatedAt.Contains(task.UpdatedAt) {
		return false
	}
	if f.TitleContains != "" && !strings.Contains(strings.ToLower(task.Title), strings.ToLower(f.TitleContains)) {
		return false
	}
	return true
}

func compareTasks(a, b *domain.Task, field repository.SortField) int {
	switch field {
	case repository.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case repository.SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case repository.SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case repository.SortByCompletedAt:
		// unset completion sorts first, like a null in ascending database order
		switch {
		case a.CompletedAt == nil && b.CompletedAt == nil:
			return 0
		case a.CompletedAt == nil:
			return -1
		case b.CompletedAt == nil:
			return 1
		}
		return a.CompletedAt.Compare(*b.CompletedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
