package task

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/logger"
	"github.com/fastygo/tasktracker/repository"
	"github.com/fastygo/tasktracker/usecase/assignment"
	"github.com/fastygo/tasktracker/usecase/query"
)

// CreateInput carries the caller-supplied fields of a new task.
type CreateInput struct {
	Title       string
	Description string
	Type        domain.TaskType
	Attachments []string
}

// UpdateInput is a partial update. Nil fields are left alone.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
}

type UseCase struct {
	tasks       repository.TaskRepository
	users       repository.UserRepository
	coordinator *assignment.Coordinator
	engine      *query.Engine
	now         func() time.Time
	logger      *zap.Logger
}

func New(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	coordinator *assignment.Coordinator,
	engine *query.Engine,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tasks:       tasks,
		users:       users,
		coordinator: coordinator,
		engine:      engine,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the clock used for completion and comment timestamps.
func (uc *UseCase) WithClock(now func() time.Time) *UseCase {
	if now != nil {
		uc.now = now
	}
	return uc
}

func (uc *UseCase) CreateTask(ctx context.Context, caller domain.Identity, in CreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title and description are required")
	}
	taskType := in.Type
	if taskType == "" {
		taskType = domain.TypeFeature
	}
	if !taskType.Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "type not recognised")
	}

	created, err := uc.tasks.Create(ctx, &domain.Task{
		Title:       title,
		Description: description,
		Type:        taskType,
		Status:      domain.StatusBacklog,
		CreatedBy:   domain.Reference(caller.UserID),
		Attachments: in.Attachments,
	})
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx, uc.logger).Info("task created", zap.String("task_id", created.ID.String()))
	return created, nil
}

// GetTask returns the task with its creator, assignee and comment authors expanded.
func (uc *UseCase) GetTask(ctx context.Context, rawID string) (*domain.Task, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uc.expand(ctx, []*domain.Task{task}, true); err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks runs a filtered, sorted and paginated query with assignees and comment authors expanded.
func (uc *UseCase) ListTasks(ctx context.Context, params query.Params) ([]domain.Task, error) {
	tasks, err := uc.engine.Find(ctx, params)
	if err != nil {
		return nil, err
	}
	ptrs := make([]*domain.Task, len(tasks))
	for i := range tasks {
		ptrs[i] = &tasks[i]
	}
	if err := uc.expand(ctx, ptrs, false); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask applies in. Moving to COMPLETED stamps completedAt; no other
// transition touches it, so a reopened task keeps its last completion time.
func (uc *UseCase) UpdateTask(ctx context.Context, rawID string, in UpdateInput) (*domain.Task, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return nil, err
	}

	var patch repository.TaskPatch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "title must not be empty")
		}
		patch.Title = &title
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if description == "" {
			return nil, domain.NewError(domain.ErrCodeInvalid, "description must not be empty")
		}
		patch.Description = &description
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, domain.NewError(domain.ErrCodeInvalid, "status not recognised")
		}
		status := *in.Status
		patch.Status = &status
		if status == domain.StatusCompleted {
			at := uc.now().UTC()
			patch.CompletedAt = &at
		}
	}
	if patch.IsEmpty() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "nothing to update")
	}

	matched, err := uc.tasks.UpdateFields(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, domain.ErrTaskNotFound
	}

	updated, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if assignee, ok := updated.Assignee(); ok {
			uc.engine.Invalidate(ctx, assignee)
		}
		logger.WithContext(ctx, uc.logger).Info("task status changed",
			zap.String("task_id", id.String()),
			zap.String("status", string(*patch.Status)),
		)
	}
	return updated, nil
}

// AddComment appends a comment authored by the caller.
func (uc *UseCase) AddComment(ctx context.Context, caller domain.Identity, rawID, text string) (*domain.Task, error) {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "comment text is required")
	}

	matched, err := uc.tasks.AppendComment(ctx, id, domain.Comment{
		Text:      text,
		Author:    domain.Reference(caller.UserID),
		CreatedAt: uc.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, domain.ErrTaskNotFound
	}
	return uc.GetTask(ctx, rawID)
}

// AssignTask makes rawUserID the single assignee of rawTaskID.
func (uc *UseCase) AssignTask(ctx context.Context, rawTaskID, rawUserID string) (*assignment.Outcome, error) {
	outcome, err := uc.coordinator.Assign(ctx, rawTaskID, rawUserID)
	if outcome != nil {
		affected := []domain.ID{outcome.UserID}
		if outcome.PreviousUserID != nil {
			affected = append(affected, *outcome.PreviousUserID)
		}
		uc.engine.Invalidate(ctx, affected...)
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// DeleteTask removes the task after pulling it from its assignee's list.
// A missing task fails before any user record is touched.
func (uc *UseCase) DeleteTask(ctx context.Context, rawID string) error {
	id, err := domain.ParseID(rawID)
	if err != nil {
		return err
	}
	task, err := uc.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	assignee, assigned := task.Assignee()
	if assigned {
		if err := uc.coordinator.Unassign(ctx, id, assignee); err != nil {
			return err
		}
	}
	if err := uc.tasks.Delete(ctx, id); err != nil {
		return err
	}
	if assigned {
		uc.engine.Invalidate(ctx, assignee)
	}

	logger.WithContext(ctx, uc.logger).Info("task deleted", zap.String("task_id", id.String()))
	return nil
}

// MonthlyStats returns the caller's completions per month over the last year.
func (uc *UseCase) MonthlyStats(ctx context.Context, caller domain.Identity) ([]domain.MonthlyCompleted, error) {
	return uc.engine.MonthlyStats(ctx, caller.UserID)
}

// expand swaps user references for user summaries with a single lookup.
// References to users that no longer resolve stay as bare ids.
func (uc *UseCase) expand(ctx context.Context, tasks []*domain.Task, withCreator bool) error {
	seen := make(map[domain.ID]struct{})
	var ids []domain.ID
	want := func(id domain.ID) {
		if id.IsZero() {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, t := range tasks {
		if withCreator {
			want(t.CreatedBy.ID)
		}
		if id, ok := t.Assignee(); ok {
			want(id)
		}
		for _, c := range t.Comments {
			want(c.Author.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	users, err := uc.users.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[domain.ID]*domain.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	resolve := func(ref domain.Ref) domain.Ref {
		if u, ok := byID[ref.ID]; ok {
			return domain.Expanded(u)
		}
		return ref
	}

	for _, t := range tasks {
		if withCreator {
			t.CreatedBy = resolve(t.CreatedBy)
		}
		if t.AssignedTo != nil {
			ref := resolve(*t.AssignedTo)
			t.AssignedTo = &ref
		}
		for i := range t.Comments {
			t.Comments[i].Author = resolve(t.Comments[i].Author)
		}
	}
	return nil
}
