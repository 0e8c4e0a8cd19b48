package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

const taskColumns = `id, title, description, type, status, created_by, assigned_to, comments, attachments, completed_at, created_at, updated_at`

var sortColumns = map[repository.SortField]string{
	repository.SortByCreatedAt:   "created_at",
	repository.SortByUpdatedAt:   "updated_at",
	repository.SortByTitle:       `title COLLATE "C"`,
	repository.SortByStatus:      `status COLLATE "C"`,
	repository.SortByCompletedAt: "completed_at",
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id domain.ID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(r.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		return nil, domain.StoreFailure("task.get", err)
	}
	return task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	stored := task.Clone()
	if stored.ID.IsZero() {
		stored.ID = domain.NewID()
	}
	if stored.Attachments == nil {
		stored.Attachments = []string{}
	}

	comments, err := marshalComments(stored.Comments)
	if err != nil {
		return nil, domain.StoreFailure("task.create", err)
	}

	const query = `
	INSERT INTO tasks (id, title, description, type, status, created_by, assigned_to, comments, attachments, completed_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, COALESCE($11, NOW()), COALESCE($12, $11, NOW()))
	RETURNING created_at, updated_at
	`

	var completedAt interface{}
	if stored.CompletedAt != nil {
		completedAt = *stored.CompletedAt
	}

	if err := r.pool.QueryRow(ctx, query,
		stored.ID.String(),
		stored.Title,
		stored.Description,
		string(stored.Type),
		string(stored.Status),
		stored.CreatedBy.ID.String(),
		nullID(stored.AssigneeID()),
		comments,
		stored.Attachments,
		completedAt,
		nullTime(stored.CreatedAt),
		nullTime(stored.UpdatedAt),
	).Scan(&stored.CreatedAt, &stored.UpdatedAt); err != nil {
		return nil, domain.StoreFailure("task.create", err)
	}

	if stored.Comments == nil {
		stored.Comments = []domain.Comment{}
	}
	return stored, nil
}

func (r *taskRepository) UpdateFields(ctx context.Context, id domain.ID, patch repository.TaskPatch) (int64, error) {
	sets := make([]string, 0, 5)
	args := []interface{}{id.String()}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.CompletedAt != nil {
		set("completed_at", *patch.CompletedAt)
	}
	sets = append(sets, "updated_at = NOW()")

	query := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, domain.StoreFailure("task.update", err)
	}
	return tag.RowsAffected(), nil
}

func (r *taskRepository) AssignIf(ctx context.Context, id domain.ID, expected *domain.ID, assignee domain.ID) (int64, error) {
	query := `UPDATE tasks SET assigned_to = $2, updated_at = NOW() WHERE id = $1 AND assigned_to IS NULL`
	args := []interface{}{id.String(), assignee.String()}
	if expected != nil {
		query = `UPDATE tasks SET assigned_to = $2, updated_at = NOW() WHERE id = $1 AND assigned_to = $3`
		args = append(args, expected.String())
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, domain.StoreFailure("task.assign", err)
	}
	return tag.RowsAffected(), nil
}

func (r *taskRepository) AppendComment(ctx context.Context, id domain.ID, comment domain.Comment) (int64, error) {
	payload, err := marshalComments([]domain.Comment{comment})
	if err != nil {
		return 0, domain.StoreFailure("task.comment", err)
	}

	const query = `UPDATE tasks SET comments = comments || $2::jsonb, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id.String(), payload)
	if err != nil {
		return 0, domain.StoreFailure("task.comment", err)
	}
	return tag.RowsAffected(), nil
}

func (r *taskRepository) Delete(ctx context.Context, id domain.ID) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id.String())
	if err != nil {
		return domain.StoreFailure("task.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) FindMany(ctx context.Context, q repository.TaskQuery) ([]domain.Task, error) {
	where, args := buildTaskWhere(q.Filter)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + taskColumns + ` FROM tasks`)
	if len(where) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(where, ` AND `))
	}
	sb.WriteString(` ORDER BY ` + orderClause(q.Sort))
	if q.Page.Limit > 0 {
		args = append(args, q.Page.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if q.Page.Skip > 0 {
		args = append(args, q.Page.Skip)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, domain.StoreFailure("task.find", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, domain.StoreFailure("task.find", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("task.find", err)
	}
	return tasks, nil
}

func buildTaskWhere(f repository.TaskFilter) ([]string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, values ...interface{}) {
		placeholders := make([]interface{}, 0, len(values))
		for _, v := range values {
			args = append(args, v)
			placeholders = append(placeholders, len(args))
		}
		where = append(where, fmt.Sprintf(clause, placeholders...))
	}

	if f.AssignedTo != nil {
		add("assigned_to = $%d", f.AssignedTo.String())
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.CreatedAt != nil {
		add("created_at >= $%d AND created_at < $%d", f.CreatedAt.From, f.CreatedAt.Until)
	}
	if f.UpdatedAt != nil {
		add("updated_at >= $%d AND updated_at < $%d", f.UpdatedAt.From, f.UpdatedAt.Until)
	}
	if f.TitleContains != "" {
		add(`title ILIKE $%d ESCAPE '\'`, "%"+escapeLike(f.TitleContains)+"%")
	}
	return where, args
}

// orderClause places NULL completion stamps first in ascending order, matching the other engines.
func orderClause(s repository.Sort) string {
	column, ok := sortColumns[s.Field]
	if !ok {
		column = "created_at"
	}
	direction := "ASC NULLS FIRST"
	if s.Desc {
		direction = "DESC NULLS LAST"
	}
	return column + " " + direction + ", created_at ASC, id ASC"
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		taskType    string
		status      string
		createdBy   string
		assignedTo  *string
		comments    []byte
		attachments []string
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&taskType,
		&status,
		&createdBy,
		&assignedTo,
		&comments,
		&attachments,
		&task.CompletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.Type = domain.TaskType(taskType)
	task.Status = domain.TaskStatus(status)
	task.CreatedBy = domain.Reference(domain.ID(createdBy))
	if assignedTo != nil {
		ref := domain.Reference(domain.ID(*assignedTo))
		task.AssignedTo = &ref
	}
	parsed, err := unmarshalComments(comments)
	if err != nil {
		return nil, err
	}
	task.Comments = parsed
	task.Attachments = attachments

	return &task, nil
}
