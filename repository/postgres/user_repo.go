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

const userColumns = `id, first_name, last_name, email, password_hash, image, role, assigned_tasks, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.ErrInvalidPayload
	}
	stored := *user
	stored.Email = domain.NormalizeEmail(user.Email)
	if stored.ID.IsZero() {
		stored.ID = domain.NewID()
	}
	if stored.AssignedTasks == nil {
		stored.AssignedTasks = []domain.ID{}
	}

	const query = `
	INSERT INTO users (id, first_name, last_name, email, password_hash, image, role, assigned_tasks, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()), COALESCE($10, $9, NOW()))
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		stored.ID.String(),
		stored.FirstName,
		stored.LastName,
		stored.Email,
		stored.PasswordHash,
		stored.Image,
		stored.Role,
		toStrings(stored.AssignedTasks),
		nullTime(stored.CreatedAt),
		nullTime(stored.UpdatedAt),
	).Scan(&stored.CreatedAt, &stored.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, domain.StoreFailure("user.create", err)
	}

	return &stored, nil
}

func (r *userRepository) GetByID(ctx context.Context, id domain.ID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		return nil, domain.StoreFailure("user.get", err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, domain.StoreFailure("user.get_by_email", err)
	}
	return user, nil
}

func (r *userRepository) GetMany(ctx context.Context, ids []domain.ID) ([]domain.User, error) {
	users := []domain.User{}
	if len(ids) == 0 {
		return users, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::text[]) ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, toStrings(ids))
	if err != nil {
		return nil, domain.StoreFailure("user.get_many", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, domain.StoreFailure("user.get_many", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("user.get_many", err)
	}
	return users, nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id domain.ID, patch repository.UserPatch) (int64, error) {
	sets := make([]string, 0, 5)
	args := []interface{}{id.String()}
	set := func(column, value string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FirstName != nil {
		set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		set("last_name", *patch.LastName)
	}
	if patch.Image != nil {
		set("image", *patch.Image)
	}
	if patch.Role != nil {
		set("role", *patch.Role)
	}
	sets = append(sets, "updated_at = NOW()")

	tag, err := r.pool.Exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return 0, domain.StoreFailure("user.update", err)
	}
	return tag.RowsAffected(), nil
}

func (r *userRepository) AddAssignedTask(ctx context.Context, userID, taskID domain.ID) error {
	const query = `
	UPDATE users
	SET assigned_tasks = CASE
			WHEN $2::text = ANY(assigned_tasks) THEN assigned_tasks
			ELSE array_append(assigned_tasks, $2::text)
		END,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, userID.String(), taskID.String())
	if err != nil {
		return domain.StoreFailure("user.add_task", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) RemoveAssignedTask(ctx context.Context, userID, taskID domain.ID) error {
	const query = `UPDATE users SET assigned_tasks = array_remove(assigned_tasks, $2::text), updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID.String(), taskID.String())
	if err != nil {
		return domain.StoreFailure("user.remove_task", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) FindByAssignedTask(ctx context.Context, taskID domain.ID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE $1::text = ANY(assigned_tasks) ORDER BY created_at, id LIMIT 1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, taskID.String()))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.StoreFailure("user.find_by_task", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user          domain.User
		assignedTasks []string
	)
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Image,
		&user.Role,
		&assignedTasks,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	user.AssignedTasks = toIDs(assignedTasks)
	return &user, nil
}
