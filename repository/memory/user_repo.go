package memory

import (
	"context"
	"sync"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

type UserRepository struct {
	clock
	mu      sync.RWMutex
	users   map[domain.ID]*domain.User
	byEmail map[string]domain.ID
	order   []domain.ID
}

// NewUserRepository returns an empty in-memory user store.
func NewUserRepository(opts ...Option) *UserRepository {
	return &UserRepository{
		clock:   newClock(opts),
		users:   make(map[domain.ID]*domain.User),
		byEmail: make(map[string]domain.ID),
	}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.ErrInvalidPayload
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	if _, taken := r.byEmail[email]; taken {
		return nil, domain.ErrEmailTaken
	}

	stored := cloneUser(user)
	stored.Email = email
	if stored.ID.IsZero() {
		stored.ID = domain.NewID()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	if stored.AssignedTasks == nil {
		stored.AssignedTasks = []domain.ID{}
	}

	r.users[stored.ID] = stored
	r.byEmail[email] = stored.ID
	r.order = append(r.order, stored.ID)
	return cloneUser(stored), nil
}

func (r *UserRepository) GetByID(_ context.Context, id domain.ID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(r.users[id]), nil
}

func (r *UserRepository) GetMany(_ context.Context, ids []domain.ID) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(ids))
	seen := make(map[domain.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, ok := r.users[id]; ok {
			out = append(out, *cloneUser(user))
		}
	}
	return out, nil
}

func (r *UserRepository) UpdateFields(_ context.Context, id domain.ID, patch repository.UserPatch) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return 0, nil
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Image != nil {
		user.Image = *patch.Image
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	user.UpdatedAt = r.now()
	return 1, nil
}

func (r *UserRepository) AddAssignedTask(_ context.Context, userID, taskID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.HasAssignedTask(taskID) {
		return nil
	}
	user.AssignedTasks = append(user.AssignedTasks, taskID)
	user.UpdatedAt = r.now()
	return nil
}

func (r *UserRepository) RemoveAssignedTask(_ context.Context, userID, taskID domain.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	kept := user.AssignedTasks[:0]
	for _, id := range user.AssignedTasks {
		if id != taskID {
			kept = append(kept, id)
		}
	}
	if len(kept) != len(user.AssignedTasks) {
		user.UpdatedAt = r.now()
	}
	user.AssignedTasks = kept
	return nil
}

func (r *UserRepository) FindByAssignedTask(_ context.Context, taskID domain.ID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if user := r.users[id]; user.HasAssignedTask(taskID) {
			return cloneUser(user), nil
		}
	}
	return nil, nil
}

func cloneUser(u *domain.User) *domain.User {
	out := *u
	out.AssignedTasks = append([]domain.ID(nil), u.AssignedTasks...)
	return &out
}
