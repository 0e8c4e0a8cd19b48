package repository

import (
	"context"

	"github.com/fastygo/tasktracker/domain"
)

// UserPatch lists the profile fields a user may change. Nil fields are left alone.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Image     *string
	Role      *string
}

func (p UserPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Image == nil && p.Role == nil
}

type UserRepository interface {
	// Create returns domain.ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	GetByID(ctx context.Context, id domain.ID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetMany returns the users that exist among ids, in no particular order.
	GetMany(ctx context.Context, ids []domain.ID) ([]domain.User, error)
	UpdateFields(ctx context.Context, id domain.ID, patch UserPatch) (int64, error)
	// AddAssignedTask and RemoveAssignedTask are set mutations: adding a present
	// id or removing an absent one succeeds without changing anything.
	AddAssignedTask(ctx context.Context, userID, taskID domain.ID) error
	RemoveAssignedTask(ctx context.Context, userID, taskID domain.ID) error
	// FindByAssignedTask returns the earliest-created user holding taskID, or nil when none does.
	FindByAssignedTask(ctx context.Context, taskID domain.ID) (*domain.User, error)
}
