package profile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/logger"
	"github.com/fastygo/tasktracker/repository"
)

type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

// GetProfile returns the user together with their assigned task ids.
func (uc *UseCase) GetProfile(ctx context.Context, userID domain.ID) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

// UpdateProfile applies patch to the user's own record.
func (uc *UseCase) UpdateProfile(ctx context.Context, userID domain.ID, patch repository.UserPatch) (*domain.User, error) {
	for _, field := range []*string{patch.FirstName, patch.LastName} {
		if field != nil {
			*field = strings.TrimSpace(*field)
			if *field == "" {
				return nil, domain.NewError(domain.ErrCodeInvalid, "name must not be empty")
			}
		}
	}
	if patch.IsEmpty() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "nothing to update")
	}

	matched, err := uc.users.UpdateFields(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, domain.ErrUserNotFound
	}
	logger.WithContext(ctx, uc.logger).Info("profile updated")
	return uc.users.GetByID(ctx, userID)
}
