package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

func TestUserRepository_CreateRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()

	_, err := repo.Create(ctx, &domain.User{Email: "ada@example.com", FirstName: "Ada"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.User{Email: " ADA@example.com", FirstName: "Other"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))

	got, err := repo.GetByEmail(ctx, "ada@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
}

func TestUserRepository_AssignedTaskSet(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	user, err := repo.Create(ctx, &domain.User{Email: "a@example.com"})
	require.NoError(t, err)
	taskID := domain.NewID()

	require.NoError(t, repo.AddAssignedTask(ctx, user.ID, taskID))
	require.NoError(t, repo.AddAssignedTask(ctx, user.ID, taskID))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{taskID}, got.AssignedTasks)

	require.NoError(t, repo.RemoveAssignedTask(ctx, user.ID, taskID))
	require.NoError(t, repo.RemoveAssignedTask(ctx, user.ID, taskID))

	got, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTasks)

	assert.ErrorIs(t, repo.AddAssignedTask(ctx, domain.NewID(), taskID), domain.ErrUserNotFound)
}

func TestUserRepository_FindByAssignedTaskPrefersEarliest(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewUserRepository()
	first, err := repo.Create(ctx, &domain.User{Email: "first@example.com", CreatedAt: base})
	require.NoError(t, err)
	second, err := repo.Create(ctx, &domain.User{Email: "second@example.com", CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	taskID := domain.NewID()

	holder, err := repo.FindByAssignedTask(ctx, taskID)
	require.NoError(t, err)
	assert.Nil(t, holder)

	require.NoError(t, repo.AddAssignedTask(ctx, second.ID, taskID))
	require.NoError(t, repo.AddAssignedTask(ctx, first.ID, taskID))

	holder, err = repo.FindByAssignedTask(ctx, taskID)
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, first.ID, holder.ID)
}

func TestUserRepository_UpdateFieldsAndGetMany(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	a, err := repo.Create(ctx, &domain.User{Email: "a@example.com", FirstName: "A"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, &domain.User{Email: "b@example.com", FirstName: "B"})
	require.NoError(t, err)

	name := "Alpha"
	n, err := repo.UpdateFields(ctx, a.ID, repository.UserPatch{FirstName: &name})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.UpdateFields(ctx, domain.NewID(), repository.UserPatch{FirstName: &name})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	users, err := repo.GetMany(ctx, []domain.ID{a.ID, b.ID, a.ID, domain.NewID()})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alpha", users[0].FirstName)
	assert.Equal(t, "B", users[1].FirstName)
}

func TestSessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewSessionRepository(time.Minute, WithClock(func() time.Time { return now }))

	require.NoError(t, repo.Save(ctx, &domain.Session{ID: "s1", UserID: domain.NewID()}))
	_, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Extend(ctx, "s1", time.Minute), domain.ErrSessionNotFound)
}

func TestStatsCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewStatsCache(time.Minute)
	id := domain.NewID()

	require.NoError(t, cache.Set(ctx, id, []domain.MonthlyCompleted{{Year: 2024, Month: 1, Count: 1}}))
	stats, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stats, 1)

	require.NoError(t, cache.Invalidate(ctx, id))
	_, ok, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStatsCache_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	cache := NewStatsCache(time.Minute, WithClock(func() time.Time { return now }))
	id := domain.NewID()

	require.NoError(t, cache.Set(ctx, id, []domain.MonthlyCompleted{{Year: 2024, Month: 3, Count: 1}}))
	_, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}
