// Package repotest holds behaviour checks every store engine must pass.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
)

// Stores is a fresh, empty pair of stores.
type Stores struct {
	Tasks repository.TaskRepository
	Users repository.UserRepository
}

// Run executes the contract against stores produced by open. open is called once per subtest.
func Run(t *testing.T, open func(t *testing.T) Stores) {
	t.Helper()
	t.Run("task lifecycle", func(t *testing.T) { taskLifecycle(t, open(t)) })
	t.Run("assign compare and set", func(t *testing.T) { assignIf(t, open(t)) })
	t.Run("find many", func(t *testing.T) { findMany(t, open(t)) })
	t.Run("title sort is byte ordered", func(t *testing.T) { titleByteOrder(t, open(t)) })
	t.Run("monthly aggregation", func(t *testing.T) { aggregate(t, open(t)) })
	t.Run("user assigned set", func(t *testing.T) { userAssignedSet(t, open(t)) })
	t.Run("duplicate email", func(t *testing.T) { duplicateEmail(t, open(t)) })
}

func newUser(t *testing.T, users repository.UserRepository, email string) *domain.User {
	t.Helper()
	user, err := users.Create(context.Background(), &domain.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
	})
	require.NoError(t, err)
	return user
}

func newTask(t *testing.T, tasks repository.TaskRepository, title string, createdBy domain.ID) *domain.Task {
	t.Helper()
	task, err := tasks.Create(context.Background(), &domain.Task{
		Title:     title,
		Type:      domain.TypeFeature,
		Status:    domain.StatusBacklog,
		CreatedBy: domain.Reference(createdBy),
	})
	require.NoError(t, err)
	return task
}

func taskLifecycle(t *testing.T, s Stores) {
	ctx := context.Background()
	author := newUser(t, s.Users, "author@example.com")
	task := newTask(t, s.Tasks, "lifecycle", author.ID)

	got, err := s.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "lifecycle", got.Title)
	assert.Equal(t, author.ID, got.CreatedBy.ID)
	assert.Nil(t, got.AssignedTo)
	assert.Empty(t, got.Comments)

	status := domain.StatusCompleted
	at := time.Now().UTC().Truncate(time.Millisecond)
	n, err := s.Tasks.UpdateFields(ctx, task.ID, repository.TaskPatch{Status: &status, CompletedAt: &at})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Tasks.AppendComment(ctx, task.ID, domain.Comment{Text: "done", Author: domain.Reference(author.ID), CreatedAt: at})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err = s.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(at))
	require.Len(t, got.Comments, 1)
	assert.Equal(t, author.ID, got.Comments[0].Author.ID)

	missing := domain.NewID()
	n, err = s.Tasks.UpdateFields(ctx, missing, repository.TaskPatch{Status: &status})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, s.Tasks.Delete(ctx, task.ID))
	_, err = s.Tasks.GetByID(ctx, task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, s.Tasks.Delete(ctx, task.ID), domain.ErrTaskNotFound)
}

func assignIf(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := newUser(t, s.Users, "alice@example.com")
	bob := newUser(t, s.Users, "bob@example.com")
	task := newTask(t, s.Tasks, "contested", alice.ID)

	n, err := s.Tasks.AssignIf(ctx, task.ID, nil, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.Tasks.AssignIf(ctx, task.ID, nil, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	n, err = s.Tasks.AssignIf(ctx, task.ID, &alice.ID, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, bob.ID, got.AssignedTo.ID)
}

func findMany(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := newUser(t, s.Users, "finder@example.com")
	for _, title := range []string{"alpha.report", "beta", "alphaXreport"} {
		newTask(t, s.Tasks, title, alice.ID)
	}

	tasks, err := s.Tasks.FindMany(ctx, repository.TaskQuery{
		Filter: repository.TaskFilter{TitleContains: "ALPHA."},
		Sort:   repository.Sort{Field: repository.SortByCreatedAt},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1, "search term is matched literally")
	assert.Equal(t, "alpha.report", tasks[0].Title)

	tasks, err = s.Tasks.FindMany(ctx, repository.TaskQuery{
		Sort: repository.Sort{Field: repository.SortByTitle, Desc: true},
		Page: repository.Page{Skip: 1, Limit: 1},
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "alphaXreport", tasks[0].Title)
}

func titleByteOrder(t *testing.T, s Stores) {
	ctx := context.Background()
	author := newUser(t, s.Users, "order@example.com")
	for _, title := range []string{"beta", "Zeta", "alpha", "Alpha"} {
		newTask(t, s.Tasks, title, author.ID)
	}

	tasks, err := s.Tasks.FindMany(ctx, repository.TaskQuery{
		Sort: repository.Sort{Field: repository.SortByTitle},
	})
	require.NoError(t, err)
	titles := make([]string, 0, len(tasks))
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"Alpha", "Zeta", "alpha", "beta"}, titles)
}

func aggregate(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := newUser(t, s.Users, "stats@example.com")
	status := domain.StatusCompleted

	for _, at := range []time.Time{
		time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	} {
		task := newTask(t, s.Tasks, "done", alice.ID)
		_, err := s.Tasks.AssignIf(ctx, task.ID, nil, alice.ID)
		require.NoError(t, err)
		completedAt := at
		_, err = s.Tasks.UpdateFields(ctx, task.ID, repository.TaskPatch{Status: &status, CompletedAt: &completedAt})
		require.NoError(t, err)
	}

	stats, err := s.Tasks.AggregateMonthlyCompleted(ctx, alice.ID, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []domain.MonthlyCompleted{
		{Year: 2024, Month: 1, Count: 2},
		{Year: 2024, Month: 4, Count: 1},
	}, stats)
}

func userAssignedSet(t *testing.T, s Stores) {
	ctx := context.Background()
	user := newUser(t, s.Users, "holder@example.com")
	taskID := domain.NewID()

	holder, err := s.Users.FindByAssignedTask(ctx, taskID)
	require.NoError(t, err)
	assert.Nil(t, holder)

	require.NoError(t, s.Users.AddAssignedTask(ctx, user.ID, taskID))
	require.NoError(t, s.Users.AddAssignedTask(ctx, user.ID, taskID))

	holder, err = s.Users.FindByAssignedTask(ctx, taskID)
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, []domain.ID{taskID}, holder.AssignedTasks)

	require.NoError(t, s.Users.RemoveAssignedTask(ctx, user.ID, taskID))
	require.NoError(t, s.Users.RemoveAssignedTask(ctx, user.ID, taskID))

	got, err := s.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, got.AssignedTasks)
}

func duplicateEmail(t *testing.T, s Stores) {
	ctx := context.Background()
	newUser(t, s.Users, "dup@example.com")

	_, err := s.Users.Create(ctx, &domain.User{Email: "DUP@example.com"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	got, err := s.Users.GetByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, "dup@example.com", got.Email)

	_, err = s.Users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
