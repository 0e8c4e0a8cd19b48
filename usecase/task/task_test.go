package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/repository"
	"github.com/fastygo/tasktracker/repository/memory"
	"github.com/fastygo/tasktracker/usecase/assignment"
	"github.com/fastygo/tasktracker/usecase/query"
)

type fixture struct {
	uc    *UseCase
	tasks *memory.TaskRepository
	users *memory.UserRepository
	cache *memory.StatsCache
	alice *domain.User
	bob   *domain.User
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		tasks: memory.NewTaskRepository(),
		users: memory.NewUserRepository(),
		cache: memory.NewStatsCache(time.Minute),
		now:   time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC),
	}
	var err error
	f.alice, err = f.users.Create(ctx, &domain.User{FirstName: "Alice", LastName: "A", Email: "alice@example.com"})
	require.NoError(t, err)
	f.bob, err = f.users.Create(ctx, &domain.User{FirstName: "Bob", LastName: "B", Email: "bob@example.com"})
	require.NoError(t, err)

	clock := func() time.Time { return f.now }
	engine := query.NewEngine(f.tasks, query.WithClock(clock), query.WithStatsCache(f.cache))
	coord := assignment.NewCoordinator(f.tasks, f.users, nil, nil)
	f.uc = New(f.tasks, f.users, coord, engine, nil).WithClock(clock)
	return f
}

func (f *fixture) caller(u *domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}

func (f *fixture) create(t *testing.T, title string) *domain.Task {
	t.Helper()
	task, err := f.uc.CreateTask(context.Background(), f.caller(f.alice), CreateInput{Title: title, Description: "d"})
	require.NoError(t, err)
	return task
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, "  write docs ")

	assert.Equal(t, "write docs", task.Title)
	assert.Equal(t, domain.StatusBacklog, task.Status)
	assert.Equal(t, domain.TypeFeature, task.Type)
	assert.Equal(t, f.alice.ID, task.CreatedBy.ID)
	assert.Nil(t, task.AssignedTo)
	assert.Nil(t, task.CompletedAt)

	_, err := f.uc.CreateTask(context.Background(), f.caller(f.alice), CreateInput{Title: "x", Description: "y", Type: "EPIC"})
	assert.Equal(t, domain.ErrCodeInvalid, domain.CodeOf(err))
	_, err = f.uc.CreateTask(context.Background(), f.caller(f.alice), CreateInput{Title: " ", Description: "y"})
	assert.Equal(t, domain.ErrCodeInvalid, domain.CodeOf(err))
}

func TestGetTaskExpandsReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "expand me")
	_, err := f.uc.AssignTask(ctx, task.ID.String(), f.bob.ID.String())
	require.NoError(t, err)
	_, err = f.uc.AddComment(ctx, f.caller(f.bob), task.ID.String(), "on it")
	require.NoError(t, err)

	got, err := f.uc.GetTask(ctx, task.ID.String())
	require.NoError(t, err)
	require.True(t, got.CreatedBy.IsExpanded())
	assert.Equal(t, "Alice", got.CreatedBy.User.FirstName)
	require.NotNil(t, got.AssignedTo)
	require.True(t, got.AssignedTo.IsExpanded())
	assert.Equal(t, "bob@example.com", got.AssignedTo.User.Email)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "on it", got.Comments[0].Text)
	assert.Equal(t, f.bob.ID, got.Comments[0].Author.ID)
	assert.True(t, got.Comments[0].Author.IsExpanded())
	assert.Equal(t, f.now, got.Comments[0].CreatedAt)

	_, err = f.uc.GetTask(ctx, "not-an-id")
	assert.Equal(t, domain.ErrCodeInvalidIdentifier, domain.CodeOf(err))
	_, err = f.uc.GetTask(ctx, domain.NewID().String())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestListTasksExpandsAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.create(t, "mine")
	f.create(t, "other")
	_, err := f.uc.AssignTask(ctx, mine.ID.String(), f.bob.ID.String())
	require.NoError(t, err)

	tasks, err := f.uc.ListTasks(ctx, query.Params{User: f.bob.ID.String()})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "mine", tasks[0].Title)
	require.NotNil(t, tasks[0].AssignedTo)
	assert.True(t, tasks[0].AssignedTo.IsExpanded())
	assert.False(t, tasks[0].CreatedBy.IsExpanded())

	_, err = f.uc.ListTasks(ctx, query.Params{User: "bogus"})
	assert.Equal(t, domain.ErrCodeInvalidIdentifier, domain.CodeOf(err))
}

func TestUpdateStampsCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "ship")

	completed := domain.StatusCompleted
	got, err := f.uc.UpdateTask(ctx, task.ID.String(), UpdateInput{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, f.now, *got.CompletedAt)

	// reopening keeps the stamp
	f.now = f.now.Add(time.Hour)
	inProgress := domain.StatusInProgress
	got, err = f.uc.UpdateTask(ctx, task.ID.String(), UpdateInput{Status: &inProgress})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, f.now.Add(-time.Hour), *got.CompletedAt)

	title := "ship it"
	got, err = f.uc.UpdateTask(ctx, task.ID.String(), UpdateInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "ship it", got.Title)
}

func TestUpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "x")
	bogus := domain.TaskStatus("DONE")
	empty := "  "
	status := domain.StatusToDo

	tests := []struct {
		name string
		id   string
		in   UpdateInput
		code domain.ErrorCode
	}{
		{name: "empty patch", id: task.ID.String(), code: domain.ErrCodeInvalid},
		{name: "unknown status", id: task.ID.String(), in: UpdateInput{Status: &bogus}, code: domain.ErrCodeInvalid},
		{name: "blank title", id: task.ID.String(), in: UpdateInput{Title: &empty}, code: domain.ErrCodeInvalid},
		{name: "bad id", id: "123", in: UpdateInput{Status: &status}, code: domain.ErrCodeInvalidIdentifier},
		{name: "missing task", id: domain.NewID().String(), in: UpdateInput{Status: &status}, code: domain.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.UpdateTask(ctx, tt.id, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.CodeOf(err))
		})
	}
}

func TestAddCommentToMissingTask(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.AddComment(context.Background(), f.caller(f.alice), domain.NewID().String(), "hi")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDeleteAssignedTaskCleansUpAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.create(t, "keep")
	drop := f.create(t, "drop")
	for _, task := range []*domain.Task{keep, drop} {
		_, err := f.uc.AssignTask(ctx, task.ID.String(), f.bob.ID.String())
		require.NoError(t, err)
	}

	require.NoError(t, f.uc.DeleteTask(ctx, drop.ID.String()))

	bob, err := f.users.GetByID(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.ID{keep.ID}, bob.AssignedTasks)
	_, err = f.tasks.GetByID(ctx, drop.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestDeleteMissingTaskTouchesNoUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "held")
	_, err := f.uc.AssignTask(ctx, task.ID.String(), f.bob.ID.String())
	require.NoError(t, err)

	err = f.uc.DeleteTask(ctx, domain.NewID().String())
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	bob, err := f.users.GetByID(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Len(t, bob.AssignedTasks, 1)
}

func TestDeleteUnassignedTask(t *testing.T) {
	f := newFixture(t)
	task := f.create(t, "loose")
	require.NoError(t, f.uc.DeleteTask(context.Background(), task.ID.String()))
}

func TestCompletionInvalidatesStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "count me")
	_, err := f.uc.AssignTask(ctx, task.ID.String(), f.bob.ID.String())
	require.NoError(t, err)

	stats, err := f.uc.MonthlyStats(ctx, f.caller(f.bob))
	require.NoError(t, err)
	assert.Empty(t, stats)

	completed := domain.StatusCompleted
	_, err = f.uc.UpdateTask(ctx, task.ID.String(), UpdateInput{Status: &completed})
	require.NoError(t, err)

	stats, err = f.uc.MonthlyStats(ctx, f.caller(f.bob))
	require.NoError(t, err)
	assert.Equal(t, []domain.MonthlyCompleted{{Year: 2024, Month: 5, Count: 1}}, stats)

	// reassignment moves the bucket to the new holder
	_, err = f.uc.AssignTask(ctx, task.ID.String(), f.alice.ID.String())
	require.NoError(t, err)
	stats, err = f.uc.MonthlyStats(ctx, f.caller(f.bob))
	require.NoError(t, err)
	assert.Empty(t, stats)
}

type unreachableUsers struct {
	repository.UserRepository
}

func (unreachableUsers) AddAssignedTask(context.Context, domain.ID, domain.ID) error {
	return errors.New("connection reset")
}

func TestPartialAssignInvalidatesStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.create(t, "moving")
	_, err := f.uc.AssignTask(ctx, task.ID.String(), f.bob.ID.String())
	require.NoError(t, err)
	completed := domain.StatusCompleted
	_, err = f.uc.UpdateTask(ctx, task.ID.String(), UpdateInput{Status: &completed})
	require.NoError(t, err)

	stats, err := f.uc.MonthlyStats(ctx, f.caller(f.bob))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	stats, err = f.uc.MonthlyStats(ctx, f.caller(f.alice))
	require.NoError(t, err)
	require.Empty(t, stats)

	clock := func() time.Time { return f.now }
	engine := query.NewEngine(f.tasks, query.WithClock(clock), query.WithStatsCache(f.cache))
	coord := assignment.NewCoordinator(f.tasks, unreachableUsers{f.users}, nil, nil)
	uc := New(f.tasks, f.users, coord, engine, nil).WithClock(clock)

	_, err = uc.AssignTask(ctx, task.ID.String(), f.alice.ID.String())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeStoreFailure, domain.CodeOf(err))

	// the task record moved to alice, so neither cached entry may survive
	stats, err = uc.MonthlyStats(ctx, f.caller(f.bob))
	require.NoError(t, err)
	assert.Empty(t, stats)
	stats, err = uc.MonthlyStats(ctx, f.caller(f.alice))
	require.NoError(t, err)
	assert.Equal(t, []domain.MonthlyCompleted{{Year: 2024, Month: 5, Count: 1}}, stats)
}
