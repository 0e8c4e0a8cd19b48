// Package assignment keeps a task's assignee and the assignee's task list in step.
//
// The two records live in separate documents and the engines offer no
// cross-document transaction, so an assignment is a short sequence of
// single-record writes:
//
//  1. find the current holder of the task and pull the task from their list;
//  2. concurrently set the task's assignee (guarded by compare-and-set on the
//     assignee read at the start) and push the task onto the new user's list.
//
// A failure in step 2 is surfaced as STORE_FAILURE with no unwind, and the
// pair is written to the repair journal so a background job can finish it.
package assignment

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/pkg/logger"
	"github.com/fastygo/tasktracker/repository"
	"github.com/fastygo/tasktracker/usecase"
)

// Outcome describes a completed assignment.
type Outcome struct {
	TaskID         domain.ID  `json:"taskId"`
	UserID         domain.ID  `json:"userId"`
	PreviousUserID *domain.ID `json:"previousUserId,omitempty"`
}

type Coordinator struct {
	tasks   repository.TaskRepository
	users   repository.UserRepository
	journal usecase.RepairJournal
	logger  *zap.Logger
}

func NewCoordinator(tasks repository.TaskRepository, users repository.UserRepository, journal usecase.RepairJournal, log *zap.Logger) *Coordinator {
	if journal == nil {
		journal = usecase.NopJournal{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{tasks: tasks, users: users, journal: journal, logger: log}
}

// Assign makes rawUserID the single assignee of rawTaskID.
func (c *Coordinator) Assign(ctx context.Context, rawTaskID, rawUserID string) (*Outcome, error) {
	ids, err := domain.ParseIDs(rawTaskID, rawUserID)
	if err != nil {
		return nil, err
	}
	task, err := c.tasks.GetByID(ctx, ids[0])
	if err != nil {
		return nil, err
	}
	if _, err := c.users.GetByID(ctx, ids[1]); err != nil {
		return nil, err
	}
	return c.assign(ctx, task, ids[1])
}

// Repair finishes an assignment recorded in the journal. It only completes the
// half that did not land: when the task already points at another user, or
// another user lists it, a later assignment superseded the entry and Repair
// returns ErrAssignmentConflict without touching either record.
func (c *Coordinator) Repair(ctx context.Context, taskID, userID domain.ID) error {
	task, err := c.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := c.users.GetByID(ctx, userID); err != nil {
		return err
	}
	log := logger.WithContext(ctx, c.logger).With(
		zap.String("task_id", taskID.String()),
		zap.String("user_id", userID.String()),
	)

	assignee, assigned := task.Assignee()
	if assigned && assignee != userID {
		log.Info("repair superseded by a later assignment")
		return domain.ErrAssignmentConflict
	}
	holder, err := c.users.FindByAssignedTask(ctx, taskID)
	if err != nil {
		return err
	}
	if holder != nil && holder.ID != userID {
		log.Info("repair superseded by a later assignment")
		return domain.ErrAssignmentConflict
	}

	if !assigned {
		matched, err := c.tasks.AssignIf(ctx, taskID, nil, userID)
		if err != nil {
			return domain.StoreFailure("assignment.repair", err)
		}
		if matched == 0 {
			return c.resolveMiss(ctx, log, taskID, userID, false)
		}
	}
	if holder == nil {
		if err := c.users.AddAssignedTask(ctx, userID, taskID); err != nil {
			return domain.StoreFailure("assignment.repair", err)
		}
	}
	log.Info("assignment repaired")
	return nil
}

// Unassign pulls taskID from userID's list. The task record is left alone.
// Pulling from a user that no longer lists the task, or no longer exists, succeeds.
func (c *Coordinator) Unassign(ctx context.Context, taskID, userID domain.ID) error {
	err := c.users.RemoveAssignedTask(ctx, userID, taskID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	return err
}

// assign returns the outcome alongside a post-write error, since one of the
// writes may already have landed.
func (c *Coordinator) assign(ctx context.Context, task *domain.Task, userID domain.ID) (*Outcome, error) {
	log := logger.WithContext(ctx, c.logger).With(
		zap.String("task_id", task.ID.String()),
		zap.String("user_id", userID.String()),
	)
	outcome := &Outcome{TaskID: task.ID, UserID: userID}

	holder, err := c.users.FindByAssignedTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	switch {
	case holder != nil:
		if holder.ID != userID {
			prev := holder.ID
			outcome.PreviousUserID = &prev
		}
	case task.AssignedTo != nil && task.AssignedTo.ID != userID:
		prev := task.AssignedTo.ID
		outcome.PreviousUserID = &prev
	}

	if holder != nil && holder.ID != userID {
		if err := c.users.RemoveAssignedTask(ctx, holder.ID, task.ID); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}

	var (
		matched int64
		g       errgroup.Group
	)
	g.Go(func() error {
		n, err := c.tasks.AssignIf(ctx, task.ID, task.AssigneeID(), userID)
		matched = n
		return err
	})
	g.Go(func() error {
		return c.users.AddAssignedTask(ctx, userID, task.ID)
	})

	if err := g.Wait(); err != nil {
		log.Warn("assignment partially applied", zap.Error(err))
		if jerr := c.journal.Record(ctx, task.ID, userID, err); jerr != nil {
			log.Error("failed to record assignment repair", zap.Error(jerr))
		}
		return outcome, domain.StoreFailure("assignment.assign", err)
	}

	if matched == 0 {
		if err := c.resolveMiss(ctx, log, task.ID, userID, true); err != nil {
			return outcome, err
		}
	}

	log.Info("task assigned")
	return outcome, nil
}

// resolveMiss handles a compare-and-set that matched nothing: the task was
// deleted or reassigned between the read and the write.
func (c *Coordinator) resolveMiss(ctx context.Context, log *zap.Logger, taskID, userID domain.ID, record bool) error {
	current, err := c.tasks.GetByID(ctx, taskID)
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		c.pullQuietly(ctx, log, taskID, userID)
		return domain.ErrTaskNotFound
	case err != nil:
		if record {
			if jerr := c.journal.Record(ctx, taskID, userID, err); jerr != nil {
				log.Error("failed to record assignment repair", zap.Error(jerr))
			}
		}
		return domain.StoreFailure("assignment.verify", err)
	}

	if assignee, ok := current.Assignee(); ok && assignee == userID {
		return nil
	}
	c.pullQuietly(ctx, log, taskID, userID)
	log.Info("assignment lost to a concurrent reassignment")
	return domain.ErrAssignmentConflict
}

func (c *Coordinator) pullQuietly(ctx context.Context, log *zap.Logger, taskID, userID domain.ID) {
	if err := c.Unassign(ctx, taskID, userID); err != nil {
		log.Warn("failed to withdraw task from user list", zap.Error(err))
	}
}
