package services

import (
	"context"
	"errors"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/internal/infrastructure/buffer"
	"github.com/fastygo/tasktracker/usecase"
)

// RepairBridge writes coordinator repair records into the bbolt journal.
type RepairBridge struct {
	store *buffer.Journal
}

func NewRepairBridge(store *buffer.Journal) *RepairBridge {
	return &RepairBridge{store: store}
}

func (b *RepairBridge) Record(_ context.Context, taskID, userID domain.ID, cause error) error {
	if b == nil || b.store == nil {
		return errors.New("repair journal not configured")
	}
	item := buffer.Item{
		TaskID: taskID.String(),
		UserID: userID.String(),
		Reason: buffer.ReasonPartialAssign,
	}
	if cause != nil {
		item.LastError = cause.Error()
	}
	return b.store.Enqueue(item)
}

var _ usecase.RepairJournal = (*RepairBridge)(nil)
