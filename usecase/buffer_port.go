package usecase

import (
	"context"

	"github.com/fastygo/tasktracker/domain"
)

// RepairJournal records assignments whose writes only partly succeeded so a
// background job can finish them. Use cases depend on this port, not on the journal's storage.
type RepairJournal interface {
	Record(ctx context.Context, taskID, userID domain.ID, cause error) error
}

// NopJournal drops every record. It is used when repairs are disabled.
type NopJournal struct{}

func (NopJournal) Record(context.Context, domain.ID, domain.ID, error) error { return nil }
