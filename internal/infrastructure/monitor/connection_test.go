package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedJournal struct{ size int }

func (j fixedJournal) Size() (int, error) { return j.size, nil }

func TestMonitorReportsChecks(t *testing.T) {
	m := New(Checks{
		Store:   func(context.Context) error { return nil },
		Cache:   func(context.Context) error { return errors.New("refused") },
		Journal: fixedJournal{size: 3},
	}, time.Hour, nil)
	m.Start()
	defer m.Stop()

	status := m.GetStatus()
	assert.True(t, m.IsOnline())
	assert.True(t, status.Store)
	assert.False(t, status.Cache)
	assert.True(t, status.Journal)
	assert.Equal(t, 3, status.JournalSize)
	assert.False(t, status.LastCheck.IsZero())
}

func TestMonitorOfflineStore(t *testing.T) {
	m := New(Checks{Store: func(context.Context) error { return errors.New("down") }}, time.Hour, nil)
	m.Start()
	m.Stop()
	m.Stop()

	assert.False(t, m.IsOnline())
	assert.False(t, m.GetStatus().Journal)
}

func TestStatusHealthyIgnoresJournal(t *testing.T) {
	assert.True(t, Status{Store: true, Cache: true}.Healthy())
	assert.False(t, Status{Store: true, Journal: true}.Healthy())
	assert.False(t, Status{Cache: true}.Healthy())
}
