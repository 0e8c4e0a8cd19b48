package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/tasktracker/domain"
	"github.com/fastygo/tasktracker/internal/infrastructure/buffer"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Repairer replays one journaled assignment.
type Repairer interface {
	Repair(ctx context.Context, taskID, userID domain.ID) error
}

// ProcessorConfig controls how frequently the journal is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// RepairProcessor replays journaled assignments until they converge or are given up on.
type RepairProcessor struct {
	store    *buffer.Journal
	monitor  ConnectionHealth
	repairer Repairer
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewRepairProcessor(
	store *buffer.Journal,
	monitor ConnectionHealth,
	repairer Repairer,
	logger *zap.Logger,
	cfg ProcessorConfig,
) (*RepairProcessor, error) {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 72 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rp := &RepairProcessor{
		store:    store,
		monitor:  monitor,
		repairer: repairer,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	if _, err := rp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := rp.Drain(ctx); err != nil {
			rp.logger.Error("repair drain failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule repair drain: %w", err)
	}
	if _, err := rp.cron.AddFunc("@hourly", func() {
		removed, err := rp.store.Cleanup(time.Now().Add(-cfg.Retention))
		if err != nil {
			rp.logger.Warn("repair journal cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			rp.logger.Info("expired repair items dropped", zap.Int("count", removed))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule repair cleanup: %w", err)
	}

	return rp, nil
}

// Start launches the cron scheduler.
func (rp *RepairProcessor) Start() {
	if rp == nil || rp.cron == nil {
		return
	}
	rp.cron.Start()
	rp.logger.Info("repair processor started", zap.Duration("interval", rp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (rp *RepairProcessor) Stop(ctx context.Context) error {
	if rp == nil || rp.cron == nil {
		return nil
	}
	stopCtx := rp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	rp.logger.Info("repair processor stopped")
	return nil
}

// Drain replays one batch of journaled assignments synchronously.
func (rp *RepairProcessor) Drain(ctx context.Context) error {
	if rp == nil || rp.store == nil {
		return nil
	}
	if rp.monitor != nil && !rp.monitor.IsOnline() {
		rp.logger.Debug("skipping repair drain (store offline)")
		return nil
	}

	items, err := rp.store.GetBatch(rp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		log := rp.logger.With(
			zap.String("item_id", item.ID),
			zap.String("task_id", item.TaskID),
			zap.String("user_id", item.UserID),
		)

		err := rp.processItem(ctx, item)
		switch {
		case err == nil:
			log.Info("assignment repaired")
		case permanent(err):
			log.Info("dropping repair item", zap.Error(err))
		default:
			item.Retries++
			item.LastError = err.Error()
			if item.Retries >= rp.cfg.MaxRetries {
				log.Warn("dropping repair item (max retries reached)", zap.Error(err))
				break
			}
			log.Warn("repair attempt failed", zap.Int("retries", item.Retries), zap.Error(err))
			item.Reason = buffer.ReasonRetry
			if err := rp.store.Requeue(item); err != nil {
				log.Error("failed to requeue repair item", zap.Error(err))
			}
			continue
		}

		if err := rp.store.Remove(item); err != nil {
			log.Warn("failed to purge repair item", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of pending repairs.
func (rp *RepairProcessor) Size() int {
	if rp == nil || rp.store == nil {
		return 0
	}
	size, err := rp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (rp *RepairProcessor) processItem(ctx context.Context, item buffer.Item) error {
	ids, err := domain.ParseIDs(item.TaskID, item.UserID)
	if err != nil {
		return err
	}
	return rp.repairer.Repair(ctx, ids[0], ids[1])
}

// permanent reports errors a retry cannot fix: the task or user is gone, the
// ids are corrupt, or a later assignment superseded this one.
func permanent(err error) bool {
	switch domain.CodeOf(err) {
	case domain.ErrCodeNotFound, domain.ErrCodeInvalidIdentifier, domain.ErrCodeConflict:
		return true
	}
	return false
}
