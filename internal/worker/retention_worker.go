package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/deskhand/helpdesk-service/internal/service"
)

// RetentionWorker periodically deletes archived notifications past their
// retention age.
type RetentionWorker struct {
	cron          *cron.Cron
	notifications *service.NotificationService
	logger        *zap.Logger
}

// NewRetentionWorker builds the worker with the given cron schedule.
func NewRetentionWorker(notifications *service.NotificationService, schedule string, logger *zap.Logger) (*RetentionWorker, error) {
	w := &RetentionWorker{
		cron:          cron.New(),
		notifications: notifications,
		logger:        logger,
	}
	if _, err := w.cron.AddFunc(schedule, w.sweep); err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins scheduling sweeps in the background.
func (w *RetentionWorker) Start() {
	w.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (w *RetentionWorker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
}

func (w *RetentionWorker) sweep() {
	deleted, err := w.notifications.SweepArchived(context.Background())
	if err != nil {
		w.logger.Error("notification retention sweep failed", zap.Error(err))
		return
	}
	w.logger.Debug("notification retention sweep complete", zap.Int64("deleted", deleted))
}
