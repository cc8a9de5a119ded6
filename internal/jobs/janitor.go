package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SessionFinalizer closes sessions abandoned without an explicit end.
type SessionFinalizer interface {
	CloseStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Janitor periodically finalizes stale sessions. Players who navigate away
// mid-quiz leave records without an end timestamp; this job stamps them so
// analytics durations stay meaningful.
type Janitor struct {
	finalizer  SessionFinalizer
	logger     *zap.Logger
	schedule   string
	staleAfter time.Duration
	cron       *cron.Cron
}

func NewJanitor(finalizer SessionFinalizer, logger *zap.Logger, schedule string, staleAfter time.Duration) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = "*/10 * * * *"
	}
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &Janitor{
		finalizer:  finalizer,
		logger:     logger,
		schedule:   schedule,
		staleAfter: staleAfter,
		cron:       cron.New(),
	}
}

// Start schedules the job.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, func() {
		if err := j.RunOnce(); err != nil {
			j.logger.Warn("janitor run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	j.cron.Start()
	j.logger.Info("session janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("stale_after", j.staleAfter))
	return nil
}

// Stop halts the schedule; a run already in progress finishes.
func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	closed, err := j.finalizer.CloseStale(ctx, j.staleAfter)
	if err != nil {
		return err
	}
	if closed > 0 {
		j.logger.Info("stale sessions finalized", zap.Int("count", closed))
	}
	return nil
}
