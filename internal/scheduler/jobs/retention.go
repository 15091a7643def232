package jobs

import (
	"context"
	"fmt"

	"github.com/profitmonk/high-intent-signals/pkg/logger"
)

// RunPruner deletes old simulation runs (audit.Repository)
type RunPruner interface {
	DeleteBefore(ctx context.Context, days int) (int64, error)
}

// RunRetentionJob deletes persisted runs older than the retention window
type RunRetentionJob struct {
	repo   RunPruner
	days   int
	logger *logger.Logger
}

// NewRunRetentionJob creates a new retention job (days <= 0 → 180)
func NewRunRetentionJob(repo RunPruner, days int, log *logger.Logger) *RunRetentionJob {
	if log == nil {
		log = logger.Nop()
	}
	if days <= 0 {
		days = 180
	}
	return &RunRetentionJob{
		repo:   repo,
		days:   days,
		logger: log,
	}
}

// Name returns the job name
func (j *RunRetentionJob) Name() string {
	return "run_retention"
}

// Schedule returns the cron schedule (Sunday 3 AM)
func (j *RunRetentionJob) Schedule() string {
	return "0 0 3 * * SUN"
}

// Run executes the cleanup
func (j *RunRetentionJob) Run(ctx context.Context) error {
	deleted, err := j.repo.DeleteBefore(ctx, j.days)
	if err != nil {
		return fmt.Errorf("delete runs older than %d days: %w", j.days, err)
	}

	if deleted > 0 {
		j.logger.WithFields(map[string]interface{}{
			"deleted":        deleted,
			"retention_days": j.days,
		}).Info("Old simulation runs removed")
	}
	return nil
}
