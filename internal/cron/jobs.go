package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetentionSchedule runs retention at the top of every hour.
const DefaultRetentionSchedule = "0 * * * *"

// DefaultRetentionAge is how long turns are kept when no age is configured.
const DefaultRetentionAge = 24 * time.Hour

// Sweeper is the subset of history.Store needed by RetentionJob.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Time) (int, error)
}

// RetentionJob deletes every stored turn older than MaxAge, across all
// conversations.
type RetentionJob struct {
	Store        Sweeper
	MaxAge       time.Duration // zero = DefaultRetentionAge
	ScheduleExpr string        // empty = DefaultRetentionSchedule
	Now          func() time.Time
	Logger       zerolog.Logger

	// OnSwept, if set, receives the number of turns each run deleted.
	OnSwept func(n int)
}

var _ Job = (*RetentionJob)(nil)

// Name implements Job.
func (j *RetentionJob) Name() string { return "history_retention" }

// Schedule implements Job.
func (j *RetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultRetentionSchedule
}

// Cutoff returns the instant before which turns are deleted.
func (j *RetentionJob) Cutoff() time.Time {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	age := j.MaxAge
	if age <= 0 {
		age = DefaultRetentionAge
	}
	return now().Add(-age)
}

// Run sweeps turns created before Cutoff.
func (j *RetentionJob) Run(ctx context.Context) error {
	cutoff := j.Cutoff()
	n, err := j.Store.Sweep(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cron: retention sweep: %w", err)
	}
	if j.OnSwept != nil {
		j.OnSwept(n)
	}
	if n > 0 {
		j.Logger.Info().Int("deleted", n).Time("cutoff", cutoff).Msg("cron: swept expired turns")
	}
	return nil
}
