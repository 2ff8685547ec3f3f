// Package scheduler provides cron-based background jobs for ConsultFlow,
// such as the periodic message retention sweep.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/modubiz/ConsultFlow/internal/store"
	"github.com/robfig/cron/v3"
)

// DefaultRetentionCron runs the retention sweep nightly.
const DefaultRetentionCron = "0 3 * * *"

// DefaultRetentionDays is how long conversation messages are kept.
const DefaultRetentionDays = 90

// Scheduler wraps a cron runner for background maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard
// 5-field expression format.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// AddRetentionSweep schedules a job that deletes messages older than
// retentionDays from the store.
func (s *Scheduler) AddRetentionSweep(expr string, st store.Store, retentionDays int) error {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return s.AddJob(expr, func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		removed, err := st.PruneMessagesBefore(cutoff)
		if err != nil {
			slog.Error("Scheduler.retentionSweep: prune failed", "error", err)
			return
		}
		slog.Info("Scheduler.retentionSweep: prune completed", "removed", removed, "cutoff", cutoff)
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
