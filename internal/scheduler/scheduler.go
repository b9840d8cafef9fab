// Package scheduler runs the periodic economy tasks and keeps an audit
// log of every run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zoin_economy/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Task run statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// ErrNeverRun is returned by LastRun for a task with no recorded run.
var ErrNeverRun = errors.New("task has never run")

// Job is one scheduled task. The returned detail is stored with the run.
type Job func(ctx context.Context) (string, error)

// Scheduler triggers jobs on cron schedules.
type Scheduler struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
}

// New returns a Scheduler evaluating schedules in loc.
func New(db *gorm.DB, loc *time.Location) *Scheduler {
	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Scheduler{
		db: db,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		now: time.Now,
	}
}

// Register schedules job under name with a standard five-field cron spec.
func (s *Scheduler) Register(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		_ = s.Run(context.Background(), name, job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	logrus.WithFields(logrus.Fields{"task": name, "spec": spec}).Info("Task scheduled")
	return nil
}

// Start begins firing registered jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Run executes job now and records the run.
func (s *Scheduler) Run(ctx context.Context, name string, job Job) error {
	run := domain.TaskRun{Task: name, StartedAt: s.now().UTC(), Status: StatusOK}
	detail, err := job(ctx)
	run.FinishedAt = s.now().UTC()
	run.Detail = detail
	if err != nil {
		run.Status = StatusFailed
		if detail != "" {
			run.Detail = detail + "; "
		}
		run.Detail += err.Error()
	}
	if rerr := s.db.WithContext(ctx).Create(&run).Error; rerr != nil {
		logrus.WithFields(logrus.Fields{"task": name, "error": rerr.Error()}).Error("Failed to record task run")
	}

	fields := logrus.Fields{
		"task":     name,                                       // Task name
		"status":   run.Status,                                 // ok or failed
		"duration": run.FinishedAt.Sub(run.StartedAt).String(), // Wall time
		"detail":   run.Detail,                                 // Task output
	}
	if err != nil {
		logrus.WithFields(fields).Error("Scheduled task failed")
		return err
	}
	logrus.WithFields(fields).Info("Scheduled task finished")
	return nil
}

// LastRun returns the most recent recorded run of a task.
func (s *Scheduler) LastRun(ctx context.Context, name string) (*domain.TaskRun, error) {
	var run domain.TaskRun
	err := s.db.WithContext(ctx).Where("task = ?", name).Order("started_at desc").Order("id desc").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", name, ErrNeverRun)
	}
	if err != nil {
		return nil, fmt.Errorf("load task run: %w", err)
	}
	return &run, nil
}
