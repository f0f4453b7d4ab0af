package types

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// CronJob runs under a context that is cancelled on timeout or shutdown.
type CronJob func(ctx context.Context) error

type CronManager interface {
	LifecycleManager
	Add(jobName, spec string, job CronJob) error
	RunAll(ctx context.Context) error
	Jobs() []JobEntry
}

type JobEntry struct {
	ID           cron.EntryID
	Name         string
	Spec         string
	AddedAt      time.Time
	NextRun      time.Time
	LastRun      time.Time
	LastDuration time.Duration
	RunCount     int64
	LastError    error
}
