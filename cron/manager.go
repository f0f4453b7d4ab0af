// Package cron runs cache warmers on cron schedules.
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/estate-client/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type job struct {
	entry types.JobEntry
	run   types.CronJob
}

type Manager struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	metrics         types.MetricsManager
	cron            *cron.Cron
	timezone        *time.Location
	jobs            map[string]*job
	state           atomic.Int32
	mu              sync.RWMutex
	shutdownTimeout time.Duration
	jobTimeout      time.Duration
}

// NewManager builds a stopped scheduler. Schedules use six fields, seconds
// first, or descriptors such as "@every 5m".
func NewManager(ctx context.Context, config *types.WarmersConfig, logger types.Logger, metrics types.MetricsManager) (*Manager, error) {
	timezone := time.UTC
	if config != nil && config.Timezone != "" {
		loc, err := time.LoadLocation(config.Timezone)
		if err != nil {
			logger.Warn("Unknown warmer timezone, using UTC",
				zap.String("timezone", config.Timezone),
				zap.Error(err))
		} else {
			timezone = loc
		}
	}

	cronL := cronLogger{logger: logger}

	cronOptions := []cron.Option{
		cron.WithLocation(timezone),
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronL), cron.SkipIfStillRunning(cronL)),
	}

	managerCtx, cancel := context.WithCancel(ctx)

	return &Manager{
		ctx:             managerCtx,
		cancel:          cancel,
		logger:          logger,
		metrics:         metrics,
		cron:            cron.New(cronOptions...),
		timezone:        timezone,
		jobs:            make(map[string]*job),
		shutdownTimeout: 10 * time.Second,
		jobTimeout:      5 * time.Minute,
	}, nil
}

func (m *Manager) Add(jobName, spec string, run types.CronJob) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}

	if spec == "" {
		return types.ErrCronExpressionInvalid
	}

	if run == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "%s", jobName)
	}

	entryID, err := m.cron.AddFunc(spec, func() {
		_ = m.execute(m.ctx, jobName)
	})
	if err != nil {
		return types.Errorf(types.ErrCronExpressionInvalid, "%s: %v", spec, err)
	}

	j := &job{
		entry: types.JobEntry{
			ID:      entryID,
			Name:    jobName,
			Spec:    spec,
			AddedAt: time.Now(),
		},
		run: run,
	}

	if cronEntry := m.cron.Entry(entryID); cronEntry.ID != 0 {
		j.entry.NextRun = cronEntry.Next
	}

	m.jobs[jobName] = j

	m.logger.Info("Cron job added",
		zap.String("job_name", jobName),
		zap.String("spec", spec))

	return nil
}

// RunAll runs every registered job once, concurrently, regardless of the
// scheduler state. It returns the first job error.
func (m *Manager) RunAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			return m.execute(ctx, name)
		})
	}

	return g.Wait()
}

// Jobs returns a snapshot of the registered jobs sorted by name.
func (m *Manager) Jobs() []types.JobEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]types.JobEntry, 0, len(m.jobs))
	for _, j := range m.jobs {
		entries = append(entries, j.entry)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name < entries[k].Name
	})

	return entries
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrCronIsRunning
	}

	m.cron.Start()
	m.setState(StateRunning)
	m.setSchedulerStatus(1)

	m.logger.Info("Cron manager started",
		zap.String("timezone", m.timezone.String()),
		zap.Int("jobs", len(m.Jobs())))

	return nil
}

func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrCronNotRunning
	}
	defer m.setState(StateStopped)

	m.cancel()
	stopCtx := m.cron.Stop()
	m.setSchedulerStatus(0)

	timer := time.NewTimer(m.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-stopCtx.Done():
		m.logger.Info("Cron scheduler stopped gracefully")
		return nil
	case <-timer.C:
		m.logger.Warn("Cron manager stop timeout, some jobs may still be running")
		return types.ErrCronJobTimeout
	}
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

func (m *Manager) getState() State {
	return State(m.state.Load())
}

func (m *Manager) setState(state State) {
	m.state.Store(int32(state))
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(int32(from), int32(to))
}

func (m *Manager) execute(ctx context.Context, jobName string) (err error) {
	m.mu.RLock()
	j, exists := m.jobs[jobName]
	m.mu.RUnlock()
	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "%s", jobName)
	}

	jobCtx, cancel := context.WithTimeout(ctx, m.jobTimeout)
	defer cancel()

	startTime := time.Now()
	m.logger.Debug("Cron job started", zap.String("job_name", jobName))

	defer func() {
		if r := recover(); r != nil {
			err = types.Errorf(types.ErrCronJobFailed, "job panic: %v", r)
		}

		duration := time.Since(startTime)
		m.recordRun(jobName, startTime, duration, err)

		if err != nil {
			m.logger.Error("Cron job failed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration),
				zap.Error(err))
			return
		}

		m.logger.Info("Cron job completed",
			zap.String("job_name", jobName),
			zap.Duration("duration", duration))
	}()

	if err = j.run(jobCtx); err != nil {
		return types.Errorf(types.ErrCronJobFailed, "%s: %v", jobName, err)
	}

	return nil
}

func (m *Manager) recordRun(jobName string, startTime time.Time, duration time.Duration, err error) {
	m.mu.Lock()
	if j, exists := m.jobs[jobName]; exists {
		j.entry.LastRun = startTime
		j.entry.LastDuration = duration
		j.entry.LastError = err
		j.entry.RunCount++
		if cronEntry := m.cron.Entry(j.entry.ID); cronEntry.ID != 0 {
			j.entry.NextRun = cronEntry.Next
		}
	}
	m.mu.Unlock()

	if m.metrics == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "error"
	}

	m.metrics.Counter("cron_job_executions_total", map[string]string{
		"job_name": jobName,
		"result":   result,
	}).Inc()

	m.metrics.Histogram("cron_job_duration_seconds",
		[]float64{0.1, 1.0, 10.0, 60.0, 300.0},
		map[string]string{"job_name": jobName},
	).Observe(duration.Seconds())
}

func (m *Manager) setSchedulerStatus(value float64) {
	if m.metrics == nil {
		return
	}
	m.metrics.Gauge("cron_scheduler_running", nil).Set(value)
}

// cronLogger adapts types.Logger to cron.Logger.
type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(toFields(keysAndValues), zap.Error(err))
	l.logger.Error(msg, fields...)
}

func toFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
