package maintenance

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/velluxe/storefront-core/types"
)

type SchedulerState int32

const (
	SchedulerStateStopped SchedulerState = iota
	SchedulerStateStarting
	SchedulerStateRunning
	SchedulerStateStopping
)

// Scheduler runs the periodic housekeeping jobs: cache sweeps and the
// pending-reward reconciliation retry.
type Scheduler struct {
	ctx      context.Context
	cancel   context.CancelFunc
	logger   types.Logger
	cron     *cron.Cron
	timezone *time.Location
	entries  map[string]cron.EntryID
	mu       sync.RWMutex
	state    atomic.Value
}

func NewScheduler(ctx context.Context, logger types.Logger, config *types.JobsConfig) (*Scheduler, error) {
	timezoneStr := "UTC"
	if config != nil && config.Timezone != "" {
		timezoneStr = config.Timezone
	}

	timezone, err := time.LoadLocation(timezoneStr)
	if err != nil {
		timezone = time.UTC
	}

	cronLog := zapCronLogger{logger: logger}

	schedulerCtx, cancel := context.WithCancel(ctx)

	s := &Scheduler{
		ctx:    schedulerCtx,
		cancel: cancel,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog)),
		),
		timezone: timezone,
		entries:  make(map[string]cron.EntryID),
	}

	s.state.Store(SchedulerStateStopped)

	return s, nil
}

func (s *Scheduler) Add(jobName, spec string, job func(ctx context.Context) error) error {
	if jobName == "" {
		return types.ErrJobNameIsEmpty
	}
	if spec == "" {
		return types.ErrJobSpecInvalid
	}
	if job == nil {
		return types.ErrJobIsNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[jobName]; exists {
		return types.ErrJobExists
	}

	entryID, err := s.cron.AddFunc(spec, s.wrapJob(jobName, job))
	if err != nil {
		return types.Errorf(types.ErrJobSpecInvalid, "job %s: %v", jobName, err)
	}

	s.entries[jobName] = entryID

	s.logger.Debug("Job scheduled",
		zap.String("job_name", jobName),
		zap.String("spec", spec))

	return nil
}

func (s *Scheduler) Remove(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entries[jobName]
	if !exists {
		return types.ErrJobNotFound
	}

	s.cron.Remove(entryID)
	delete(s.entries, jobName)

	return nil
}

func (s *Scheduler) Start() error {
	if !s.transitionState(SchedulerStateStopped, SchedulerStateStarting) {
		return types.ErrServerAlreadyRunning
	}

	defer func() {
		if s.getState() == SchedulerStateStarting {
			s.setState(SchedulerStateRunning)
		}
	}()

	s.cron.Start()

	s.logger.Info("Maintenance scheduler started",
		zap.String("timezone", s.timezone.String()),
		zap.Int("jobs", len(s.entries)))

	return nil
}

func (s *Scheduler) Stop() error {
	if !s.transitionState(SchedulerStateRunning, SchedulerStateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		s.setState(SchedulerStateStopped)
		s.cancel()
	}()

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		s.logger.Info("Maintenance scheduler stopped gracefully")
	case <-time.After(10 * time.Second):
		s.logger.Warn("Maintenance scheduler stop timeout, jobs may still be running")
	}

	return nil
}

func (s *Scheduler) IsRunning() bool {
	return s.getState() == SchedulerStateRunning
}

func (s *Scheduler) wrapJob(jobName string, job func(ctx context.Context) error) func() {
	return func() {
		start := time.Now()

		jobCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
		defer cancel()

		err := job(jobCtx)
		duration := time.Since(start)

		if err != nil {
			s.logger.Error("Maintenance job failed",
				zap.String("job_name", jobName),
				zap.Duration("duration", duration),
				zap.Error(err))
			return
		}

		s.logger.Debug("Maintenance job completed",
			zap.String("job_name", jobName),
			zap.Duration("duration", duration))
	}
}

func (s *Scheduler) getState() SchedulerState {
	if state, ok := s.state.Load().(SchedulerState); ok {
		return state
	}
	return SchedulerStateStopped
}

func (s *Scheduler) setState(state SchedulerState) {
	s.state.Store(state)
}

func (s *Scheduler) transitionState(from, to SchedulerState) bool {
	return s.state.CompareAndSwap(from, to)
}

type zapCronLogger struct {
	logger types.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, toZapFields(keysAndValues)...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(toZapFields(keysAndValues), zap.Error(err))
	l.logger.Error(msg, fields...)
}

func toZapFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
