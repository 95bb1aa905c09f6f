package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"spendlens/internal/config"
	"spendlens/internal/log"
)

var ErrSchedulerRunning = errors.New("scheduler already running")

// Scheduler triggers RunScheduled on a five-field cron expression. A tick
// that fires while the previous run is still going is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	spec    string
	worker  *AnalysisWorker
	logger  *log.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(spec string, worker *AnalysisWorker, logger *log.Logger) (*Scheduler, error) {
	if _, err := config.CronParser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	logger = logger.OrDefault().WithComponent(log.ComponentWorker)
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:   spec,
		worker: worker,
		logger: logger,
	}, nil
}

// Start registers the job and starts the cron loop. Runs use a context that
// is cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := s.cron.AddFunc(s.spec, func() { s.worker.RunScheduled(s.ctx) })
	if err != nil {
		s.cancel()
		return fmt.Errorf("add scheduled analysis: %w", err)
	}
	s.entry = id
	s.cron.Start()
	s.running = true

	s.logger.InfoContext(ctx, "Analysis scheduler started",
		"schedule", s.spec,
		"next_run", s.cron.Entry(id).Next.Format(time.RFC3339))
	return nil
}

// Next reports the next scheduled run, zero when stopped.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// Stop cancels in-flight runs and waits for them until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cron.Remove(s.entry)
	s.cancel()
	done := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Analysis scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled run: %w", ctx.Err())
	}
}

// cronLogger adapts cron's logr-style interface to the structured logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, log.FieldError, err)...)
}
