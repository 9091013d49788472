package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Scheduler runs a job on a cron expression, skipping ticks that arrive
// while the previous run is still in progress
type Scheduler struct {
	spec   string
	job    Job
	logger *slog.Logger
	cron   *cron.Cron
}

// NewScheduler validates spec (five fields, or a descriptor such as
// "@monthly") and prepares the scheduler in UTC
func NewScheduler(spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		spec:   spec,
		job:    job,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}, nil
}

// Run blocks until ctx is cancelled. With runOnStart the job also runs
// once immediately. A running job is allowed to finish before Run returns.
func (s *Scheduler) Run(ctx context.Context, runOnStart bool) error {
	entry, err := s.cron.AddFunc(s.spec, func() { s.execute(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	if runOnStart {
		s.execute(ctx)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "scheduler started",
		slog.String("schedule", s.spec),
		slog.Time("next_run", s.cron.Entry(entry).Next))

	<-ctx.Done()
	s.logger.InfoContext(ctx, "scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.ErrorContext(ctx, "scheduled run failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}
	s.logger.InfoContext(ctx, "scheduled run finished", slog.Duration("duration", time.Since(start)))
}
