// Package jobs runs the gateway's periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Recorder counts job runs.
type Recorder interface {
	JobRun(job string, err error)
}

type Func func(ctx context.Context) error

type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	recorder Recorder
	ctx      context.Context
}

func New(logger *slog.Logger, recorder Recorder) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:   logger,
		recorder: recorder,
		ctx:      context.Background(),
	}
}

// Add schedules fn under a standard cron spec or a descriptor such as
// "@every 1m".
func (s *Scheduler) Add(name, spec string, fn Func) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("scheduling %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) run(name string, fn Func) {
	start := time.Now()
	err := fn(s.ctx)
	if s.recorder != nil {
		s.recorder.JobRun(name, err)
	}
	if err != nil {
		s.logger.Error("job failed", "job", name, "error", err)
		return
	}
	s.logger.Debug("job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Sweeper drops expired rate-limit records.
type Sweeper interface {
	Sweep() int
}

func RateLimitSweep(l Sweeper, logger *slog.Logger) Func {
	return func(context.Context) error {
		if n := l.Sweep(); n > 0 {
			logger.Debug("rate limit sweep", "removed", n)
		}
		return nil
	}
}

// Expirer removes pending challenges created before cutoff.
type Expirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

func ChallengeExpiry(e Expirer, ttl time.Duration, now func() time.Time, logger *slog.Logger) Func {
	return func(ctx context.Context) error {
		n, err := e.ExpirePending(ctx, now().Add(-ttl))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("expired stale challenges", "removed", n, "ttl", ttl.String())
		}
		return nil
	}
}
