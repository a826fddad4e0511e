package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	bookingapp "rentme-reservations/internal/app/handlers/booking"
)

// Job is one scheduled unit of background work.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron specs ("@every 15m", "*/5 * * * *"). A job still
// running when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(adapter), cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", name, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx ends, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	s.cancel()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// Sweep completes bookings whose stay has ended.
func Sweep(sweeper *bookingapp.CompletionSweeper, now func() time.Time) Job {
	return func(ctx context.Context) error {
		_, err := sweeper.Run(ctx, clock(now))
		return err
	}
}

// Purger drops expired records, e.g. idempotency results.
type Purger interface {
	Purge(ctx context.Context, before time.Time) (int, error)
}

func Purge(p Purger, now func() time.Time, logger *slog.Logger) Job {
	return func(ctx context.Context) error {
		n, err := p.Purge(ctx, clock(now))
		if err == nil && n > 0 && logger != nil {
			logger.Info("expired idempotency records purged", "count", n)
		}
		return err
	}
}

func clock(now func() time.Time) time.Time {
	if now != nil {
		return now().UTC()
	}
	return time.Now().UTC()
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

var _ cron.Logger = cronLogger{}
