package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"recap/internal/logging"
	"recap/internal/workflow"
)

type sweepRunner interface {
	Sweep(ctx context.Context) (workflow.SweepResult, error)
}

// sweeper runs the workflow sweep on a cron schedule. Overlapping ticks are
// skipped while a sweep is still running.
type sweeper struct {
	cron    *cron.Cron
	entry   cron.EntryID
	runner  sweepRunner
	logger  *slog.Logger
	baseCtx context.Context
}

func newSweeper(schedule string, runner sweepRunner, logger *slog.Logger) (*sweeper, error) {
	adapter := cronLogger{logger: logger}
	s := &sweeper{
		cron:    cron.New(cron.WithLogger(adapter), cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter))),
		runner:  runner,
		logger:  logger,
		baseCtx: context.Background(),
	}
	id, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

func (s *sweeper) start(ctx context.Context) {
	s.baseCtx = ctx
	s.cron.Start()
}

func (s *sweeper) stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *sweeper) next() string {
	if s == nil {
		return ""
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return ""
	}
	return next.UTC().Format(time.RFC3339)
}

func (s *sweeper) sweep() {
	ctx := s.baseCtx
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	result, err := s.runner.Sweep(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "sweep failed", "sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "finalized sessions wait for the next tick"),
			logging.String(logging.FieldErrorHint, "check database connectivity"),
		)
		return
	}
	s.logger.Debug("sweep tick",
		logging.Int("sessions", result.Sessions),
		logging.Int("completed", result.Completed),
		logging.Int("failed", result.Failed),
		logging.Duration("elapsed", time.Since(started)),
	)
}

// cronLogger routes scheduler diagnostics into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{logging.Error(err)}, keysAndValues...)...)
}
