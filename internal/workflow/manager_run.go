package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"recap/internal/logging"
	"recap/internal/safety"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
	"recap/internal/transcript"
)

// RunResult reports what one Run did.
type RunResult struct {
	SessionID   string
	State       store.State
	Flags       int
	Escalations int
	Summary     string
	Notified    []string
	Skipped     string
}

// Run takes a finalized session through aggregation, safety analysis,
// summarization and notification, resuming from its stored state.
func (m *Manager) Run(ctx context.Context, sessionID string) (RunResult, error) {
	ctx = withRequestID(ctx)
	ctx = services.WithSessionID(ctx, sessionID)
	ctx = services.WithStage(ctx, stage.Run)
	logger := logging.WithContext(ctx, m.logger)
	m.setLastSession(sessionID)

	result, err := m.run(ctx, logger, sessionID)
	if err != nil {
		m.setLastError(err)
		if !errors.Is(err, ErrNotReady) {
			logging.ErrorWithContext(logger, "session run stopped", "run_failed",
				logging.String("state", string(result.State)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the next sweep resumes from the recorded state"),
			)
		}
	}
	return result, err
}

func (m *Manager) run(ctx context.Context, logger *slog.Logger, sessionID string) (RunResult, error) {
	result := RunResult{SessionID: sessionID}
	session, err := stage.LoadSession(ctx, m.store, stage.Run, sessionID)
	if err != nil {
		return result, err
	}
	result.State = session.State
	switch session.State {
	case store.StateCollecting:
		return result, services.Wrap(ErrNotReady, stage.Run, "check state", "session is still collecting transcripts", nil)
	case store.StateNotified:
		result.Summary = session.Summary
		result.Skipped = "already notified"
		return result, nil
	}

	start := time.Now()
	logger.Info("session run started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("state", string(session.State)),
	)

	if !reached(session.State, store.StateSummarized) {
		if err := m.runAnalysisAndSummary(ctx, logger, session, &result); err != nil {
			return result, err
		}
	} else {
		result.Summary = session.Summary
	}

	dispatch, err := m.dispatcher.Dispatch(ctx, sessionID, result.Summary)
	if err != nil {
		return result, err
	}
	result.Notified = dispatch.Recipients
	result.Skipped = dispatch.Skipped
	if err := m.advance(ctx, &result, store.StateSummarized, store.StateNotified); err != nil {
		return result, err
	}

	logger.Info("session run completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("flags", result.Flags),
		logging.Int("notified", len(result.Notified)),
		logging.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// runAnalysisAndSummary aggregates once and feeds the transcript to the
// safety analyzer and the summarizer concurrently.
func (m *Manager) runAnalysisAndSummary(ctx context.Context, logger *slog.Logger, session *store.Session, result *RunResult) error {
	aggCtx := services.WithStage(ctx, stage.Aggregate)
	text, err := transcript.Aggregate(aggCtx, m.store, session.ID)
	if err != nil {
		return err
	}
	if err := m.advance(ctx, result, store.StateReadyToAggregate, store.StateAggregated); err != nil {
		return err
	}

	var (
		group      errgroup.Group
		report     safety.Report
		summaryOut string
	)
	runAnalysis := !reached(session.State, store.StateAnalyzed)
	if runAnalysis {
		group.Go(func() error {
			report = m.analyzer.Analyze(ctx, safety.Input{
				SessionID:  session.ID,
				Kind:       session.Kind,
				Transcript: text,
			})
			return nil
		})
	}
	group.Go(func() error {
		out, err := m.summarizer.Ensure(ctx, session.ID)
		summaryOut = out
		return err
	})
	summaryErr := group.Wait()

	if runAnalysis {
		result.Flags = len(report.Flags)
		result.Escalations = report.Escalations
	}
	if err := m.advance(ctx, result, store.StateAggregated, store.StateAnalyzed); err != nil {
		return err
	}
	if summaryErr != nil {
		return summaryErr
	}
	result.Summary = summaryOut
	if summaryOut == "" {
		logger.Info("no summary produced; completing without participant notification",
			logging.String(logging.FieldEventType, "run_no_summary"),
		)
	}
	return m.advance(ctx, result, store.StateAnalyzed, store.StateSummarized)
}

// advance moves the session from -> to and records the state in result. A lost
// compare-and-set means a concurrent run already advanced the session.
func (m *Manager) advance(ctx context.Context, result *RunResult, from, to store.State) error {
	if reached(result.State, to) {
		return nil
	}
	moved, err := m.store.TransitionState(ctx, result.SessionID, from, to)
	if err != nil {
		return services.Wrap(services.ErrPersistence, stage.Run, "advance state", string(from)+" -> "+string(to), err)
	}
	if !moved {
		current, err := stage.LoadSession(ctx, m.store, stage.Run, result.SessionID)
		if err != nil {
			return err
		}
		result.State = current.State
		return nil
	}
	result.State = to
	return nil
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Sessions  int
	Completed int
	Failed    int
}

// Sweep runs every session that is finalized but not yet notified. Per-session
// failures are logged and counted; only a failure to list sessions is returned.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	ctx = services.WithStage(withRequestID(ctx), stage.Sweep)
	logger := logging.WithContext(ctx, m.logger)

	sessions, err := m.store.SessionsInStates(ctx, store.PendingStates...)
	if err != nil {
		return SweepResult{}, services.Wrap(services.ErrPersistence, stage.Sweep, "list sessions", "", err)
	}
	result := SweepResult{Sessions: len(sessions)}
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		runCtx := services.WithRequestID(ctx, uuid.NewString())
		if _, err := m.Run(runCtx, session.ID); err != nil {
			result.Failed++
			continue
		}
		result.Completed++
	}

	m.mu.Lock()
	m.lastSweep = time.Now()
	m.mu.Unlock()

	if result.Sessions > 0 {
		logger.Info("sweep completed",
			logging.String(logging.FieldEventType, "sweep_complete"),
			logging.Int("sessions", result.Sessions),
			logging.Int("completed", result.Completed),
			logging.Int("failed", result.Failed),
		)
	}
	return result, nil
}
