package workflow

import (
	"context"
	"strings"

	"recap/internal/ingest"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
)

// RegisterSession creates or refreshes a session record.
func (m *Manager) RegisterSession(ctx context.Context, session store.Session) (*store.Session, error) {
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		return nil, services.Wrap(services.ErrInput, "session", "register", "session id required", nil)
	}
	switch session.Kind {
	case "":
		session.Kind = store.KindTrial
	case store.KindTrial, store.KindRecurring:
	default:
		return nil, services.Wrap(services.ErrInput, "session", "register", "unknown session kind "+string(session.Kind), nil)
	}
	if session.ExpectedSpeakers < 0 {
		return nil, services.Wrap(services.ErrInput, "session", "register", "expected_speakers must not be negative", nil)
	}
	saved, err := m.store.UpsertSession(ctx, session)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "session", "register", session.ID, err)
	}
	return saved, nil
}

// Session returns the stored session or services.ErrNotFound.
func (m *Manager) Session(ctx context.Context, sessionID string) (*store.Session, error) {
	return stage.LoadSession(ctx, m.store, "session", sessionID)
}

// Ingest transcribes and stores one speaker channel.
func (m *Manager) Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	if _, err := stage.LoadSession(ctx, m.store, stage.Ingest, req.SessionID); err != nil {
		return ingest.Result{}, err
	}
	m.setLastSession(req.SessionID)
	res, err := m.ingester.Ingest(ctx, req)
	if err != nil {
		m.setLastError(err)
	}
	return res, err
}

// SpeakerIngested records a finished speaker channel and, once the expected
// number of distinct speakers is reached, moves the session out of collecting.
func (m *Manager) SpeakerIngested(ctx context.Context, sessionID, speakerID string) error {
	count, err := m.store.MarkSpeakerIngested(ctx, sessionID, speakerID)
	if err != nil {
		return services.Wrap(services.ErrPersistence, stage.Ingest, "mark speaker", speakerID, err)
	}
	session, err := stage.LoadSession(ctx, m.store, stage.Ingest, sessionID)
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, m.logger)
	if session.ExpectedSpeakers <= 0 || count < session.ExpectedSpeakers {
		logger.Debug("session still collecting",
			logging.Int("ingested_speakers", count),
			logging.Int("expected_speakers", session.ExpectedSpeakers),
		)
		return nil
	}
	moved, err := m.store.TransitionState(ctx, sessionID, store.StateCollecting, store.StateReadyToAggregate)
	if err != nil {
		return services.Wrap(services.ErrPersistence, stage.Ingest, "advance state", sessionID, err)
	}
	if moved {
		logger.Info("all expected speakers ingested; session ready",
			logging.String(logging.FieldEventType, "session_ready"),
			logging.Int("ingested_speakers", count),
		)
	}
	return nil
}

// Finalize signals that no more speaker channels will arrive. It is a no-op
// for sessions already past collecting and returns the resulting state.
func (m *Manager) Finalize(ctx context.Context, sessionID string) (store.State, error) {
	ctx = services.WithSessionID(ctx, sessionID)
	ctx = services.WithStage(ctx, stage.Finalize)
	session, err := stage.LoadSession(ctx, m.store, stage.Finalize, sessionID)
	if err != nil {
		return "", err
	}
	if session.State != store.StateCollecting {
		return session.State, nil
	}
	if _, err := m.store.TransitionState(ctx, sessionID, store.StateCollecting, store.StateReadyToAggregate); err != nil {
		return "", services.Wrap(services.ErrPersistence, stage.Finalize, "advance state", sessionID, err)
	}
	logging.WithContext(ctx, m.logger).Info("session finalized",
		logging.String(logging.FieldEventType, "session_ready"),
	)
	current, err := stage.LoadSession(ctx, m.store, stage.Finalize, sessionID)
	if err != nil {
		return "", err
	}
	return current.State, nil
}
