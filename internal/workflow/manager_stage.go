package workflow

import (
	"context"

	"github.com/google/uuid"

	"recap/internal/notifications"
	"recap/internal/safety"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
	"recap/internal/transcript"
)

// Transcript returns the aggregated transcript of an existing session.
func (m *Manager) Transcript(ctx context.Context, sessionID string) (string, error) {
	if _, err := stage.LoadSession(ctx, m.store, stage.Aggregate, sessionID); err != nil {
		return "", err
	}
	return transcript.Aggregate(ctx, m.store, sessionID)
}

// Analyze runs one safety pass over the session's current transcript without
// touching its finalization state.
func (m *Manager) Analyze(ctx context.Context, sessionID string) (safety.Report, error) {
	session, err := stage.LoadSession(ctx, m.store, stage.Analyze, sessionID)
	if err != nil {
		return safety.Report{}, err
	}
	text, err := transcript.Aggregate(ctx, m.store, sessionID)
	if err != nil {
		return safety.Report{}, err
	}
	return m.analyzer.Analyze(withRequestID(ctx), safety.Input{
		SessionID:  sessionID,
		Kind:       session.Kind,
		Transcript: text,
		Summary:    session.Summary,
	}), nil
}

// Summarize ensures the session has a summary.
func (m *Manager) Summarize(ctx context.Context, sessionID string) (string, error) {
	out, err := m.summarizer.Ensure(withRequestID(ctx), sessionID)
	if err != nil {
		m.setLastError(err)
	}
	return out, err
}

// Notify dispatches the stored summary to participants.
func (m *Manager) Notify(ctx context.Context, sessionID string) (notifications.Result, error) {
	session, err := stage.LoadSession(ctx, m.store, stage.Notify, sessionID)
	if err != nil {
		return notifications.Result{}, err
	}
	return m.dispatcher.Dispatch(withRequestID(ctx), sessionID, session.Summary)
}

// Flags lists the safety flags recorded for a session.
func (m *Manager) Flags(ctx context.Context, sessionID string) ([]store.Flag, error) {
	if _, err := stage.LoadSession(ctx, m.store, stage.Analyze, sessionID); err != nil {
		return nil, err
	}
	flags, err := m.store.ListFlags(ctx, sessionID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, stage.Analyze, "list flags", sessionID, err)
	}
	return flags, nil
}

// Notifications lists the notifications recorded for a session.
func (m *Manager) Notifications(ctx context.Context, sessionID string) ([]store.Notification, error) {
	if _, err := stage.LoadSession(ctx, m.store, stage.Notify, sessionID); err != nil {
		return nil, err
	}
	notes, err := m.store.ListNotifications(ctx, sessionID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, stage.Notify, "list notifications", sessionID, err)
	}
	return notes, nil
}

func withRequestID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		return ctx
	}
	return services.WithRequestID(ctx, uuid.NewString())
}
