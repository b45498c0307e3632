package notifications

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
)

// TypeSummaryReady is the sentinel notification type used for dedupe.
const TypeSummaryReady = "session_summary_ready"

const defaultPreviewChars = 100

// Skip reasons reported in Result.
const (
	SkipNoSummary      = "no summary"
	SkipAlreadySent    = "already dispatched"
	SkipNotRecurring   = "not a recurring session"
	SkipNoParticipants = "no participants"
)

// Store is the persistence surface the dispatcher needs.
type Store interface {
	stage.SessionReader
	NotifiedRecipients(ctx context.Context, notificationType, sessionID string) (map[string]bool, error)
	InsertNotification(ctx context.Context, n store.Notification) (*store.Notification, error)
}

// Result describes one dispatch.
type Result struct {
	Skipped    string
	Recipients []string
	Failed     []string
}

// Dispatcher writes summary-ready notifications.
type Dispatcher struct {
	store        Store
	previewChars int
	logger       *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg *config.Config, st Store, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		store:        st,
		previewChars: defaultPreviewChars,
		logger:       logging.NewComponentLogger(logger, "notifications"),
	}
	if cfg != nil && cfg.Notifications.PreviewChars > 0 {
		d.previewChars = cfg.Notifications.PreviewChars
	}
	return d
}

// HealthCheck reports whether the dispatcher has a store.
func (d *Dispatcher) HealthCheck(context.Context) stage.Health {
	if d == nil || d.store == nil {
		return stage.Unhealthy(stage.Notify, "store unavailable")
	}
	return stage.Healthy(stage.Notify)
}

// Dispatch notifies each participant of sessionID once. Recipients already
// notified are left alone, so a later dispatch reaches anyone whose insert
// failed before. Per-recipient insert failures are logged and reported in
// Result.Failed; only lookup failures are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, summary string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithSessionID(ctx, sessionID)
	ctx = services.WithStage(ctx, stage.Notify)
	logger := logging.WithContext(ctx, d.logger)

	if strings.TrimSpace(summary) == "" {
		return d.skip(logger, SkipNoSummary), nil
	}

	session, err := stage.LoadSession(ctx, d.store, stage.Notify, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !session.IsRecurring() {
		return d.skip(logger, SkipNotRecurring, logging.String("session_kind", string(session.Kind))), nil
	}
	participants := session.Participants()
	if len(participants) == 0 {
		return d.skip(logger, SkipNoParticipants), nil
	}

	notified, err := d.store.NotifiedRecipients(ctx, TypeSummaryReady, sessionID)
	if err != nil {
		return Result{}, services.Wrap(services.ErrPersistence, stage.Notify, "check history", sessionID, err)
	}
	recipients := make([]string, 0, len(participants))
	for _, participant := range participants {
		if !notified[participant] {
			recipients = append(recipients, participant)
		}
	}
	if len(recipients) == 0 {
		return d.skip(logger, SkipAlreadySent), nil
	}

	preview := Preview(summary, d.previewChars)
	var result Result
	for _, recipient := range recipients {
		_, err := d.store.InsertNotification(ctx, store.Notification{
			RecipientID: recipient,
			SessionID:   sessionID,
			Type:        TypeSummaryReady,
			Title:       "Your session summary is ready",
			Message:     preview,
			Metadata: map[string]any{
				"session_id":      sessionID,
				"recurring_id":    session.RecurringID,
				"summary_preview": preview,
			},
		})
		if err != nil {
			logging.WarnWithContext(logger, "notification insert failed", "notification_failed",
				logging.String("recipient_id", recipient),
				logging.Error(err),
				logging.String(logging.FieldImpact, "recipient will not be told the summary is ready"),
			)
			result.Failed = append(result.Failed, recipient)
			continue
		}
		result.Recipients = append(result.Recipients, recipient)
	}

	logger.Info("summary notifications dispatched",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("recipients", len(result.Recipients)),
		logging.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (d *Dispatcher) skip(logger *slog.Logger, reason string, attrs ...logging.Attr) Result {
	attrs = append(attrs,
		logging.String(logging.FieldEventType, "notification_skipped"),
		logging.String("reason", reason),
	)
	logger.Info("summary notification skipped", logging.Args(attrs...)...)
	return Result{Skipped: reason}
}

// Preview returns the first n runes of text.
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
