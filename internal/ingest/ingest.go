package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/retry"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
	"recap/internal/transcription"
)

// Request identifies one speaker channel of a session.
type Request struct {
	SessionID string
	SpeakerID string
	AudioURL  string
	// Language is an explicit BCP-47 code; empty asks the provider to detect it.
	Language string
}

// Result reports what an ingestion wrote.
type Result struct {
	Segments int
	Batches  int
	Skipped  bool
}

// SegmentStore is the persistence surface ingestion needs.
type SegmentStore interface {
	InsertSegments(ctx context.Context, segments []store.Segment) error
	HasSegments(ctx context.Context, sessionID, speakerID string) (bool, error)
}

// Observer is notified after a speaker's segments have been persisted.
type Observer interface {
	SpeakerIngested(ctx context.Context, sessionID, speakerID string) error
}

// Ingester runs the transcribe, normalize, persist sequence.
type Ingester struct {
	store        SegmentStore
	provider     transcription.Provider
	policy       retry.Policy
	batchSize    int
	window       float64
	skipExisting bool
	observer     Observer
	logger       *slog.Logger
}

// Option customizes an Ingester.
type Option func(*Ingester)

// WithObserver registers a post-ingest hook.
func WithObserver(observer Observer) Option {
	return func(i *Ingester) {
		i.observer = observer
	}
}

// WithSleep replaces the retry wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(i *Ingester) {
		i.policy.Sleep = sleep
	}
}

// New constructs an Ingester from configuration.
func New(cfg *config.Config, st SegmentStore, provider transcription.Provider, logger *slog.Logger, opts ...Option) *Ingester {
	ing := &Ingester{
		store:    st,
		provider: provider,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		window:   transcription.DefaultWindowSeconds,
	}
	if cfg != nil {
		ing.policy = retry.FromConfig(cfg.Ingest.Retry)
		ing.batchSize = cfg.Ingest.BatchSize
		ing.skipExisting = cfg.Ingest.SkipExisting
		if cfg.Ingest.WindowSeconds > 0 {
			ing.window = cfg.Ingest.WindowSeconds
		}
	}
	if ing.batchSize <= 0 {
		ing.batchSize = 100
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ing)
		}
	}
	return ing
}

// HealthCheck reports whether a provider and store are wired.
func (i *Ingester) HealthCheck(context.Context) stage.Health {
	switch {
	case i == nil || i.store == nil:
		return stage.Unhealthy(stage.Ingest, "store unavailable")
	case i.provider == nil:
		return stage.Unhealthy(stage.Ingest, "transcription provider unavailable")
	default:
		return stage.Healthy(stage.Ingest)
	}
}

// Ingest transcribes req.AudioURL and stores the resulting segments tagged
// with the session and speaker.
func (i *Ingester) Ingest(ctx context.Context, req Request) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.SpeakerID = strings.TrimSpace(req.SpeakerID)
	req.AudioURL = strings.TrimSpace(req.AudioURL)
	if req.SessionID == "" || req.SpeakerID == "" || req.AudioURL == "" {
		return Result{}, services.Wrap(services.ErrInput, stage.Ingest, "validate request", "session, speaker, and audio url are required", nil)
	}
	if i.provider == nil {
		return Result{}, services.Wrap(services.ErrConfiguration, stage.Ingest, "transcribe", "no transcription provider configured", nil)
	}

	ctx = services.WithSessionID(ctx, req.SessionID)
	ctx = services.WithSpeakerID(ctx, req.SpeakerID)
	ctx = services.WithStage(ctx, stage.Ingest)
	logger := logging.WithContext(ctx, i.logger)

	if i.skipExisting {
		exists, err := i.store.HasSegments(ctx, req.SessionID, req.SpeakerID)
		if err != nil {
			return Result{}, services.Wrap(services.ErrPersistence, stage.Ingest, "check existing segments", req.SpeakerID, err)
		}
		if exists {
			logger.Info("speaker already ingested; skipping",
				logging.String(logging.FieldEventType, "ingest_skipped"),
				logging.String("reason", "segments exist"),
			)
			return Result{Skipped: true}, nil
		}
	}

	logger.Info("ingest started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("provider", i.provider.Name()),
		logging.String("language", languageLabel(req.Language)),
	)
	start := time.Now()

	result, err := i.transcribe(ctx, req, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "transcription failed", "ingest_transcribe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check provider credentials and audio url"),
		)
		return Result{}, err
	}

	segments := transcription.Normalize(result, i.window)
	if len(segments) == 0 {
		logging.WarnWithContext(logger, "provider returned no speech", "ingest_empty",
			logging.String(logging.FieldErrorHint, "verify the audio channel contains speech"),
			logging.String(logging.FieldImpact, "speaker contributes no transcript lines"),
		)
	}

	out, err := i.persist(ctx, req, segments)
	if err != nil {
		logging.ErrorWithContext(logger, "segment persistence failed", "ingest_persist_failed",
			logging.Error(err),
			logging.Int("persisted_segments", out.Segments),
		)
		return out, err
	}

	if i.observer != nil {
		if err := i.observer.SpeakerIngested(ctx, req.SessionID, req.SpeakerID); err != nil {
			logging.WarnWithContext(logger, "post-ingest bookkeeping failed", "ingest_observer_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "session may need an explicit finalize"),
			)
		}
	}

	logger.Info("ingest completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("segments", out.Segments),
		logging.Int("batches", out.Batches),
		logging.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (i *Ingester) transcribe(ctx context.Context, req Request, logger *slog.Logger) (*transcription.Result, error) {
	policy := i.policy
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logging.WarnWithContext(logger, "transcription attempt failed; retrying", "ingest_retry",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
				logging.String(logging.FieldImpact, "ingestion delayed"),
			)
		}
	}

	var result *transcription.Result
	err := policy.Do(ctx, "transcribe", func(ctx context.Context, _ int) error {
		res, err := i.provider.Transcribe(ctx, transcription.Request{
			AudioURL:   req.AudioURL,
			Language:   strings.TrimSpace(req.Language),
			Utterances: true,
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest %s/%s: %w", req.SessionID, req.SpeakerID, err)
	}
	return result, nil
}

func (i *Ingester) persist(ctx context.Context, req Request, segments []transcription.Segment) (Result, error) {
	var out Result
	total := (len(segments) + i.batchSize - 1) / i.batchSize
	for start := 0; start < len(segments); start += i.batchSize {
		end := min(start+i.batchSize, len(segments))
		batch := make([]store.Segment, 0, end-start)
		for _, seg := range segments[start:end] {
			batch = append(batch, store.Segment{
				SessionID:  req.SessionID,
				SpeakerID:  req.SpeakerID,
				StartTime:  seg.Start,
				EndTime:    seg.End,
				Text:       seg.Text,
				Confidence: seg.Confidence,
			})
		}
		if err := i.store.InsertSegments(ctx, batch); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			msg := fmt.Sprintf("batch %d of %d (%d segments already persisted)", out.Batches+1, total, out.Segments)
			return out, services.Wrap(services.ErrPersistence, stage.Ingest, "insert segments", msg, err)
		}
		out.Batches++
		out.Segments += len(batch)
	}
	return out, nil
}

func languageLabel(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "auto"
	}
	return lang
}
