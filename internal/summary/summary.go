// Package summary produces the one natural-language summary a session gets.
//
// Ensure is idempotent: a stored summary short-circuits before any provider
// call, and the write is conditional on the summary still being empty, so a
// racing invocation returns the first writer's text.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/retry"
	"recap/internal/services"
	"recap/internal/services/llm"
	"recap/internal/stage"
	"recap/internal/store"
	"recap/internal/transcript"
)

// SystemInstruction frames every summary request.
const SystemInstruction = `You summarize one-on-one tutoring sessions for the tutor, the learner, and the learner's guardian.
Write 2 to 4 concise paragraphs in plain prose covering: the topics covered, the learner's progress and any difficulties, the key takeaways, and recommended next steps.
Use only what the transcript supports. Do not quote personal contact details, payment arrangements, or anything unrelated to learning.
Speaker labels in the transcript are opaque identifiers; refer to the participants as "the tutor" and "the learner".`

// Store is the persistence surface the summarizer needs.
type Store interface {
	stage.SessionReader
	transcript.SegmentLister
	SetSummary(ctx context.Context, id, summary string) (bool, error)
}

// Engine generates and stores session summaries.
type Engine struct {
	store       Store
	generator   llm.Generator
	policy      retry.Policy
	minChars    int
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSleep replaces the retry wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.policy.Sleep = sleep
	}
}

// New constructs an Engine. A nil generator is allowed; Ensure then reports a
// configuration error once there is something to summarize.
func New(cfg *config.Config, st Store, generator llm.Generator, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		generator: generator,
		policy:    retry.Policy{MaxAttempts: 2},
		minChars:  10,
		maxTokens: 600,
		logger:    logging.NewComponentLogger(logger, "summary"),
	}
	if cfg != nil {
		e.policy = retry.FromConfig(cfg.Summary.Retry)
		if cfg.Summary.MinTranscriptChars > 0 {
			e.minChars = cfg.Summary.MinTranscriptChars
		}
		if cfg.LLM.MaxTokens > 0 {
			e.maxTokens = cfg.LLM.MaxTokens
		}
		e.temperature = cfg.LLM.Temperature
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// HealthCheck reports whether a language model is configured.
func (e *Engine) HealthCheck(context.Context) stage.Health {
	switch {
	case e == nil || e.store == nil:
		return stage.Unhealthy(stage.Summarize, "store unavailable")
	case e.generator == nil:
		return stage.Unhealthy(stage.Summarize, "language model unavailable")
	default:
		return stage.Healthy(stage.Summarize)
	}
}

// Ensure returns the session's summary, generating and storing it first when
// none exists. A transcript too short to summarize yields "" and no error.
func (e *Engine) Ensure(ctx context.Context, sessionID string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithSessionID(ctx, sessionID)
	ctx = services.WithStage(ctx, stage.Summarize)
	logger := logging.WithContext(ctx, e.logger)

	session, err := stage.LoadSession(ctx, e.store, stage.Summarize, sessionID)
	if err != nil {
		return "", err
	}
	if session.Summary != "" {
		logger.Debug("summary already stored", logging.String(logging.FieldEventType, "summary_cached"))
		return session.Summary, nil
	}

	text, err := transcript.Aggregate(ctx, e.store, sessionID)
	if err != nil {
		return "", err
	}
	if utf8.RuneCountInString(strings.TrimSpace(transcript.Spoken(text))) < e.minChars {
		skip := services.Wrap(services.ErrInput, stage.Summarize, "content gate",
			fmt.Sprintf("transcript shorter than %d characters", e.minChars), nil)
		logging.WarnWithContext(logger, "summary skipped", "summary_skipped",
			logging.Error(skip),
			logging.String(logging.FieldErrorHint, "ingest every speaker before summarizing"),
			logging.String(logging.FieldImpact, "no summary or participant notification for this session"),
		)
		return "", nil
	}
	if e.generator == nil {
		return "", services.Wrap(services.ErrConfiguration, stage.Summarize, "generate", "no language model configured", nil)
	}

	logger.Info("summary generation started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("provider", e.generator.Name()),
		logging.Int("transcript_chars", len(text)),
	)
	start := time.Now()

	generated, err := e.generate(ctx, logger, text)
	if err != nil {
		logging.ErrorWithContext(logger, "summary generation failed", "summary_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm provider credentials and status"),
		)
		return "", err
	}

	written, err := e.store.SetSummary(ctx, sessionID, generated)
	if err != nil {
		return "", services.Wrap(services.ErrPersistence, stage.Summarize, "store summary", sessionID, err)
	}
	if !written {
		current, err := stage.LoadSession(ctx, e.store, stage.Summarize, sessionID)
		if err != nil {
			return "", err
		}
		logger.Info("summary written concurrently; keeping stored value",
			logging.String(logging.FieldEventType, "summary_race"),
		)
		return current.Summary, nil
	}

	logger.Info("summary stored",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("summary_chars", len(generated)),
		logging.Duration("duration", time.Since(start)),
	)
	return generated, nil
}

func (e *Engine) generate(ctx context.Context, logger *slog.Logger, text string) (string, error) {
	policy := e.policy
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, delay time.Duration, err error) {
			logging.WarnWithContext(logger, "summary attempt failed; retrying", "summary_retry",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
				logging.String(logging.FieldImpact, "summary delayed"),
			)
		}
	}

	prompt := llm.Prompt{
		System:      SystemInstruction,
		User:        "Transcript:\n" + text,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	}
	var out string
	err := policy.Do(ctx, "generate summary", func(ctx context.Context, _ int) error {
		result, err := e.generator.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		result = strings.TrimSpace(result)
		if result == "" {
			return services.Wrap(services.ErrTransient, stage.Summarize, "generate", "empty summary", nil)
		}
		out = result
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
