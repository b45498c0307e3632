package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"recap/internal/config"
	"recap/internal/ingest"
	"recap/internal/logging"
	"recap/internal/notifications"
	"recap/internal/safety"
	"recap/internal/services/llm"
	"recap/internal/stage"
	"recap/internal/store"
	"recap/internal/summary"
	"recap/internal/transcription"
)

// Manager coordinates the per-session stages.
type Manager struct {
	cfg        *config.Config
	store      *store.Store
	logger     *slog.Logger
	ingester   *ingest.Ingester
	analyzer   *safety.Analyzer
	summarizer *summary.Engine
	dispatcher *notifications.Dispatcher

	mu          sync.RWMutex
	lastErr     error
	lastSession string
	lastSweep   time.Time
}

type managerOptions struct {
	provider       transcription.Provider
	generator      llm.Generator
	mirror         safety.Mirror
	ingestOptions  []ingest.Option
	safetyOptions  []safety.Option
	summaryOptions []summary.Option
}

// Option configures optional Manager behavior.
type Option func(*managerOptions)

// WithTranscriptionProvider replaces the configured transcription provider.
func WithTranscriptionProvider(p transcription.Provider) Option {
	return func(o *managerOptions) { o.provider = p }
}

// WithGenerator replaces the configured language model.
func WithGenerator(g llm.Generator) Option {
	return func(o *managerOptions) { o.generator = g }
}

// WithMirror forwards safety escalations to m.
func WithMirror(m safety.Mirror) Option {
	return func(o *managerOptions) { o.mirror = m }
}

// WithIngestOptions passes options through to the ingester.
func WithIngestOptions(opts ...ingest.Option) Option {
	return func(o *managerOptions) { o.ingestOptions = append(o.ingestOptions, opts...) }
}

// WithSafetyOptions passes options through to the analyzer.
func WithSafetyOptions(opts ...safety.Option) Option {
	return func(o *managerOptions) { o.safetyOptions = append(o.safetyOptions, opts...) }
}

// WithSummaryOptions passes options through to the summary engine.
func WithSummaryOptions(opts ...summary.Option) Option {
	return func(o *managerOptions) { o.summaryOptions = append(o.summaryOptions, opts...) }
}

// NewManager builds every stage from configuration. Providers are created
// eagerly but validate credentials lazily, so a missing API key surfaces as a
// configuration error from the stage that needs it.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow: config is nil")
	}
	if st == nil {
		return nil, fmt.Errorf("workflow: store is nil")
	}
	options := &managerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if options.provider == nil {
		provider, err := ingest.NewProvider(cfg)
		if err != nil {
			return nil, err
		}
		options.provider = provider
	}
	if options.generator == nil {
		generator, err := llm.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
		options.generator = generator
	}
	if options.mirror == nil {
		mirror, err := safety.NewSlackMirror(cfg.Slack)
		if err != nil {
			return nil, err
		}
		if mirror != nil {
			options.mirror = mirror
		}
	}

	m := &Manager{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "workflow"),
	}
	ingestOpts := append([]ingest.Option{ingest.WithObserver(m)}, options.ingestOptions...)
	m.ingester = ingest.New(cfg, st, options.provider, logger, ingestOpts...)

	safetyOpts := options.safetyOptions
	if options.mirror != nil {
		safetyOpts = append([]safety.Option{safety.WithMirror(options.mirror)}, safetyOpts...)
	}
	m.analyzer = safety.New(cfg, st, logger, safetyOpts...)
	m.summarizer = summary.New(cfg, st, options.generator, logger, options.summaryOptions...)
	m.dispatcher = notifications.NewDispatcher(cfg, st, logger)
	return m, nil
}

// StatusSummary is lightweight workflow diagnostics.
type StatusSummary struct {
	LastError   string
	LastSession string
	LastSweep   time.Time
	Pending     map[store.State]int
	StageHealth map[string]stage.Health
}

// Status reports stage health and the number of sessions awaiting each step.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{LastSession: m.lastSession, LastSweep: m.lastSweep}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	summary.StageHealth = stage.Collect(ctx, m.ingester, m.analyzer, m.summarizer, m.dispatcher)

	sessions, err := m.store.SessionsInStates(ctx, append([]store.State{store.StateCollecting}, store.PendingStates...)...)
	if err != nil {
		logging.WarnWithContext(m.logger, "failed to read pending sessions", "workflow_status_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status omits pending counts"),
		)
		return summary
	}
	summary.Pending = make(map[store.State]int)
	for _, s := range sessions {
		summary.Pending[s.State]++
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastSession(id string) {
	m.mu.Lock()
	m.lastSession = id
	m.mu.Unlock()
}
