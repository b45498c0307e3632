package testsupport

import (
	"path/filepath"
	"testing"

	"recap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays are zeroed so failure paths run instantly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Path = filepath.Join(base, "data", "recap-test.db")
	cfgVal.Transcription.APIKey = "test-transcription-key"
	cfgVal.LLM.APIKey = "test-llm-key"
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Ingest.Retry.BaseDelaySeconds = 0
	cfgVal.Summary.Retry.BaseDelaySeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSkipExisting toggles the duplicate-ingestion guard.
func WithSkipExisting(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.SkipExisting = enabled
	}
}

// WithDedupeUnresolved toggles safety flag deduplication.
func WithDedupeUnresolved(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Safety.DedupeUnresolved = enabled
	}
}

// WithoutLLMKey clears the language-model credentials.
func WithoutLLMKey() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = ""
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}
