package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Database selects the relational store backing every stage.
type Database struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `toml:"driver"`
	// Path is the SQLite file; relative to paths.data_dir when not absolute.
	Path string `toml:"path"`
	// DSN is the MySQL data source name.
	DSN string `toml:"dsn"`
}

// Transcription contains speech-to-text provider settings.
type Transcription struct {
	// Provider is "remote" (hosted HTTP API) or "whisperx" (local CLI).
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// WhisperX settings apply only to the whisperx provider.
	WhisperXModel       string `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
	WhisperXWorkDir     string `toml:"whisperx_work_dir"`
}

// LLM contains language-model provider settings used for summaries.
type LLM struct {
	// Provider is "openrouter" (any chat-completions compatible endpoint) or "gemini".
	Provider       string  `toml:"provider"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Referer        string  `toml:"referer"`
	Title          string  `toml:"title"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
}

// Retry describes a bounded exponential backoff policy.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	BaseDelaySeconds float64 `toml:"base_delay_seconds"`
	Multiplier       float64 `toml:"multiplier"`
	MaxDelaySeconds  float64 `toml:"max_delay_seconds"`
}

// BaseDelay returns the configured base delay as a duration.
func (r Retry) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelaySeconds * float64(time.Second))
}

// MaxDelay returns the configured delay cap as a duration.
func (r Retry) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelaySeconds * float64(time.Second))
}

// Ingest contains transcript ingestion settings.
type Ingest struct {
	BatchSize int   `toml:"batch_size"`
	Retry     Retry `toml:"retry"`
	// SkipExisting skips a (session, speaker) pair that already has segments.
	SkipExisting bool `toml:"skip_existing"`
	// WindowSeconds bounds synthesized segments when the provider only returns words.
	WindowSeconds float64 `toml:"window_seconds"`
}

// Summary contains summarization settings.
type Summary struct {
	MinTranscriptChars int   `toml:"min_transcript_chars"`
	Retry              Retry `toml:"retry"`
}

// Safety contains content-safety analyzer settings.
type Safety struct {
	PlatformDomain      string   `toml:"platform_domain"`
	InappropriateTerms  []string `toml:"inappropriate_terms"`
	MinWordCount        int      `toml:"min_word_count"`
	MinEngagementTerms  int      `toml:"min_engagement_terms"`
	DedupeUnresolved    bool     `toml:"dedupe_unresolved"`
	ExcerptWindow       int      `toml:"excerpt_window"`
	FallbackExcerptSize int      `toml:"fallback_excerpt_size"`
}

// Notifications contains dispatcher settings.
type Notifications struct {
	PreviewChars int `toml:"preview_chars"`
}

// Slack mirrors critical safety escalations into a Slack channel.
type Slack struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	Channel  string `toml:"channel"`
}

// API contains trigger API settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Workflow contains daemon scheduling settings.
type Workflow struct {
	SweepSchedule string `toml:"sweep_schedule"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for recap.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Database: SQLite or MySQL store
//   - Transcription: speech-to-text provider
//   - LLM: summary generation provider
//   - Ingest, Summary, Safety, Notifications: per-stage behaviour
//   - Slack: optional escalation mirror
//   - API, Workflow: daemon trigger surface and sweeper
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Database      Database      `toml:"database"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Ingest        Ingest        `toml:"ingest"`
	Summary       Summary       `toml:"summary"`
	Safety        Safety        `toml:"safety"`
	Notifications Notifications `toml:"notifications"`
	Slack         Slack         `toml:"slack"`
	API           API           `toml:"api"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("recap.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	return filepath.Join(c.Paths.DataDir, c.Database.Path)
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "recap.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
