package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateRetry("ingest.retry", c.Ingest.Retry); err != nil {
		return err
	}
	if err := c.validateRetry("summary.retry", c.Summary.Retry); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateSlack(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "sqlite":
		return nil
	case "mysql":
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is mysql (or set RECAP_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("database.driver: unsupported value %q (expected sqlite or mysql)", c.Database.Driver)
	}
}

func (c *Config) validateProviders() error {
	switch c.Transcription.Provider {
	case TranscriptionProviderRemote, TranscriptionProviderWhisperX:
	default:
		return fmt.Errorf("transcription.provider: unsupported value %q (expected remote or whisperx)", c.Transcription.Provider)
	}
	switch c.LLM.Provider {
	case LLMProviderOpenRouter, LLMProviderGemini:
	default:
		return fmt.Errorf("llm.provider: unsupported value %q (expected openrouter or gemini)", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if err := ensurePositiveMap(map[string]int{
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRetry(name string, r Retry) error {
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("%s.max_attempts must be positive", name)
	}
	if r.BaseDelaySeconds < 0 {
		return fmt.Errorf("%s.base_delay_seconds must be >= 0", name)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("%s.multiplier must be >= 1", name)
	}
	if r.MaxDelaySeconds < 0 {
		return fmt.Errorf("%s.max_delay_seconds must be >= 0", name)
	}
	return nil
}

func (c *Config) validateStages() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.batch_size":            c.Ingest.BatchSize,
		"summary.min_transcript_chars": c.Summary.MinTranscriptChars,
		"safety.min_word_count":        c.Safety.MinWordCount,
		"safety.min_engagement_terms":  c.Safety.MinEngagementTerms,
		"safety.excerpt_window":        c.Safety.ExcerptWindow,
		"safety.fallback_excerpt_size": c.Safety.FallbackExcerptSize,
		"notifications.preview_chars":  c.Notifications.PreviewChars,
	}); err != nil {
		return err
	}
	if c.Ingest.WindowSeconds <= 0 {
		return errors.New("ingest.window_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSlack() error {
	if !c.Slack.Enabled {
		return nil
	}
	if c.Slack.BotToken == "" {
		return errors.New("slack.bot_token must be set when slack.enabled is true (or set SLACK_BOT_TOKEN)")
	}
	if c.Slack.Channel == "" {
		return errors.New("slack.channel must be set when slack.enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if _, err := cron.ParseStandard(c.Workflow.SweepSchedule); err != nil {
		return fmt.Errorf("workflow.sweep_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
