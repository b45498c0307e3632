package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDatabase()
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeSafety()
	c.normalizeSlack()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if dir := strings.TrimSpace(c.Transcription.WhisperXWorkDir); dir != "" {
		if c.Transcription.WhisperXWorkDir, err = expandPath(dir); err != nil {
			return fmt.Errorf("transcription.whisperx_work_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeDatabase() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDatabaseDriver
	}
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" {
		if value, ok := os.LookupEnv("RECAP_DATABASE_DSN"); ok {
			c.Database.DSN = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = defaultTranscriptionProvider
	}
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv("RECAP_TRANSCRIPTION_API_KEY"); ok {
			c.Transcription.APIKey = strings.TrimSpace(value)
		}
	}
	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	c.Transcription.WhisperXModel = strings.TrimSpace(c.Transcription.WhisperXModel)
	if c.Transcription.WhisperXModel == "" {
		c.Transcription.WhisperXModel = defaultWhisperXModel
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		envKey := "OPENROUTER_API_KEY"
		if c.LLM.Provider == LLMProviderGemini {
			envKey = "GEMINI_API_KEY"
		}
		if value, ok := os.LookupEnv(envKey); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	switch {
	case c.LLM.Provider == LLMProviderGemini && c.LLM.BaseURL == defaultLLMBaseURL:
		// genai picks its own endpoint when no override is set.
		c.LLM.BaseURL = ""
	case c.LLM.Provider != LLMProviderGemini && c.LLM.BaseURL == "":
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" || (c.LLM.Provider == LLMProviderGemini && c.LLM.Model == defaultLLMModel) {
		if c.LLM.Provider == LLMProviderGemini {
			c.LLM.Model = defaultGeminiModel
		} else {
			c.LLM.Model = defaultLLMModel
		}
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
}

func (c *Config) normalizeSafety() {
	c.Safety.PlatformDomain = strings.ToLower(strings.TrimSpace(c.Safety.PlatformDomain))
	terms := make([]string, 0, len(c.Safety.InappropriateTerms))
	for _, term := range c.Safety.InappropriateTerms {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			terms = append(terms, term)
		}
	}
	c.Safety.InappropriateTerms = terms
}

func (c *Config) normalizeSlack() {
	c.Slack.BotToken = strings.TrimSpace(c.Slack.BotToken)
	if c.Slack.BotToken == "" {
		if value, ok := os.LookupEnv("SLACK_BOT_TOKEN"); ok {
			c.Slack.BotToken = strings.TrimSpace(value)
		}
	}
	c.Slack.Channel = strings.TrimSpace(c.Slack.Channel)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("RECAP_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	c.Workflow.SweepSchedule = strings.TrimSpace(c.Workflow.SweepSchedule)
	if c.Workflow.SweepSchedule == "" {
		c.Workflow.SweepSchedule = defaultSweepSchedule
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
