package config

// Provider names accepted in configuration.
const (
	TranscriptionProviderRemote   = "remote"
	TranscriptionProviderWhisperX = "whisperx"
	LLMProviderOpenRouter         = "openrouter"
	LLMProviderGemini             = "gemini"
)

const (
	defaultConfigPath            = "~/.config/recap/config.toml"
	defaultDataDir               = "~/.local/share/recap"
	defaultLogDir                = "~/.local/share/recap/logs"
	defaultDatabaseDriver        = "sqlite"
	defaultDatabasePath          = "recap.db"
	defaultTranscriptionProvider = TranscriptionProviderRemote
	defaultTranscriptionBaseURL  = "https://api.deepgram.com/v1/listen"
	defaultTranscriptionModel    = "nova-2"
	defaultTranscriptionTimeout  = 300
	defaultWhisperXModel         = "large-v3"
	defaultLLMProvider           = LLMProviderOpenRouter
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultGeminiModel           = "gemini-2.5-flash"
	defaultLLMReferer            = "https://github.com/recap-dev/recap"
	defaultLLMTitle              = "Recap Session Summaries"
	defaultLLMTimeoutSeconds     = 60
	defaultLLMMaxTokens          = 600
	defaultLLMTemperature        = 0.3
	defaultIngestBatchSize       = 100
	defaultIngestAttempts        = 3
	defaultIngestBaseDelay       = 1.0
	defaultRetryMultiplier       = 2.0
	defaultRetryMaxDelay         = 30.0
	defaultWindowSeconds         = 3.0
	defaultSummaryAttempts       = 2
	defaultSummaryBaseDelay      = 2.0
	defaultMinTranscriptChars    = 10
	defaultPlatformDomain        = "recap.app"
	defaultMinWordCount          = 100
	defaultMinEngagementTerms    = 3
	defaultExcerptWindow         = 250
	defaultFallbackExcerptSize   = 200
	defaultNotificationPreview   = 100
	defaultAPIBind               = "127.0.0.1:7590"
	defaultSweepSchedule         = "@every 1m"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			Driver: defaultDatabaseDriver,
			Path:   defaultDatabasePath,
		},
		Transcription: Transcription{
			Provider:       defaultTranscriptionProvider,
			BaseURL:        defaultTranscriptionBaseURL,
			Model:          defaultTranscriptionModel,
			TimeoutSeconds: defaultTranscriptionTimeout,
			WhisperXModel:  defaultWhisperXModel,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
		},
		Ingest: Ingest{
			BatchSize: defaultIngestBatchSize,
			Retry: Retry{
				MaxAttempts:      defaultIngestAttempts,
				BaseDelaySeconds: defaultIngestBaseDelay,
				Multiplier:       defaultRetryMultiplier,
				MaxDelaySeconds:  defaultRetryMaxDelay,
			},
			WindowSeconds: defaultWindowSeconds,
		},
		Summary: Summary{
			MinTranscriptChars: defaultMinTranscriptChars,
			Retry: Retry{
				MaxAttempts:      defaultSummaryAttempts,
				BaseDelaySeconds: defaultSummaryBaseDelay,
				Multiplier:       defaultRetryMultiplier,
				MaxDelaySeconds:  defaultRetryMaxDelay,
			},
		},
		Safety: Safety{
			PlatformDomain:      defaultPlatformDomain,
			MinWordCount:        defaultMinWordCount,
			MinEngagementTerms:  defaultMinEngagementTerms,
			ExcerptWindow:       defaultExcerptWindow,
			FallbackExcerptSize: defaultFallbackExcerptSize,
		},
		Notifications: Notifications{
			PreviewChars: defaultNotificationPreview,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Workflow: Workflow{
			SweepSchedule: defaultSweepSchedule,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
