package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"recap/internal/config"
	"recap/internal/services/remoteasr"
	"recap/internal/services/whisperx"
	"recap/internal/transcription"
)

// NewProvider builds the transcription provider selected in configuration.
func NewProvider(cfg *config.Config) (transcription.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ingest: config is nil")
	}
	tc := cfg.Transcription
	switch strings.ToLower(strings.TrimSpace(tc.Provider)) {
	case "", config.TranscriptionProviderRemote:
		return remoteasr.NewClient(remoteasr.Config{
			APIKey:         tc.APIKey,
			BaseURL:        tc.BaseURL,
			Model:          tc.Model,
			TimeoutSeconds: tc.TimeoutSeconds,
		}), nil
	case config.TranscriptionProviderWhisperX:
		workDir := tc.WhisperXWorkDir
		if workDir == "" {
			workDir = filepath.Join(cfg.Paths.DataDir, "whisperx")
		}
		return whisperx.NewService(whisperx.Config{
			Model:       tc.WhisperXModel,
			CUDAEnabled: tc.WhisperXCUDAEnabled,
			WorkDir:     workDir,
		}), nil
	default:
		return nil, fmt.Errorf("ingest: unsupported transcription provider %q", tc.Provider)
	}
}
