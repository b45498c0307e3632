package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"recap/internal/services"
	"recap/internal/transcription"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Name identifies the provider in logs.
func (s *Service) Name() string {
	return "whisperx"
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe runs WhisperX against the audio locator and returns its segments
// as utterances.
func (s *Service) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	source := strings.TrimSpace(req.AudioURL)
	if source == "" {
		return nil, services.Wrap(services.ErrInput, "whisperx", "transcribe", "audio locator required", nil)
	}
	outputDir := s.cfg.WorkDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "whisperx", "prepare", "ensure output dir", err)
	}

	if err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir, req.Language)...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, services.Wrap(services.ErrConfiguration, "whisperx", "run", "uvx not found on PATH", err)
		}
		return nil, services.Wrap(services.ErrExternal, "whisperx", "run", "transcription failed", err)
	}

	jsonPath := filepath.Join(outputDir, outputBaseName(source)+".json")
	payload, err := loadPayload(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "whisperx", "parse", jsonPath, err)
	}
	return payload.result(), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 24)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--vad_method", VADMethodSilero,
	)

	if code := isoLanguage(lang); code != "" {
		args = append(args, "--language", code)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// isoLanguage reduces a BCP-47 tag to the two-letter code WhisperX expects.
// Unknown or empty tags leave language detection to WhisperX.
func isoLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// outputBaseName mirrors how WhisperX names output files after the input.
func outputBaseName(source string) string {
	name := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && u.Path != "" {
		name = path.Base(u.Path)
	} else {
		name = filepath.Base(source)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Score *float64 `json:"score"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

func loadPayload(jsonPath string) (whisperXPayload, error) {
	var payload whisperXPayload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

func (p whisperXPayload) result() *transcription.Result {
	result := &transcription.Result{Language: p.Language}
	texts := make([]string, 0, len(p.Segments))
	for _, seg := range p.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		result.Utterances = append(result.Utterances, transcription.Utterance{
			Start:      seg.Start,
			End:        seg.End,
			Text:       text,
			Confidence: meanScore(seg.Words),
		})
	}
	result.Text = strings.Join(texts, " ")
	return result
}

func meanScore(words []Word) *float64 {
	var (
		sum   float64
		count int
	)
	for _, w := range words {
		if w.Score != nil {
			sum += *w.Score
			count++
		}
	}
	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}
