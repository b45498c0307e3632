package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"recap/internal/services"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig captures settings for the Gemini API provider.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// TimeoutSeconds bounds each request.
	TimeoutSeconds int
}

// Gemini generates text through google.golang.org/genai.
type Gemini struct {
	cfg        GeminiConfig
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini constructs a Gemini provider. The underlying genai client is
// created lazily on first use.
func NewGemini(cfg GeminiConfig, opts ...GeminiOption) *Gemini {
	g := &Gemini{cfg: GeminiConfig{
		APIKey:         strings.TrimSpace(cfg.APIKey),
		Model:          strings.TrimSpace(cfg.Model),
		BaseURL:        strings.TrimSpace(cfg.BaseURL),
		TimeoutSeconds: cfg.TimeoutSeconds,
	}}
	if g.cfg.Model == "" {
		g.cfg.Model = defaultGeminiModel
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeminiOption customizes the Gemini provider.
type GeminiOption func(*Gemini)

// WithGeminiHTTPClient overrides the HTTP client genai uses.
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(g *Gemini) {
		g.httpClient = client
	}
}

// Name identifies the provider in logs.
func (g *Gemini) Name() string {
	return "gemini"
}

func (g *Gemini) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:     g.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// Generate issues one GenerateContent call with the prompt's system
// instruction and returns the concatenated candidate text.
func (g *Gemini) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if g.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "llm", "generate", "gemini api key not configured", nil)
	}
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return "", services.Wrap(services.ErrInput, "llm", "generate", "user prompt required", nil)
	}
	client, err := g.genaiClient(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "llm", "generate", "create gemini client", err)
	}

	if g.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(g.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(prompt.Temperature)),
	}
	if prompt.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(prompt.MaxTokens)
	}
	if system := strings.TrimSpace(prompt.System); system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(user), genCfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if text := candidateText(result); text != "" {
		return text, nil
	}
	return "", services.Wrap(services.ErrTransient, "llm", "generate", "empty response from gemini", nil)
}

func candidateText(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTransient, "llm", "generate", "gemini request timed out", err)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "llm", "generate", "gemini credentials rejected", err)
		case apiErr.Code == http.StatusTooManyRequests, apiErr.Code == http.StatusRequestTimeout, apiErr.Code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "llm", "generate", "gemini unavailable", err)
		default:
			return services.Wrap(services.ErrExternal, "llm", "generate", "gemini rejected request", err)
		}
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return services.Wrap(services.ErrTransient, "llm", "generate", "gemini rate limited", err)
	}
	return services.Wrap(services.ErrTransient, "llm", "generate", "gemini call failed", err)
}
