package remoteasr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recap/internal/services"
	"recap/internal/transcription"
)

const (
	defaultBaseURL     = "https://api.deepgram.com/v1/listen"
	defaultHTTPTimeout = 5 * time.Minute
	maxErrorBody       = 512
)

// Config captures the runtime settings required to call the provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client wraps the remote transcription API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// Name identifies the provider in logs.
func (c *Client) Name() string {
	return "remote"
}

type statusError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("transcription request: http %d: %s", e.StatusCode, e.Body)
}

// RetryAfter exposes the provider's Retry-After hint.
func (e *statusError) RetryAfter() time.Duration {
	return e.retryAfter
}

type listenRequest struct {
	URL string `json:"url"`
}

type listenResponse struct {
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
	Results struct {
		Utterances []struct {
			Start      float64  `json:"start"`
			End        float64  `json:"end"`
			Transcript string   `json:"transcript"`
			Confidence *float64 `json:"confidence"`
		} `json:"utterances"`
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string `json:"transcript"`
				Words      []struct {
					Word           string   `json:"word"`
					PunctuatedWord string   `json:"punctuated_word"`
					Start          float64  `json:"start"`
					End            float64  `json:"end"`
					Confidence     *float64 `json:"confidence"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe submits the audio locator and returns the provider's native
// segmentation converted to transcription types.
func (c *Client) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "remote", "api key not configured", nil)
	}
	audioURL := strings.TrimSpace(req.AudioURL)
	if audioURL == "" {
		return nil, services.Wrap(services.ErrInput, "transcription", "remote", "audio url required", nil)
	}

	endpoint, err := c.endpoint(req)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcription", "remote", "build url", err)
	}
	body, err := json.Marshal(listenRequest{URL: audioURL})
	if err != nil {
		return nil, fmt.Errorf("transcription request: encode body: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transcription request: new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "transcription", "remote", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp, payload)
	}

	var decoded listenResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, services.Wrap(services.ErrExternal, "transcription", "remote", "decode response", err)
	}
	return decoded.result(), nil
}

func (c *Client) endpoint(req transcription.Request) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if c.cfg.Model != "" {
		q.Set("model", c.cfg.Model)
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		q.Set("language", lang)
	} else {
		q.Set("detect_language", "true")
	}
	if req.Utterances {
		q.Set("utterances", "true")
	}
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r listenResponse) result() *transcription.Result {
	result := &transcription.Result{}
	for _, u := range r.Results.Utterances {
		result.Utterances = append(result.Utterances, transcription.Utterance{
			Start:      u.Start,
			End:        u.End,
			Text:       u.Transcript,
			Confidence: u.Confidence,
		})
	}
	if len(r.Results.Channels) > 0 {
		channel := r.Results.Channels[0]
		result.Language = channel.DetectedLanguage
		if len(channel.Alternatives) > 0 {
			alt := channel.Alternatives[0]
			result.Text = strings.TrimSpace(alt.Transcript)
			for _, w := range alt.Words {
				text := w.PunctuatedWord
				if text == "" {
					text = w.Word
				}
				result.Words = append(result.Words, transcription.Word{
					Text:       text,
					Start:      w.Start,
					End:        w.End,
					Confidence: w.Confidence,
				})
			}
		}
	}
	return result
}

func classifyStatus(resp *http.Response, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
	statusErr := &statusError{StatusCode: resp.StatusCode, Body: text, retryAfter: retryAfter}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "transcription", "remote", "credentials rejected", statusErr)
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "transcription", "remote", "provider unavailable", statusErr)
	default:
		return services.Wrap(services.ErrExternal, "transcription", "remote", "request rejected", statusErr)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTransient, "transcription", "remote", "timeout", err)
	}
	return services.Wrap(services.ErrTransient, "transcription", "remote", "http error", err)
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
