package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recap/internal/services"
)

func TestGeminiGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := body["systemInstruction"]; !ok {
			t.Fatalf("expected system instruction in %v", body)
		}
		genCfg, _ := body["generationConfig"].(map[string]any)
		if genCfg["maxOutputTokens"] != float64(600) {
			t.Fatalf("unexpected generation config %v", genCfg)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Summary "},{"text":"text."}]}}]}`))
	}))
	defer server.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", Model: "gemini-test", BaseURL: server.URL}, WithGeminiHTTPClient(server.Client()))
	text, err := g.Generate(context.Background(), Prompt{System: "summarize", User: "transcript", MaxTokens: 600, Temperature: 0.3})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Summary text." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestGeminiClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		marker error
	}{
		{http.StatusServiceUnavailable, services.ErrTransient},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusForbidden, services.ErrConfiguration},
		{http.StatusBadRequest, services.ErrExternal},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope","status":"ERR"}}`, tt.status)
		}))
		g := NewGemini(GeminiConfig{APIKey: "k", BaseURL: server.URL}, WithGeminiHTTPClient(server.Client()))
		_, err := g.Generate(context.Background(), Prompt{User: "x"})
		server.Close()
		if !errors.Is(err, tt.marker) {
			t.Fatalf("status %d: expected %v, got %v", tt.status, tt.marker, err)
		}
	}
}

func TestGeminiMissingKey(t *testing.T) {
	g := NewGemini(GeminiConfig{})
	_, err := g.Generate(context.Background(), Prompt{User: "x"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
