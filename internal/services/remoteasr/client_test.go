package remoteasr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recap/internal/retry"
	"recap/internal/services"
	"recap/internal/transcription"
)

func TestTranscribeSendsURLAndParsesUtterances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token secret" {
			t.Fatalf("unexpected auth header %q", got)
		}
		q := r.URL.Query()
		if q.Get("detect_language") != "true" || q.Get("utterances") != "true" || q.Get("model") != "nova-2" {
			t.Fatalf("unexpected query %v", q)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["url"] != "https://cdn.example.com/a.webm" {
			t.Fatalf("unexpected url %q", body["url"])
		}
		_, _ = w.Write([]byte(`{"results":{
			"utterances":[{"start":0.5,"end":2.0,"transcript":"hello","confidence":0.93}],
			"channels":[{"detected_language":"en","alternatives":[{"transcript":"hello","words":[{"word":"hello","start":0.5,"end":2.0,"confidence":0.93}]}]}]
		}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, Model: "nova-2"})
	result, err := client.Transcribe(context.Background(), transcription.Request{AudioURL: "https://cdn.example.com/a.webm", Utterances: true})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Utterances) != 1 || result.Utterances[0].Text != "hello" || *result.Utterances[0].Confidence != 0.93 {
		t.Fatalf("unexpected utterances %+v", result.Utterances)
	}
	if result.Language != "en" || len(result.Words) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTranscribeWordOnlyResponseUsesPunctuatedWords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("language") != "es" {
			t.Fatalf("expected explicit language, got %v", r.URL.Query())
		}
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hola a todos","words":[
			{"word":"hola","punctuated_word":"Hola","start":0,"end":0.4},
			{"word":"a","start":0.5,"end":0.6},
			{"word":"todos","punctuated_word":"todos.","start":0.7,"end":1.1}
		]}]}]}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	result, err := client.Transcribe(context.Background(), transcription.Request{AudioURL: "u", Language: "es"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Utterances) != 0 {
		t.Fatalf("expected no utterances, got %+v", result.Utterances)
	}
	segments := transcription.Normalize(result, 3)
	if len(segments) != 1 || segments[0].Text != "Hola a todos." {
		t.Fatalf("unexpected normalized segments %+v", segments)
	}
}

func TestTranscribeClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		marker error
	}{
		{"unavailable", http.StatusServiceUnavailable, services.ErrTransient},
		{"rate limited", http.StatusTooManyRequests, services.ErrTransient},
		{"unauthorized", http.StatusUnauthorized, services.ErrConfiguration},
		{"bad request", http.StatusBadRequest, services.ErrExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
			_, err := client.Transcribe(context.Background(), transcription.Request{AudioURL: "u"})
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			var hinted retry.Hinted
			if !errors.As(err, &hinted) || hinted.RetryAfter() != 2*time.Second {
				t.Fatalf("expected retry-after hint, got %v", err)
			}
		})
	}
}

func TestTranscribeRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	_, err := client.Transcribe(context.Background(), transcription.Request{AudioURL: "u"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !services.IsPermanent(err) {
		t.Fatal("missing credentials must not be retried")
	}
}
