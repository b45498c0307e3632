package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"

	"recap/internal/config"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		path string
		pass bool
	}{
		{"ok", dir, true},
		{"missing", filepath.Join(dir, "nope"), false},
		{"file", file, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckDirectoryAccess("test", tc.path)
			if result.Passed != tc.pass {
				t.Fatalf("Passed = %v, want %v (%s)", result.Passed, tc.pass, result.Detail)
			}
			if result.Detail == "" {
				t.Fatal("expected non-empty detail")
			}
		})
	}
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	results := CheckBinaries([]Binary{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary", Description: "needed"},
		{Name: "Unset"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Detail != present {
		t.Fatalf("expected present binary to pass, got %+v", results[0])
	}
	if results[1].Passed || !strings.Contains(results[1].Detail, "clearly-not-present-binary") {
		t.Fatalf("expected missing binary to fail, got %+v", results[1])
	}
	if results[2].Passed || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected result for unset command: %+v", results[2])
	}
}

func TestCheckTranscriptionWhisperXUsesPath(t *testing.T) {
	binDir := t.TempDir()
	for _, name := range []string{"uvx", "ffmpeg"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir)

	results := CheckTranscription(config.Transcription{Provider: config.TranscriptionProviderWhisperX})
	if len(results) != 2 || len(Failed(results)) != 0 {
		t.Fatalf("expected both binaries found, got %+v", results)
	}
}

func TestCheckTranscriptionRemoteNeedsKey(t *testing.T) {
	results := CheckTranscription(config.Transcription{Provider: config.TranscriptionProviderRemote})
	if len(results) != 1 || results[0].Passed {
		t.Fatalf("expected missing key failure, got %+v", results)
	}
	results = CheckTranscription(config.Transcription{Provider: config.TranscriptionProviderRemote, APIKey: "k", BaseURL: "https://asr.example"})
	if !results[0].Passed {
		t.Fatalf("expected pass with key, got %+v", results[0])
	}
}

func TestCheckDatabase(t *testing.T) {
	ok := CheckDatabase(context.Background(), pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %+v", ok)
	}
	bad := CheckDatabase(context.Background(), pingFunc(func(context.Context) error { return errors.New("database is locked") }))
	if bad.Passed || bad.Detail != "database is locked" {
		t.Fatalf("expected failure detail, got %+v", bad)
	}
}

func slackServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth.test" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckSlack(t *testing.T) {
	srv := slackServer(t, `{"ok":true,"user":"recap-bot","team":"Tutoring"}`)
	cfg := config.Slack{Enabled: true, BotToken: "xoxb-test", Channel: "#safety"}
	result := CheckSlack(context.Background(), cfg, slackapi.OptionAPIURL(srv.URL+"/"))
	if !result.Passed || !strings.Contains(result.Detail, "recap-bot") {
		t.Fatalf("expected pass, got %+v", result)
	}

	denied := slackServer(t, `{"ok":false,"error":"invalid_auth"}`)
	result = CheckSlack(context.Background(), cfg, slackapi.OptionAPIURL(denied.URL+"/"))
	if result.Passed || !strings.Contains(result.Detail, "invalid_auth") {
		t.Fatalf("expected invalid_auth failure, got %+v", result)
	}
}

func TestRunAllGatesChecks(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = base
	cfg.Transcription.APIKey = "k"
	cfg.LLM.APIKey = "k"

	results := RunAll(context.Background(), &cfg, Options{})
	for _, r := range results {
		if r.Name == "Slack" || r.Name == "Database" {
			t.Fatalf("unexpected gated check %q", r.Name)
		}
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}

	cfg.LLM.APIKey = ""
	results = RunAll(context.Background(), &cfg, Options{Database: pingFunc(func(context.Context) error { return nil })})
	failed := Failed(results)
	if len(failed) != 1 || !strings.HasPrefix(failed[0].Name, "LLM") {
		t.Fatalf("expected only the LLM check to fail, got %+v", failed)
	}
}
