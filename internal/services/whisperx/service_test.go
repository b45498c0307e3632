package whisperx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"recap/internal/services"
	"recap/internal/transcription"
)

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestTranscribeParsesSegments(t *testing.T) {
	workDir := t.TempDir()
	svc := NewService(Config{Model: "small", WorkDir: workDir})

	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		gotArgs = args
		out := argValue(args, "--output_dir")
		payload := `{"language":"en","segments":[
			{"text":" Hello there. ","start":0.0,"end":1.4,"words":[{"word":"Hello","start":0.0,"end":0.5,"score":0.8},{"word":"there.","start":0.6,"end":1.4,"score":0.6}]},
			{"text":"  ","start":1.5,"end":1.6,"words":[]},
			{"text":"Let's start.","start":2.0,"end":3.0,"words":[{"word":"Let's"}]}
		]}`
		return os.WriteFile(filepath.Join(out, "tutor-channel.json"), []byte(payload), 0o644)
	})

	result, err := svc.Transcribe(context.Background(), transcription.Request{
		AudioURL: "https://media.example.com/rec/tutor-channel.webm?sig=abc",
		Language: "en-US",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if argValue(gotArgs, "--language") != "en" {
		t.Fatalf("expected iso language code, args=%v", gotArgs)
	}
	if argValue(gotArgs, "--model") != "small" || argValue(gotArgs, "--output_format") != "json" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	if !slices.Contains(gotArgs, "https://media.example.com/rec/tutor-channel.webm?sig=abc") {
		t.Fatalf("expected audio url passed through, args=%v", gotArgs)
	}
	if len(result.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %+v", result.Utterances)
	}
	first := result.Utterances[0]
	if first.Text != "Hello there." || first.Confidence == nil || math.Abs(*first.Confidence-0.7) > 1e-9 {
		t.Fatalf("unexpected first utterance %+v", first)
	}
	if result.Utterances[1].Confidence != nil {
		t.Fatal("expected nil confidence without word scores")
	}
	if result.Text != "Hello there. Let's start." || result.Language != "en" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTranscribeAutoDetectOmitsLanguage(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir(), CUDAEnabled: true})
	svc.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		if slices.Contains(args, "--language") {
			t.Fatalf("language should be omitted for auto-detect: %v", args)
		}
		if argValue(args, "--device") != CUDADevice {
			t.Fatalf("expected cuda device: %v", args)
		}
		return os.WriteFile(filepath.Join(argValue(args, "--output_dir"), "a.json"), []byte(`{"segments":[]}`), 0o644)
	})
	result, err := svc.Transcribe(context.Background(), transcription.Request{AudioURL: "/recordings/a.wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Utterances) != 0 {
		t.Fatalf("expected no utterances, got %+v", result.Utterances)
	}
}

func TestTranscribeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		runErr error
		marker error
	}{
		{"missing binary", fmt.Errorf("uvx: %w", exec.ErrNotFound), services.ErrConfiguration},
		{"tool failure", errors.New("exit status 1"), services.ErrExternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Config{WorkDir: t.TempDir()})
			svc.WithCommandRunner(func(context.Context, string, ...string) error { return tt.runErr })
			_, err := svc.Transcribe(context.Background(), transcription.Request{AudioURL: "a.wav"})
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}

	svc := NewService(Config{})
	if _, err := svc.Transcribe(context.Background(), transcription.Request{}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for empty locator, got %v", err)
	}
}

func TestIsoLanguage(t *testing.T) {
	cases := map[string]string{"": "", "en": "en", "pt-BR": "pt", "zz-invalid-tag!!": ""}
	for in, want := range cases {
		if got := isoLanguage(in); got != want {
			t.Fatalf("isoLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
