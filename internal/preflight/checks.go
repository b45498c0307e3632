package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"golang.org/x/sys/unix"

	"recap/internal/config"
	"recap/internal/services/whisperx"
)

const (
	databaseTimeout = 5 * time.Second
	slackTimeout    = 10 * time.Second
)

// Binary describes an executable a provider shells out to.
type Binary struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// CheckBinaries reports whether each binary resolves on PATH.
func CheckBinaries(binaries []Binary) []Result {
	results := make([]Result, 0, len(binaries))
	for _, bin := range binaries {
		cmd := strings.TrimSpace(bin.Command)
		result := Result{Name: bin.Name, Optional: bin.Optional}
		switch {
		case cmd == "":
			result.Detail = "command not configured"
		default:
			if path, err := exec.LookPath(cmd); err != nil {
				result.Detail = fmt.Sprintf("binary %q not found (%s)", cmd, bin.Description)
			} else {
				result.Passed = true
				result.Detail = path
			}
		}
		results = append(results, result)
	}
	return results
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckDatabase pings the store.
func CheckDatabase(ctx context.Context, db Pinger) Result {
	const name = "Database"
	checkCtx, cancel := context.WithTimeout(ctx, databaseTimeout)
	defer cancel()
	if err := db.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckTranscription validates the configured speech-to-text provider.
func CheckTranscription(cfg config.Transcription) []Result {
	switch cfg.Provider {
	case config.TranscriptionProviderWhisperX:
		return CheckBinaries([]Binary{
			{Name: "uvx", Command: whisperx.UVXCommand, Description: "launches WhisperX"},
			{Name: "FFmpeg", Command: "ffmpeg", Description: "decodes audio for WhisperX"},
		})
	default:
		const name = "Transcription API"
		if strings.TrimSpace(cfg.APIKey) == "" {
			return []Result{{Name: name, Detail: "API key missing (set transcription.api_key or RECAP_TRANSCRIPTION_API_KEY)"}}
		}
		return []Result{{Name: name, Passed: true, Detail: cfg.BaseURL}}
	}
}

// CheckLLM validates that the summary model has credentials.
func CheckLLM(cfg config.LLM) Result {
	name := "LLM (" + cfg.Provider + ")"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing; summaries will fail"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Model}
}

// CheckSlack verifies the escalation mirror's bot token with auth.test.
func CheckSlack(ctx context.Context, cfg config.Slack, opts ...slackapi.Option) Result {
	const name = "Slack"
	if strings.TrimSpace(cfg.BotToken) == "" {
		return Result{Name: name, Detail: "bot token missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, slackTimeout)
	defer cancel()

	resp, err := slackapi.New(cfg.BotToken, opts...).AuthTestContext(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: "auth failed (" + summarizeError(err) + ")"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authenticated as %s in %s; posting to %s", resp.User, resp.Team, cfg.Channel)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
