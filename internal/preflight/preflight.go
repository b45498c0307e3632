package preflight

import (
	"context"

	slackapi "github.com/slack-go/slack"

	"recap/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes RunAll.
type Options struct {
	// Database is probed when set.
	Database Pinger
	// SlackOptions are passed to the Slack client used for the auth probe.
	SlackOptions []slackapi.Option
}

// RunAll executes all applicable preflight checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if opts.Database != nil {
		results = append(results, CheckDatabase(ctx, opts.Database))
	}
	results = append(results, CheckTranscription(cfg.Transcription)...)
	results = append(results, CheckLLM(cfg.LLM))
	if cfg.Slack.Enabled {
		results = append(results, CheckSlack(ctx, cfg.Slack, opts.SlackOptions...))
	}
	return results
}

// Failed returns the required checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			out = append(out, r)
		}
	}
	return out
}
