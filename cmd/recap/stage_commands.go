package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/ingest"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "ingest <session-id> <speaker-id> <audio-url>",
		Short: "Transcribe one speaker channel and store its segments",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				req := ingest.Request{SessionID: args[0], SpeakerID: args[1], AudioURL: args[2], Language: language}
				res, err := p.manager.Ingest(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.IngestResponse{
						SessionID: req.SessionID, SpeakerID: req.SpeakerID,
						Segments: res.Segments, Batches: res.Batches, Skipped: res.Skipped,
					})
				}
				if res.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "Speaker %s already ingested for %s; skipped\n", req.SpeakerID, req.SessionID)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stored %d segments in %d batches\n", res.Segments, res.Batches)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "Language hint for the transcription provider")
	return cmd
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <session-id>",
		Short: "Mark a session as complete so it can be processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				state, err := p.manager.Finalize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"session_id": args[0], "state": string(state)})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s is %s\n", args[0], state)
				return nil
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <session-id>",
		Short: "Aggregate, analyze, summarize and notify a finalized session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				res, err := p.manager.Run(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromRunResult(res)
				if ctx.jsonOutput() {
					return writeJSON(cmd, dto)
				}
				printFields(cmd, [][2]string{
					{"Session", dto.SessionID},
					{"State", dto.State},
					{"Flags", strconv.Itoa(dto.Flags)},
					{"Escalations", strconv.Itoa(dto.Escalations)},
					{"Notified", strings.Join(dto.Notified, ", ")},
					{"Skipped", dto.Skipped},
				})
				return nil
			})
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run every finalized session that has not been notified",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				res, err := p.manager.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"sessions": res.Sessions, "completed": res.Completed, "failed": res.Failed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Swept %d sessions: %d completed, %d failed\n", res.Sessions, res.Completed, res.Failed)
				return nil
			})
		},
	}
}

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Print the aggregated transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				text, err := p.manager.Transcript(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"session_id": args[0], "transcript": text})
				}
				if text != "" {
					fmt.Fprintln(cmd.OutOrStdout(), text)
				}
				return nil
			})
		},
	}
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <session-id>",
		Short: "Run a safety pass over the current transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				report, err := p.manager.Analyze(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromReport(args[0], report)
				if ctx.jsonOutput() {
					return writeJSON(cmd, dto)
				}
				renderFlags(cmd, dto.Flags)
				fmt.Fprintf(cmd.OutOrStdout(), "%d flagged, %d suppressed, %d escalations\n", len(dto.Flags), dto.Suppressed, dto.Escalations)
				if dto.Failed {
					return fmt.Errorf("safety analysis for %s did not complete; see the log for details", args[0])
				}
				return nil
			})
		},
	}
}

func newSummarizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <session-id>",
		Short: "Generate and store the session summary if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				text, err := p.manager.Summarize(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"session_id": args[0], "summary": text})
				}
				if text == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Transcript too short to summarize")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
}

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <session-id>",
		Short: "Send the stored summary to session participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				res, err := p.manager.Notify(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromDispatch(args[0], res)
				if ctx.jsonOutput() {
					return writeJSON(cmd, dto)
				}
				if dto.Skipped != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Skipped: %s\n", dto.Skipped)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Notified %s\n", strings.Join(dto.Recipients, ", "))
				if len(dto.Failed) > 0 {
					return fmt.Errorf("failed to notify %s", strings.Join(dto.Failed, ", "))
				}
				return nil
			})
		},
	}
}
