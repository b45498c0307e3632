package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/store"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Create and inspect sessions",
	}
	sessionCmd.AddCommand(newSessionCreateCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionPendingCommand(ctx))
	return sessionCmd
}

func newSessionCreateCommand(ctx *commandContext) *cobra.Command {
	var session store.Session
	var kind string

	cmd := &cobra.Command{
		Use:   "create <session-id>",
		Short: "Create or update a session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session.ID = args[0]
			session.Kind = store.SessionKind(kind)
			return ctx.withPipeline(func(p *pipeline) error {
				saved, err := p.manager.RegisterSession(cmd.Context(), session)
				if err != nil {
					return err
				}
				return renderSession(cmd, ctx, saved)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(store.KindTrial), "Session kind (trial or recurring)")
	cmd.Flags().StringVar(&session.RecurringID, "recurring-id", "", "Recurring series identifier")
	cmd.Flags().StringVar(&session.TutorID, "tutor", "", "Tutor account id")
	cmd.Flags().StringVar(&session.LearnerID, "learner", "", "Learner account id")
	cmd.Flags().StringVar(&session.GuardianID, "guardian", "", "Guardian account id")
	cmd.Flags().IntVar(&session.ExpectedSpeakers, "expected-speakers", 0, "Speaker channels to wait for before the session is ready (0 waits for finalize)")
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				session, err := p.manager.Session(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return renderSession(cmd, ctx, session)
			})
		},
	}
}

func newSessionPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List sessions that are not yet notified",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				states := append([]store.State{store.StateCollecting}, store.PendingStates...)
				sessions, err := p.store.SessionsInStates(cmd.Context(), states...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					out := make([]api.Session, 0, len(sessions))
					for i := range sessions {
						out = append(out, api.FromSession(&sessions[i]))
					}
					return writeJSON(cmd, out)
				}
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					rows = append(rows, []string{s.ID, string(s.Kind), string(s.State), strconv.Itoa(s.ExpectedSpeakers), api.FormatTime(s.UpdatedAt)})
				}
				printTable(cmd, []string{"Session", "Kind", "State", "Speakers", "Updated"}, rows, 4)
				return nil
			})
		},
	}
}

func renderSession(cmd *cobra.Command, ctx *commandContext, session *store.Session) error {
	dto := api.FromSession(session)
	if ctx.jsonOutput() {
		return writeJSON(cmd, dto)
	}
	printFields(cmd, [][2]string{
		{"ID", dto.ID},
		{"Kind", dto.Kind},
		{"State", dto.State},
		{"Recurring", dto.RecurringID},
		{"Tutor", dto.TutorID},
		{"Learner", dto.LearnerID},
		{"Guardian", dto.GuardianID},
		{"Expected speakers", strconv.Itoa(dto.ExpectedSpeakers)},
		{"Summary", dto.Summary},
		{"Updated", dto.UpdatedAt},
	})
	return nil
}
