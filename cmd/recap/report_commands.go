package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/notifications"
)

func newFlagsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flags <session-id>",
		Short: "List safety flags for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				flags, err := p.manager.Flags(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromFlags(flags)
				if ctx.jsonOutput() {
					return writeJSON(cmd, dto)
				}
				renderFlags(cmd, dto)
				return nil
			})
		},
	}
}

func newNotificationsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notifications <session-id>",
		Short: "List notifications written for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				items, err := p.manager.Notifications(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				dto := api.FromNotifications(items)
				if ctx.jsonOutput() {
					return writeJSON(cmd, dto)
				}
				rows := make([][]string, 0, len(dto))
				for _, n := range dto {
					rows = append(rows, []string{n.RecipientID, n.Type, n.Title, notifications.Preview(n.Message, 60), n.CreatedAt})
				}
				printTable(cmd, []string{"Recipient", "Type", "Title", "Message", "Created"}, rows)
				return nil
			})
		},
	}
}

func renderFlags(cmd *cobra.Command, flags []api.Flag) {
	if len(flags) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No flags")
		return
	}
	rows := make([][]string, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			f.Severity,
			f.Type,
			f.Description,
			yesNo(f.Resolved),
		})
	}
	printTable(cmd, []string{"ID", "Severity", "Type", "Description", "Resolved"}, rows, 1)
}
