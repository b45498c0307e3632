package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recap/internal/store"
)

func newAccountCommand(ctx *commandContext) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts that receive notifications",
	}

	var role string
	addCmd := &cobra.Command{
		Use:   "add <account-id>...",
		Short: "Register accounts with a role (operators and admins receive escalations)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := store.Role(strings.ToLower(strings.TrimSpace(role)))
			switch r {
			case store.RoleOperator, store.RoleAdmin, store.RoleTutor, store.RoleLearner, store.RoleGuardian:
			default:
				return fmt.Errorf("unknown role %q", role)
			}
			return ctx.withPipeline(func(p *pipeline) error {
				for _, id := range args {
					if err := p.store.UpsertAccount(cmd.Context(), store.Account{ID: id, Role: r}); err != nil {
						return fmt.Errorf("add account %s: %w", id, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %d %s account(s)\n", len(args), r)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&role, "role", string(store.RoleOperator), "Account role (operator, admin, tutor, learner, guardian)")

	operatorsCmd := &cobra.Command{
		Use:   "operators",
		Short: "List escalation recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				ids, err := p.store.OperatorIDs(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if ids == nil {
						ids = []string{}
					}
					return writeJSON(cmd, ids)
				}
				rows := make([][]string, 0, len(ids))
				for _, id := range ids {
					rows = append(rows, []string{id})
				}
				printTable(cmd, []string{"Account"}, rows)
				return nil
			})
		},
	}

	accountCmd.AddCommand(addCmd, operatorsCmd)
	return accountCmd
}
