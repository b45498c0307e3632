package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recap/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, database and provider configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(func(p *pipeline) error {
				results := preflight.RunAll(cmd.Context(), p.cfg, preflight.Options{Database: p.store})
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					rows := make([][]string, 0, len(results))
					for _, r := range results {
						status := "ok"
						switch {
						case !r.Passed && r.Optional:
							status = "warn"
						case !r.Passed:
							status = "fail"
						}
						rows = append(rows, []string{r.Name, status, r.Detail})
					}
					printTable(cmd, []string{"Check", "Status", "Detail"}, rows)
				}
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d preflight check(s) failed", len(failed))
				}
				return nil
			})
		},
	}
}
