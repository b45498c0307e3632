package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"recap/internal/daemon"
	"recap/internal/logging"
	"recap/internal/store"
	"recap/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger API and the background sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			mgr, err := workflow.NewManager(cfg, st, logger)
			if err != nil {
				_ = st.Close()
				return err
			}
			d, err := daemon.New(cfg, st, logger, mgr)
			if err != nil {
				_ = st.Close()
				return err
			}
			defer d.Close()

			if ctx.configSeen {
				logger.Info("configuration loaded", logging.String("path", ctx.configPath))
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return d.Run(runCtx)
		},
	}
}
