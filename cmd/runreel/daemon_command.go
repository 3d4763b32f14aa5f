package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"runreel/internal/daemon"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the runreel daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			orch, store, err := ctx.buildOrchestrator()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, store, orch, logger)
			if err != nil {
				store.Close()
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				d.Close()
				return err
			}
			if addr := d.Addr(); addr != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "runreel daemon listening on %s\n", addr)
			}

			<-runCtx.Done()
			return d.Close()
		},
	}
}
