package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"mediacopier/internal/daemon"
	"mediacopier/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the order fulfillment daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var logger *slog.Logger
			if cfg.Paths.LogDir != "" {
				fileLogger, closer, err := logging.NewFileLogger(cfg.Paths.LogDir, "mediacopier.log", cfg.Logging.Level)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				defer closer.Close()
				logger = fileLogger
				fmt.Fprintf(cmd.OutOrStdout(), "Logging to %s\n", filepath.Join(cfg.Paths.LogDir, "mediacopier.log"))
			} else {
				stderrLogger, err := logging.New(logging.Options{
					Level:  cfg.Logging.Level,
					Format: cfg.Logging.Format,
					Output: os.Stderr,
				})
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				logger = stderrLogger
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			logger.Info("mediacopier daemon shutting down")
			d.Stop()
			return nil
		},
	}
}
