package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediacopier/internal/daemon"
	"mediacopier/internal/logging"
	"mediacopier/internal/orders"
)

func newOrdersCommand(ctx *commandContext) *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:   "orders",
		Short: "Interact with the remote order service",
	}
	ordersCmd.AddCommand(newOrdersPollCommand(ctx))
	ordersCmd.AddCommand(newOrdersCheckCommand(ctx))
	return ordersCmd
}

func newOrdersPollCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll cycle against the order service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create pipeline: %w", err)
			}
			defer d.Close()

			created, err := d.Processor().Poll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Poll complete: %d new job(s) enqueued\n", created)
			return nil
		},
	}
}

func newOrdersCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity to the order service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := orders.NewClient(cfg, logging.NewNop())
			if !client.CheckConnection(cmd.Context()) {
				return fmt.Errorf("order service unreachable at %s", cfg.API.BaseURL)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order service reachable at %s\n", cfg.API.BaseURL)
			return nil
		},
	}
}
