package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mediacopier/internal/logging"
	"mediacopier/internal/state"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the recent run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := state.NewStatsStore(filepath.Join(cfg.Paths.StateDir, "stats.json"), logging.NewNop())
			history := store.History()
			out := cmd.OutOrStdout()
			if len(history) == 0 {
				fmt.Fprintln(out, "No completed runs recorded")
				return nil
			}

			rows := make([]table.Row, 0, len(history))
			for _, run := range history {
				outcome := "failed"
				if run.Succeeded {
					outcome = "ok"
				}
				rows = append(rows, table.Row{
					run.FinishedAt.Format("2006-01-02 15:04"),
					run.JobName,
					run.OrderID,
					outcome,
					fmt.Sprintf("%d/%d", run.FilesCopied, run.FilesCopied+run.FilesFailed),
					humanize.Bytes(uint64(run.BytesCopied)),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String(),
				})
			}
			headers := table.Row{"Finished", "Job", "Order", "Outcome", "Files", "Copied", "Duration"}
			fmt.Fprintln(out, renderTable(headers, rows, 5, 6, 7))
			return nil
		},
	}
}
