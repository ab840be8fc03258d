package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mediacopier/internal/logging"
	"mediacopier/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the copy job queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	return queueCmd
}

// withQueue opens the persisted queue for a one-shot command and tears it
// down afterwards. The daemon holds its own handle; SQLite's busy timeout
// covers the overlap.
func withQueue(ctx *commandContext, fn func(q *queue.Queue) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()
	return fn(queue.New(store, logging.NewNop()))
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued copy jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(ctx, func(q *queue.Queue) error {
				jobs := q.Jobs()
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}

				rows := make([]table.Row, 0, len(jobs))
				for _, job := range jobs {
					detail := job.ErrorDetail
					if job.NoMatches && detail == "" {
						detail = "no matches"
					}
					rows = append(rows, table.Row{
						job.ID,
						job.Name,
						string(job.Status),
						fmt.Sprintf("%d%%", job.Progress),
						len(job.Items),
						humanize.Bytes(uint64(job.TotalBytes())),
						detail,
					})
				}
				headers := table.Row{"ID", "Name", "Status", "Progress", "Files", "Size", "Detail"}
				fmt.Fprintln(out, renderTable(headers, rows, 4, 5, 6))
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(ctx, func(q *queue.Queue) error {
				if err := q.Clear(cmd.Context()); err != nil {
					return fmt.Errorf("clear queue: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared")
				return nil
			})
		},
	}
}
