package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shuttle/internal/api"
	"shuttle/internal/capture"
	"shuttle/internal/ipc"
	"shuttle/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var stats map[string]int
				if client != nil {
					resp, err := client.Status()
					if err != nil {
						return err
					}
					stats = resp.QueueStats
				} else {
					counts, err := store.Stats(cmd.Context())
					if err != nil {
						return err
					}
					stats = api.MergeQueueStats(counts)
				}

				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				var tasks []ipc.Task
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					tasks = resp.Tasks
				} else {
					var filters []queue.Status
					for _, value := range listStatuses {
						if parsed, ok := queue.ParseStatus(value); ok {
							filters = append(filters, parsed)
						}
					}
					records, err := store.List(cmd.Context(), filters...)
					if err != nil {
						return err
					}
					tasks = api.FromTasks(records)
				}

				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"Media ID", "Status", "Size", "Captured", "Attempts"},
					buildQueueListRows(tasks),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all queued uploads and their spooled payloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(client *ipc.Client, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if client != nil {
					resp, err := client.QueueClear()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queued uploads\n", resp.Removed)
					return nil
				}

				removed, err := clearOffline(cmd, ctx, store)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d queued uploads\n", removed)
				return nil
			})
		},
	}
}

// clearOffline removes every task straight from the store, discarding each
// task's spooled payload first so clear never strands content on disk.
func clearOffline(cmd *cobra.Command, ctx *commandContext, store *queue.Store) (int64, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return 0, err
	}
	spool, err := capture.OpenSpool(cfg)
	if err != nil {
		return 0, fmt.Errorf("open spool: %w", err)
	}

	tasks, err := store.List(cmd.Context())
	if err != nil {
		return 0, err
	}
	for _, task := range tasks {
		_ = spool.Remove(task.MediaID)
	}
	return store.Clear(cmd.Context())
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the in-flight upload and discard pending work",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CancelAll()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled %d queued uploads\n", resp.Canceled)
				return nil
			})
		},
	}
}
