package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizcore/internal/platform/httpx"
	"github.com/odyssey-erp/bizcore/jobs"
)

func newJobsCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Interact with background jobs",
	}
	trigger := &cobra.Command{
		Use:   "trigger",
		Short: "Enqueue a job immediately",
	}

	var asOf string
	sweep := &cobra.Command{
		Use:   "overdue-sweep",
		Short: "Mark ISSUED and SENT invoices past due as OVERDUE",
		Example: `  bizctl jobs trigger overdue-sweep
  bizctl jobs trigger overdue-sweep --as-of 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if asOf != "" {
				parsed, err := httpx.ParseDate("as-of", asOf)
				if err != nil {
					return err
				}
				at = parsed
			}
			client := jobs.NewClient(asynq.RedisClientOpt{Addr: state.cfg.RedisAddr})
			defer client.Close()
			info, err := client.EnqueueOverdueSweep(cmd.Context(), at)
			if err != nil {
				return fmt.Errorf("enqueue overdue sweep: %w", err)
			}
			state.logger.Info("job enqueued", slog.String("task", info.Type), slog.String("id", info.ID), slog.String("queue", info.Queue))
			fmt.Fprintln(cmd.OutOrStdout(), info.ID)
			return nil
		},
	}
	sweep.Flags().StringVar(&asOf, "as-of", "", "sweep reference date YYYY-MM-DD (default: now at processing time)")

	trigger.AddCommand(sweep)
	cmd.AddCommand(trigger)
	return cmd
}
