package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/bizcore/internal/app"
)

var version = "dev"

// cliState carries what subcommands share after the root pre-run.
type cliState struct {
	envFile string
	cfg     *app.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	root := &cobra.Command{
		Use:           "bizctl",
		Short:         "bizctl operates the bizcore database, jobs and payroll",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if state.envFile != "" {
				files = append(files, state.envFile)
			}
			cfg, err := app.LoadConfig(files...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			state.cfg = cfg
			state.logger = app.NewLogger(cfg)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&state.envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")
	root.AddCommand(newMigrateCmd(state), newJobsCmd(state), newPayrollCmd(state))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bizctl: %v\n", err)
		os.Exit(1)
	}
}
