// Command reconctl runs operational tasks against the reconciliation
// database and job queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-recon/internal/app"
	"github.com/odyssey-erp/odyssey-recon/internal/platform/db"
	"github.com/odyssey-erp/odyssey-recon/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the reconctl command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "reconctl",
		Short:        "Operate the reconciliation database and job queue",
		SilenceUsage: true,
	}
	root.AddCommand(MigrateCommand(), JobsCommand())
	return root
}

// MigrateCommand applies or rolls back the embedded schema.
func MigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Apply or roll back the schema",
		ValidArgs: []string{db.MigrateUp, db.MigrateDown},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if err := db.Migrate(cfg.PGDSN, migrations.FS, args[0], logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
			return nil
		},
	}
}

// JobsCommand groups the asynq queue helpers.
func JobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "trigger <task>",
			Short: "Enqueue a job with its default payload",
			Args:  cobra.ExactArgs(1),
			RunE: withJobsCLI(func(cmd *cobra.Command, cli *JobsCLI, args []string) error {
				info, err := cli.Trigger(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show default queue counters",
			Args:  cobra.NoArgs,
			RunE: withJobsCLI(func(cmd *cobra.Command, cli *JobsCLI, _ []string) error {
				stats, err := cli.InspectQueue()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "scheduled",
			Short: "List registered cron entries",
			Args:  cobra.NoArgs,
			RunE: withJobsCLI(func(cmd *cobra.Command, cli *JobsCLI, _ []string) error {
				entries, err := cli.ListScheduled()
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tnext=%s\n", e.Spec, e.Task.Type(), e.Next.UTC().Format("2006-01-02T15:04:05Z"))
				}
				return nil
			}),
		},
	)
	return cmd
}

func withJobsCLI(fn func(*cobra.Command, *JobsCLI, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		cli := NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		defer func() {
			if err := cli.Close(); err != nil {
				logger.Warn("jobs cli close", slog.Any("error", err))
			}
		}()
		return fn(cmd, cli, args)
	}
}

func loadConfig() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, app.NewLogger(cfg), nil
}
