package main

import (
	"context"

	"chatflow/internal/app"

	"github.com/spf13/cobra"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect rule execution logs",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			logs, err := a.Logs.ListByUser(ctx, userID, logsLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd, logs)
		})
	},
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count executions by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Logs.StatsByStatus(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		})
	},
}

func init() {
	logsListCmd.Flags().IntVar(&logsLimit, "limit", 20, "number of entries")
	logsCmd.AddCommand(logsListCmd, logsStatsCmd)
	rootCmd.AddCommand(logsCmd)
}
