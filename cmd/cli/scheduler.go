package main

import (
	"context"
	"fmt"

	"chatflow/internal/app"
	"chatflow/internal/models"

	"github.com/spf13/cobra"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Scheduled message processing",
}

var schedulerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Send every scheduled message that is due now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Scheduler.RunOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		})
	},
}

var scheduledCmd = &cobra.Command{
	Use:   "scheduled",
	Short: "Inspect and cancel scheduled messages",
}

var scheduledCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a pending scheduled message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Scheduler.Cancel(ctx, userID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
			return nil
		})
	},
}

var (
	scheduledStatus  string
	scheduledContact string
)

var scheduledListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled messages by status or contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			var (
				rows []models.ScheduledMessage
				err  error
			)
			if scheduledContact != "" {
				rows, err = a.Scheduled.FindByContact(ctx, userID, scheduledContact)
			} else {
				rows, err = a.Scheduled.FindByUser(ctx, userID, models.ScheduledStatus(scheduledStatus))
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		})
	},
}

var scheduledStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count scheduled messages by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Scheduled.Stats(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		})
	},
}

func init() {
	schedulerCmd.AddCommand(schedulerRunCmd)
	scheduledListCmd.Flags().StringVar(&scheduledStatus, "status", "", "pending, processing, sent, failed or cancelled")
	scheduledListCmd.Flags().StringVar(&scheduledContact, "contact", "", "contact id")
	scheduledCmd.AddCommand(scheduledListCmd, scheduledCancelCmd, scheduledStatsCmd)
	rootCmd.AddCommand(schedulerCmd, scheduledCmd)
}
