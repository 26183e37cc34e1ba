package main

import (
	"context"
	"fmt"

	"chatflow/internal/app"

	"github.com/spf13/cobra"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Pause or resume automations for a user",
}

func botSetter(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Bot.SetEnabled(ctx, userID, enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bot enabled=%t for %s\n", enabled, userID)
			return nil
		})
	}
}

var botEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Resume automations",
	RunE:  botSetter(true),
}

var botDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Pause automations",
	RunE:  botSetter(false),
}

var botStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether automations run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			enabled, err := a.Bot.IsEnabled(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bot enabled=%t for %s\n", enabled, userID)
			return nil
		})
	},
}

func init() {
	botCmd.AddCommand(botEnableCmd, botDisableCmd, botStatusCmd)
	rootCmd.AddCommand(botCmd)
}
