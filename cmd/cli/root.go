package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"chatflow/internal/app"
	"chatflow/internal/config"

	"github.com/spf13/cobra"
)

var userID string

var rootCmd = &cobra.Command{
	Use:           "chatflow",
	Short:         "Operate the chatflow automation engine",
	Long:          `Operational commands for the chatflow automation engine: migrations, scheduler runs, bot toggles, rules and execution logs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "user (tenant) id the command applies to")
}

// withApp loads the configuration, wires the application and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.LoadConfig()
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
