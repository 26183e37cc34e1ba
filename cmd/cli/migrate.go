package main

import (
	"chatflow/internal/config"
	"chatflow/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger, err := config.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		db, err := database.Open(cfg, logger)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		database.SyncConfig(db, cfg, logger)
		logger.Info("Database migration completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
