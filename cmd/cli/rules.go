package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"chatflow/internal/app"
	"chatflow/internal/models"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage automation rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			rules, err := a.Rules.ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, rules)
		})
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Create rules from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		rules, err := readRules(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			for i := range rules {
				rule := &rules[i]
				rule.ID = ""
				rule.UserID = userID
				if err := a.Rules.Create(ctx, rule); err != nil {
					return fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", rule.ID, rule.Name)
			}
			return nil
		})
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return a.Rules.Delete(ctx, userID, args[0])
		})
	},
}

func readRules(path string) ([]models.AutomationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []models.AutomationRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rules, nil
}

func init() {
	rulesCmd.AddCommand(rulesListCmd, rulesImportCmd, rulesDeleteCmd)
	rootCmd.AddCommand(rulesCmd)
}
