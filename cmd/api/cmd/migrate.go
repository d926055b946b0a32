package cmd

import (
	"github.com/spf13/cobra"

	"maplocate/api/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return database.Migrate(cfg.Postgres.DSN, logger)
	},
}
