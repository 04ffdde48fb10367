package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unclebandit/bulk-messenger/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Delivery-log schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(conn *sql.DB) error {
			log.Info().Msg("running migrations...")
			if err := db.MigrateUp(conn); err != nil {
				return err
			}
			log.Info().Msg("migrations completed successfully")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(conn *sql.DB) error {
			log.Info().Msg("rolling back last migration...")
			if err := db.MigrateDown(conn); err != nil {
				return err
			}
			log.Info().Msg("rollback completed successfully")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(conn *sql.DB) error {
			version, dirty, err := db.MigrationVersion(conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\nDirty: %v\n", version, dirty)
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withDB(fn func(conn *sql.DB) error) error {
	conn, err := db.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}
