// cmd/messenger/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/unclebandit/bulk-messenger/internal/config"
	"github.com/unclebandit/bulk-messenger/internal/logger"
)

var (
	cfg     *config.Config
	log     *logger.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "messenger",
	Short:         "Operator tooling for the bulk messenger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		level := "warn"
		if verbose {
			level = "debug"
		}
		log = logger.New(level, "text", "")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	rootCmd.AddCommand(contactsCmd, templatesCmd, tasksCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
