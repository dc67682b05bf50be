// Package main provides a CLI tool for database migrations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// migrationsPath overrides the embedded migrations when set.
var migrationsPath string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the corpus store schema",
	Long: `migrate applies and rolls back the corpus store schema. The storage
engine and its connection settings come from the service configuration
(PAPERRETRIEVAL_* environment variables or config.yaml).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: embedded migrations)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
