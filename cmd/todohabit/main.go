package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	configEnv string
	configDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "todohabit",
		Short:         "todohabit - todo list and habit tracker sync engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configEnv, "env", "", "config environment (default $CONFIG_ENV or local)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default $CONFIG_DIR or config)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
