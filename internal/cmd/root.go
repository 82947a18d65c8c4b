// Package cmd wires the vulncases CLI.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:          "vulncases",
		Short:        "CRUD API service for vulnerability test cases",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newInitDBCmd(&configPath))
	return cmd
}
