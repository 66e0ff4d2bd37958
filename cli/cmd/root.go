package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Gantry - plugin and middleware loader for gin services",
	Long: `Gantry discovers plugins and middleware from a directory tree,
classifies them by naming convention, and registers them against an HTTP
server with deterministic ordering and prefix scoping.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(routesCmd)
}
