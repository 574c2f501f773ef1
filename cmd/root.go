package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "position-monitor",
	Short: "Closes tracked futures positions on take profit or stop loss",
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
