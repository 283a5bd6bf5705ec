package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/browser-setup/internal/cli"
)

var statusLogs int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the browser state",
	Long: `Display the browser state, its access URLs and, with --logs, the last
lines of the container output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newSetupContext()
		if err != nil {
			return err
		}
		return cli.RunStatus(cmd.Context(), ctx, statusLogs)
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusLogs, "logs", "n", 0, "Also print the last N log lines")
	rootCmd.AddCommand(statusCmd)
}
