package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/browser-setup/internal/cli"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Install dependencies and start the browser",
	Long: `Check the host, install docker and the compose plugin when missing,
ask for ports, login, proxy and timezone, then start the browser container
and verify it is running.

Running deploy again replaces the current deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newSetupContext()
		if err != nil {
			return err
		}
		return cli.RunDeploy(cmd.Context(), ctx)
	},
}

func init() {
	rootCmd.AddCommand(deployCmd)
}
