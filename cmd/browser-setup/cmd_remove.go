package main

import (
	"github.com/spf13/cobra"

	"github.com/zoro11031/browser-setup/internal/cli"
)

var removeForce bool

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Stop the browser and delete its data",
	Long: `Stop the browser container and delete the work directory, including
the compose file and the browser profile.

You are asked to confirm unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := newSetupContext()
		if err != nil {
			return err
		}
		return cli.RunRemove(cmd.Context(), ctx, removeForce)
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(removeCmd)
}
