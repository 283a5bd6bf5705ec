package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zoro11031/browser-setup/internal/cli"
	"github.com/zoro11031/browser-setup/internal/ui"
)

var globalOpts cli.Options

var rootCmd = &cobra.Command{
	Use:   "browser-setup",
	Short: "Remote browser installer",
	Long: `Installs a containerized Chromium browser you can use from any web browser.

This tool provides an interactive menu and command-line interface for:
- Host checks and docker installation
- Port, login, proxy and timezone configuration
- Starting, verifying and removing the browser container

Run without arguments to launch the interactive menu.`,
	SilenceUsage:  true, // We handle errors manually, but silence usage on error
	SilenceErrors: true, // We format errors ourselves for consistent output
	RunE:          runInteractiveMenu,
}

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Launch interactive menu",
	Long:  `Launch the interactive menu interface.`,
	RunE:  runInteractiveMenu,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globalOpts.LogLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	flags.StringVar(&globalOpts.Strictness, "strictness", "", "Input strictness (basic or hardened)")
	flags.StringVar(&globalOpts.ConfigPath, "config", "", "Answers file (default ~/.browser-setup.conf)")

	rootCmd.AddCommand(menuCmd)
}

func newSetupContext() (*cli.SetupContext, error) {
	return cli.NewSetupContext(globalOpts)
}

func runInteractiveMenu(cmd *cobra.Command, args []string) error {
	ctx, err := newSetupContext()
	if err != nil {
		return err
	}
	return cli.NewMenu(ctx).Show(cmd.Context())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		ui.New().Fatal(err)
		os.Exit(1)
	}
}
