// Package cli wires Cobra subcommands to application dependencies; it is a thin controller with no business logic.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/neoclaw-ai/teledispatch/internal/bootstrap"
	"github.com/neoclaw-ai/teledispatch/internal/config"
	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/spf13/cobra"
)

var exit = os.Exit

// NewRootCmd creates the root command and registers all subcommands.
func NewRootCmd() *cobra.Command {
	var verbose, debug bool

	root := &cobra.Command{
		Use:   "teledispatch",
		Short: "Telegram update dispatcher",
		// Let main handle fatal error rendering through structured logs.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case debug:
				logging.SetLevel(slog.LevelDebug)
			case verbose:
				logging.SetLevel(slog.LevelInfo)
			default:
				logging.SetLevel(slog.LevelWarn)
			}

			// config and version only read state and should not trigger first-run setup.
			switch cmd.Name() {
			case "config", "version":
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			created, err := bootstrap.Initialize(cfg)
			if err != nil {
				return err
			}
			if created {
				// First-run bootstrap is an onboarding path, not a fatal error.
				if _, err := fmt.Fprintf(
					cmd.ErrOrStderr(),
					"First run setup complete.\nEdit config file: %s\nRestart teledispatch.\n",
					cfg.ConfigPath(),
				); err != nil {
					return err
				}
				exit(0)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to `teledispatch start` when no subcommand is provided.
			startCmd, _, err := cmd.Find([]string{"start"})
			if err != nil {
				return err
			}
			startCmd.SetContext(cmd.Context())
			return startCmd.RunE(startCmd, args)
		},
	}

	root.AddCommand(newConfigCmd())
	root.AddCommand(newStartCmd())
	root.AddCommand(newConsoleCmd())
	root.AddCommand(newVersionCmd())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (info level)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	return root
}
