package cli

import (
	"context"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/config"
	"github.com/neoclaw-ai/teledispatch/internal/console"
	"github.com/neoclaw-ai/teledispatch/internal/observability"
	"github.com/neoclaw-ai/teledispatch/internal/stats"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
	"github.com/spf13/cobra"
)

const consolePollTimeout = time.Second

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the bot against the terminal instead of the Bot API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ch := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), cfg.ConsoleHistoryPath())
			defer ch.Close()

			d, err := newDispatcher(dispatcherParams{
				cfg:     cfg,
				client:  ch,
				counter: &stats.Counter{},
				metrics: observability.NewMetrics(),
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				select {
				case <-ch.Done():
					requestShutdown(ctx, d.ShutdownToken())
				case <-ctx.Done():
				}
			}()

			listener := updates.NewPolling(ch, updates.WithTimeout(consolePollTimeout))
			d.SetupSignalHandler(ctx)
			d.DispatchWithListener(ctx, listener, newListenerErrorHandler())
			return nil
		},
	}
}
