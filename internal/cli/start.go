package cli

import (
	"context"
	"os"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/config"
	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/neoclaw-ai/teledispatch/internal/observability"
	"github.com/neoclaw-ai/teledispatch/internal/stats"
	"github.com/neoclaw-ai/teledispatch/internal/store"
	"github.com/neoclaw-ai/teledispatch/internal/telegram"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
	"github.com/spf13/cobra"
)

var telegramFactory = func(cfg config.TelegramConfig) (botClient, error) {
	return telegram.New(cfg)
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Poll the Bot API and dispatch updates until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Telegram.RequireToken(); err != nil {
				return err
			}

			client, err := telegramFactory(cfg.Telegram)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			logging.Logger().Info(
				"starting dispatcher",
				"server_url", cfg.Telegram.ServerURL,
				"poll_timeout", cfg.Telegram.PollTimeout,
				"home_dir", cfg.HomeDir,
			)

			pidFile := store.NewPIDFile(cfg.PIDPath())
			if err := pidFile.Acquire(os.Getpid()); err != nil {
				return err
			}
			defer func() {
				if err := pidFile.Release(); err != nil {
					logging.Logger().Warn("failed to remove pid file", "err", err)
				}
			}()

			metrics := observability.NewMetrics()
			if cfg.Metrics.Listen != "" {
				stopMetrics := startMetricsServer(cfg.Metrics.Listen, metrics)
				defer shutdownWithTimeout("metrics server", stopMetrics)
			}

			tracing, err := observability.NewTracerSetup(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer shutdownWithTimeout("tracer", tracing.Shutdown)

			counter := &stats.Counter{}
			if cfg.Stats.ReportSchedule != "" {
				reporter := stats.NewReporter(counter, cfg.Stats.ReportSchedule, statsReport(store.NewStatsLog(cfg.StatsPath())))
				if err := reporter.Start(ctx); err != nil {
					return err
				}
				defer shutdownWithTimeout("stats reporter", reporter.Stop)
			}

			d, err := newDispatcher(dispatcherParams{
				cfg:     cfg,
				client:  client,
				counter: counter,
				metrics: metrics,
				tracer:  tracing.Tracer(),
			})
			if err != nil {
				return err
			}

			listener := updates.NewPolling(client, pollingOptions(cfg.Telegram)...)
			d.SetupSignalHandler(ctx)
			d.DispatchWithListener(ctx, listener, newListenerErrorHandler())

			logging.Logger().Info("dispatcher stopped", "processed", counter.Load())
			return nil
		},
	}
}

func pollingOptions(cfg config.TelegramConfig) []updates.PollingOption {
	opts := []updates.PollingOption{
		updates.WithTimeout(cfg.PollTimeout),
		updates.WithLimit(cfg.PollLimit),
	}
	// Validate has already rejected unknown kinds.
	if kinds, err := cfg.AllowedKinds(); err == nil && len(kinds) > 0 {
		opts = append(opts, updates.WithAllowedKinds(kinds))
	}
	return opts
}

func shutdownWithTimeout(name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logging.Logger().Warn("shutdown failed", "component", name, "err", err)
	}
}
