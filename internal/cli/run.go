package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	demobot "github.com/neoclaw-ai/teledispatch/internal/bot"
	"github.com/neoclaw-ai/teledispatch/internal/config"
	"github.com/neoclaw-ai/teledispatch/internal/dispatch"
	"github.com/neoclaw-ai/teledispatch/internal/handler"
	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/neoclaw-ai/teledispatch/internal/observability"
	"github.com/neoclaw-ai/teledispatch/internal/shutdown"
	"github.com/neoclaw-ai/teledispatch/internal/stats"
	"github.com/neoclaw-ai/teledispatch/internal/store"
	"github.com/neoclaw-ai/teledispatch/internal/telegram"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

const listenerRetryFallback = 2 * time.Second

// botClient is what the demo bot needs from a transport.
type botClient interface {
	dispatch.Bot
	demobot.Replier
}

type dispatcherParams struct {
	cfg     *config.Config
	client  botClient
	counter *stats.Counter
	metrics *observability.Metrics
	tracer  trace.Tracer
}

func newDispatcher(p dispatcherParams) (*dispatch.Dispatcher, error) {
	deps := handler.NewDeps()
	handler.Set(deps, stats.CounterKey, p.counter)
	handler.Set(deps, demobot.ReplierKey, demobot.Replier(p.client))

	kinds, err := p.cfg.Telegram.AllowedKinds()
	if err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		kinds = demobot.AllowedKinds
	}

	b := dispatch.NewBuilder(p.client, demobot.Handler()).
		Dependencies(deps).
		AllowedKinds(kinds...).
		Metrics(p.metrics)
	if p.tracer != nil {
		b = b.Tracer(p.tracer)
	}
	if !p.cfg.Dispatch.LogUnhandled {
		b = b.DefaultHandler(func(ctx context.Context, upd updates.Update) {
			logging.FromContext(ctx).Debug("unhandled update")
		})
	}
	return b.Build()
}

func newListenerErrorHandler() dispatch.ErrorHandler {
	return dispatch.BackoffErrorHandler(
		dispatch.LoggingErrorHandler("an error from the update listener"),
		func(err error) time.Duration { return telegram.RetryDelay(err, listenerRetryFallback) },
	)
}

// startMetricsServer serves /metrics on listen until the returned stop func is called.
func startMetricsServer(listen string, metrics *observability.Metrics) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Logger().Info("metrics server listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger().Error("metrics server failed", "addr", listen, "err", err)
		}
	}()
	return srv.Shutdown
}

// statsReport logs each snapshot and appends it to the stats log.
func statsReport(log *store.StatsLog) stats.ReportFunc {
	return func(ctx context.Context, s stats.Snapshot) {
		logging.FromContext(ctx).Info("processed messages", "total", s.Total, "since_last", s.SinceLast)
		if err := log.Append(s); err != nil {
			logging.FromContext(ctx).Warn("failed to append stats", "err", err)
		}
	}
}

// requestShutdown asks the dispatcher to stop once it is running and waits
// until it has.
func requestShutdown(ctx context.Context, token *shutdown.Coordinator) {
	for {
		done, err := token.Shutdown()
		if err == nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
			return
		}
		if token.State() == shutdown.Done {
			return
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}
