// Package dispatch pulls updates from a listener and routes each one through a
// handler tree, keeping listener errors and handler errors apart.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neoclaw-ai/teledispatch/internal/handler"
	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/neoclaw-ai/teledispatch/internal/observability"
	"github.com/neoclaw-ai/teledispatch/internal/shutdown"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

// shutdownCheckMargin is added to the listener's timeout so a shutdown request
// is noticed within one polling round trip.
var shutdownCheckMargin = time.Second

const rawPreviewLimit = 512

// Dispatcher runs one dispatch loop at a time. Updates are processed strictly
// one after another in the order the listener yields them.
type Dispatcher struct {
	bot            Bot
	me             *meCache
	deps           *handler.Deps
	handler        handler.Handler
	defaultHandler DefaultHandler
	errorHandler   ErrorHandler
	metrics        *observability.Metrics
	tracer         trace.Tracer
	allowedKinds   []updates.Kind

	state *shutdown.Coordinator
}

// ShutdownToken returns the coordinator used to stop dispatching from other goroutines.
func (d *Dispatcher) ShutdownToken() *shutdown.Coordinator {
	return d.state
}

// Dispatch long-polls the bot with default settings and logs listener errors.
// It returns after shutdown, or when ctx ends.
func (d *Dispatcher) Dispatch(ctx context.Context) {
	listener := updates.PollingDefault(d.bot)
	d.DispatchWithListener(ctx, listener, LoggingErrorHandler("an error from the update listener"))
}

// DispatchWithListener runs the dispatch loop over listener, sending listener
// errors to listenerErrors. It returns once the stream ends, shutdown has been
// requested through ShutdownToken, or ctx ends.
func (d *Dispatcher) DispatchWithListener(ctx context.Context, listener updates.Listener, listenerErrors ErrorHandler) {
	if listenerErrors == nil {
		listenerErrors = LoggingErrorHandler("an error from the update listener")
	}
	listener.HintAllowedKinds(d.allowedKinds)

	interval := ShutdownCheckInterval(listener)
	stopToken := listener.StopToken()

	d.state.StartDispatching()
	d.metrics.SetDispatching(true)
	defer func() {
		d.metrics.SetDispatching(false)
		d.state.Done()
	}()

	stream := listener.Updates(ctx)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		timer.Reset(interval)
		select {
		case res, ok := <-stream:
			if !ok {
				logging.Logger().Debug("update stream ended")
				return
			}
			if res.Err != nil {
				d.metrics.ObserveTransportError()
				listenerErrors.HandleError(ctx, res.Err)
			} else {
				d.processUpdate(ctx, res.Update)
			}
		case <-timer.C:
		case <-ctx.Done():
			stopToken.Stop()
			return
		}

		if d.state.IsShuttingDown() {
			logging.Logger().Debug("start shutting down dispatching")
			stopToken.Stop()
			return
		}
	}
}

// ShutdownCheckInterval is how long the loop waits for an update before
// checking for a shutdown request.
func ShutdownCheckInterval(listener updates.Listener) time.Duration {
	return listener.TimeoutHint() + shutdownCheckMargin
}

func (d *Dispatcher) processUpdate(ctx context.Context, upd updates.Update) {
	correlationID := uuid.NewString()
	attrs := []any{"update_id", upd.ID, "kind", string(upd.Kind), "correlation_id", correlationID}
	if chatID, ok := upd.ChatID(); ok {
		attrs = append(attrs, "chat_id", chatID)
	}
	ctx = logging.WithAttrs(ctx, attrs...)

	if upd.IsMalformed() {
		logging.FromContext(ctx).Error(
			"cannot parse an update; the remote API sent a payload this client does not understand",
			"err", upd.Err,
			"raw", rawPreview(upd.Raw),
		)
		d.metrics.ObserveUpdate(string(upd.Kind), observability.OutcomeMalformed, 0)
		return
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.update", trace.WithAttributes(
		attribute.Int64("update.id", upd.ID),
		attribute.String("update.kind", string(upd.Kind)),
		attribute.String("correlation_id", correlationID),
	))
	defer span.End()

	deps := d.deps.Clone()
	handler.Set(deps, handler.UpdateKey, upd)
	handler.Set(deps, BotKey, d.bot)
	handler.Set(deps, handler.CorrelationIDKey, correlationID)
	if me, err := d.me.get(ctx); err != nil {
		logging.FromContext(ctx).Warn("failed to fetch bot identity", "err", err)
	} else {
		handler.Set(deps, handler.MeKey, me)
	}

	start := time.Now()
	out := d.handler.Handle(ctx, deps)
	elapsed := time.Since(start)

	switch {
	case out.Handled() && out.Err == nil:
		d.metrics.ObserveUpdate(string(upd.Kind), observability.OutcomeOK, elapsed)
	case out.Handled():
		d.metrics.ObserveUpdate(string(upd.Kind), observability.OutcomeError, elapsed)
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		d.errorHandler.HandleError(ctx, out.Err)
	default:
		d.metrics.ObserveUpdate(string(upd.Kind), observability.OutcomeUnhandled, elapsed)
		unhandled := upd
		if original, ok := handler.Get(out.Deps, handler.UpdateKey); ok {
			unhandled = original
		}
		d.defaultHandler(ctx, unhandled)
	}
}

// meRetryInterval is how long a failed identity lookup is reused before the
// remote is asked again.
var meRetryInterval = 5 * time.Second

// meCache fetches the bot's own identity once and reuses it. A failure is
// remembered for meRetryInterval so a failing remote does not cost a call per
// update.
type meCache struct {
	bot Bot
	now func() time.Time

	mu       sync.Mutex
	me       *models.User
	err      error
	failedAt time.Time
}

func (c *meCache) get(ctx context.Context) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.me != nil {
		return c.me, nil
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	if c.err != nil && now().Sub(c.failedAt) < meRetryInterval {
		return nil, c.err
	}
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		c.err, c.failedAt = err, now()
		return nil, err
	}
	c.me, c.err = me, nil
	return me, nil
}

func rawPreview(raw []byte) string {
	if len(raw) <= rawPreviewLimit {
		return string(raw)
	}
	return string(raw[:rawPreviewLimit]) + "..."
}
