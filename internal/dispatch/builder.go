package dispatch

import (
	"context"
	"errors"
	"slices"

	"github.com/go-telegram/bot/models"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/neoclaw-ai/teledispatch/internal/handler"
	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/neoclaw-ai/teledispatch/internal/observability"
	"github.com/neoclaw-ai/teledispatch/internal/shutdown"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

// Bot is the remote API client the dispatcher polls and exposes to handlers.
type Bot interface {
	updates.Fetcher
	GetMe(ctx context.Context) (*models.User, error)
}

// BotKey holds the Bot passed to NewBuilder in every dependency set.
var BotKey = handler.NewKey[Bot]("bot")

// DefaultHandler receives updates no branch of the handler tree consumed.
type DefaultHandler func(ctx context.Context, upd updates.Update)

func logUnhandled(ctx context.Context, _ updates.Update) {
	logging.FromContext(ctx).Warn("unhandled update")
}

// Builder configures a Dispatcher.
type Builder struct {
	bot            Bot
	handler        handler.Handler
	deps           *handler.Deps
	defaultHandler DefaultHandler
	errorHandler   ErrorHandler
	metrics        *observability.Metrics
	tracer         trace.Tracer
	allowedKinds   []updates.Kind
}

// NewBuilder starts a dispatcher configuration for bot and the handler tree h.
func NewBuilder(bot Bot, h handler.Handler) *Builder {
	return &Builder{
		bot:            bot,
		handler:        h,
		deps:           handler.NewDeps(),
		defaultHandler: logUnhandled,
		errorHandler:   LoggingErrorHandler("an error from the update handler"),
	}
}

// DefaultHandler replaces the handler for unhandled updates. By default they
// are logged at warn level.
func (b *Builder) DefaultHandler(fn DefaultHandler) *Builder {
	if fn != nil {
		b.defaultHandler = fn
	}
	return b
}

// ErrorHandler replaces the handler for errors returned by the handler tree.
// By default they are logged at error level.
func (b *Builder) ErrorHandler(eh ErrorHandler) *Builder {
	if eh != nil {
		b.errorHandler = eh
	}
	return b
}

// Dependencies sets values added to every dependency set.
func (b *Builder) Dependencies(deps *handler.Deps) *Builder {
	if deps != nil {
		b.deps = deps.Clone()
	}
	return b
}

// Metrics records per-update metrics.
func (b *Builder) Metrics(m *observability.Metrics) *Builder {
	b.metrics = m
	return b
}

// Tracer opens one span per update.
func (b *Builder) Tracer(t trace.Tracer) *Builder {
	b.tracer = t
	return b
}

// AllowedKinds lists the update kinds the handler tree cares about. The list is
// passed to the listener as a hint.
func (b *Builder) AllowedKinds(kinds ...updates.Kind) *Builder {
	b.allowedKinds = slices.Clone(kinds)
	return b
}

// Build validates the configuration and creates the Dispatcher.
func (b *Builder) Build() (*Dispatcher, error) {
	if b.bot == nil {
		return nil, errors.New("bot is required")
	}
	if b.handler == nil {
		return nil, errors.New("handler is required")
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("teledispatch/dispatch")
	}
	return &Dispatcher{
		bot:            b.bot,
		me:             &meCache{bot: b.bot},
		deps:           b.deps.Clone(),
		handler:        b.handler,
		defaultHandler: b.defaultHandler,
		errorHandler:   b.errorHandler,
		metrics:        b.metrics,
		tracer:         tracer,
		allowedKinds:   slices.Clone(b.allowedKinds),
		state:          shutdown.New(),
	}, nil
}
