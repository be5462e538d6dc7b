package handler

import (
	"context"

	"github.com/go-telegram/bot/models"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

// Values the dispatcher stores for every update.
var (
	UpdateKey        = NewKey[updates.Update]("update")
	MeKey            = NewKey[*models.User]("me")
	CorrelationIDKey = NewKey[string]("correlation_id")
)

// Values derived by the filters in this package.
var (
	MessageKey       = NewKey[*models.Message]("message")
	CallbackQueryKey = NewKey[*models.CallbackQuery]("callback_query")
)

// OnKind runs next for updates of the given kind.
func OnKind(kind updates.Kind, next Handler) Handler {
	return Filter(func(deps *Deps) bool {
		upd, ok := Get(deps, UpdateKey)
		return ok && upd.Kind == kind
	}, next)
}

// OnMessage runs next for message updates, with the message under MessageKey.
func OnMessage(next Handler) Handler {
	return FilterMap(MessageKey, func(_ context.Context, deps *Deps) (*models.Message, bool) {
		upd, ok := Get(deps, UpdateKey)
		if !ok || upd.Payload == nil || upd.Payload.Message == nil {
			return nil, false
		}
		return upd.Payload.Message, true
	}, next)
}

// OnCallbackQuery runs next for callback queries, with the query under CallbackQueryKey.
func OnCallbackQuery(next Handler) Handler {
	return FilterMap(CallbackQueryKey, func(_ context.Context, deps *Deps) (*models.CallbackQuery, bool) {
		upd, ok := Get(deps, UpdateKey)
		if !ok || upd.Payload == nil || upd.Payload.CallbackQuery == nil {
			return nil, false
		}
		return upd.Payload.CallbackQuery, true
	}, next)
}
