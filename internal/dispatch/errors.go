package dispatch

import (
	"context"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/logging"
)

// ErrorHandler receives errors from the handler tree or from an update listener.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(ctx context.Context, err error)

// HandleError calls f.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, err error) {
	f(ctx, err)
}

type loggingErrorHandler struct {
	text string
}

// LoggingErrorHandler logs every error at error level under text, using the
// logger attached to ctx so entries carry the update's attributes.
func LoggingErrorHandler(text string) ErrorHandler {
	if text == "" {
		text = "error"
	}
	return loggingErrorHandler{text: text}
}

func (h loggingErrorHandler) HandleError(ctx context.Context, err error) {
	logging.FromContext(ctx).Error(h.text, "err", err)
}

// IgnoringErrorHandler drops every error.
func IgnoringErrorHandler() ErrorHandler {
	return ErrorHandlerFunc(func(context.Context, error) {})
}

// BackoffErrorHandler passes each error to next, then waits delay(err) or until
// ctx ends. Used as a listener error handler it keeps a failing transport from
// retrying in a tight loop.
func BackoffErrorHandler(next ErrorHandler, delay func(err error) time.Duration) ErrorHandler {
	return ErrorHandlerFunc(func(ctx context.Context, err error) {
		next.HandleError(ctx, err)
		d := delay(err)
		if d <= 0 {
			return
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	})
}
