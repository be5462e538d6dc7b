// Package logging owns the process logger and per-update log attributes.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

var (
	level  = new(slog.LevelVar)
	logger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
	}))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return logger
}

// SetLevel changes the minimum level of the process logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetOutput redirects the process logger, keeping the current level.
func SetOutput(w io.Writer) {
	logger = newLogger(w)
}

type attrsKey struct{}

// WithAttrs returns a context whose logger carries args in addition to any
// attributes already attached to ctx.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	return context.WithValue(ctx, attrsKey{}, FromContext(ctx).With(args...))
}

// FromContext returns the logger attached by WithAttrs, or the process logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(attrsKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return logger
}
