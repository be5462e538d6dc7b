package handler

import "context"

// Flow tells the caller whether a handler consumed the update.
type Flow int

const (
	// Break means the update was handled, successfully or not.
	Break Flow = iota
	// Continue means no handler matched; Deps carries the set back unchanged.
	Continue
)

// Outcome is the result of running a handler.
type Outcome struct {
	Flow Flow
	Err  error
	Deps *Deps
}

// Done is a successful Break.
func Done() Outcome {
	return Outcome{Flow: Break}
}

// Fail is a Break carrying a handler error.
func Fail(err error) Outcome {
	return Outcome{Flow: Break, Err: err}
}

// Pass is a Continue handing deps back to the caller.
func Pass(deps *Deps) Outcome {
	return Outcome{Flow: Continue, Deps: deps}
}

// Handled reports whether the outcome is a Break.
func (o Outcome) Handled() bool {
	return o.Flow == Break
}

// Handler runs against one dependency set.
type Handler interface {
	Handle(ctx context.Context, deps *Deps) Outcome
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, deps *Deps) Outcome

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, deps *Deps) Outcome {
	return f(ctx, deps)
}

// Endpoint always handles the update by running fn.
func Endpoint(fn func(ctx context.Context, deps *Deps) error) Handler {
	return HandlerFunc(func(ctx context.Context, deps *Deps) Outcome {
		if err := fn(ctx, deps); err != nil {
			return Fail(err)
		}
		return Done()
	})
}

// Filter runs next only when pred accepts the set.
func Filter(pred func(deps *Deps) bool, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, deps *Deps) Outcome {
		if !pred(deps) {
			return Pass(deps)
		}
		return next.Handle(ctx, deps)
	})
}

// FilterMap derives a value from the set. When fn reports ok, next runs on a
// copy of the set with the value stored under key; otherwise the update passes
// through. The original set is returned on Continue either way.
func FilterMap[T any](key Key[T], fn func(ctx context.Context, deps *Deps) (T, bool), next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, deps *Deps) Outcome {
		v, ok := fn(ctx, deps)
		if !ok {
			return Pass(deps)
		}
		scoped := deps.Clone()
		Set(scoped, key, v)
		out := next.Handle(ctx, scoped)
		if !out.Handled() {
			return Pass(deps)
		}
		return out
	})
}

// Branch tries handlers in order and stops at the first Break. When every
// branch continues, the original set is handed back.
func Branch(handlers ...Handler) Handler {
	return HandlerFunc(func(ctx context.Context, deps *Deps) Outcome {
		for _, h := range handlers {
			if out := h.Handle(ctx, deps); out.Handled() {
				return out
			}
		}
		return Pass(deps)
	})
}

// Entry is a root that matches nothing. It exists so trees read top-down:
// Branch(Entry(), ...) and Entry() are both valid handlers.
func Entry() Handler {
	return Branch()
}
