// Package stoptoken provides one-shot stop signals used to end an update listener.
package stoptoken

import (
	"context"
	"sync"
)

// Token stops the listener it was issued by.
type Token interface {
	Stop()
}

// Noop is a Token that does nothing. Listeners without graceful stop support
// hand it out.
type Noop struct{}

// Stop does nothing.
func (Noop) Stop() {}

type signal struct {
	once sync.Once
	ch   chan struct{}
}

// AsyncToken is the stopping half of a token/flag pair.
type AsyncToken struct {
	sig *signal
}

// Flag observes the AsyncToken it was created with. A stopped flag stays
// stopped forever.
type Flag struct {
	sig *signal
}

// NewPair creates a token and a flag sharing one stop signal.
func NewPair() (*AsyncToken, *Flag) {
	sig := &signal{ch: make(chan struct{})}
	return &AsyncToken{sig: sig}, &Flag{sig: sig}
}

// Stop marks the pair as stopped. Repeated calls are no-ops.
func (t *AsyncToken) Stop() {
	t.sig.once.Do(func() {
		close(t.sig.ch)
	})
}

// IsStopped reports whether Stop was called on the linked token.
func (f *Flag) IsStopped() bool {
	select {
	case <-f.sig.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the linked token is stopped.
func (f *Flag) Done() <-chan struct{} {
	return f.sig.ch
}

// Wait blocks until the linked token is stopped or ctx ends.
func (f *Flag) Wait(ctx context.Context) error {
	select {
	case <-f.sig.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
