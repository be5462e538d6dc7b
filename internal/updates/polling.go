package updates

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/logging"
	"github.com/neoclaw-ai/teledispatch/internal/stoptoken"
)

const (
	// DefaultPollTimeout is the long polling wait used when none is configured.
	DefaultPollTimeout = 10 * time.Second
	// MaxPollLimit is the largest batch the remote accepts.
	MaxPollLimit = 100
)

// PollingOption configures a Polling listener.
type PollingOption func(*Polling)

// WithTimeout sets the long polling wait. Zero selects short polling, which
// hot-loops unless the listener error handler or the remote adds delay.
func WithTimeout(d time.Duration) PollingOption {
	return func(p *Polling) {
		if d < 0 {
			d = 0
		}
		p.timeout = d
	}
}

// WithLimit caps the number of updates fetched at once. Values are clamped to
// 1..100; zero leaves the limit to the remote.
func WithLimit(n int) PollingOption {
	return func(p *Polling) {
		switch {
		case n <= 0:
			p.limit = 0
		case n > MaxPollLimit:
			p.limit = MaxPollLimit
		default:
			p.limit = n
		}
	}
}

// WithAllowedKinds restricts the kinds the remote sends. An explicit list
// takes precedence over HintAllowedKinds.
func WithAllowedKinds(kinds []Kind) PollingOption {
	return func(p *Polling) {
		p.allowed = slices.Clone(kinds)
		p.allowedExplicit = true
	}
}

// WithInitialOffset starts polling from a known offset instead of zero.
func WithInitialOffset(offset int64) PollingOption {
	return func(p *Polling) {
		if offset < 0 {
			offset = 0
		}
		p.offset = offset
	}
}

// Polling is a long polling Listener over a Fetcher.
//
// The offset is acknowledged only after every update of a batch has been
// received by the consumer, and it is left untouched when a fetch fails, so
// updates may be redelivered but are never skipped.
type Polling struct {
	fetcher Fetcher
	timeout time.Duration
	limit   int

	token *stoptoken.AsyncToken
	flag  *stoptoken.Flag

	mu              sync.Mutex
	offset          int64
	allowed         []Kind
	allowedExplicit bool
	allowedSent     bool
	running         bool
}

var _ Listener = (*Polling)(nil)

// NewPolling creates a polling listener over fetcher.
func NewPolling(fetcher Fetcher, opts ...PollingOption) *Polling {
	token, flag := stoptoken.NewPair()
	p := &Polling{
		fetcher: fetcher,
		timeout: DefaultPollTimeout,
		token:   token,
		flag:    flag,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PollingDefault creates a long polling listener with default settings.
func PollingDefault(fetcher Fetcher) *Polling {
	return NewPolling(fetcher)
}

// StopToken returns the token that ends the stream.
func (p *Polling) StopToken() stoptoken.Token {
	return p.token
}

// TimeoutHint returns the long polling wait.
func (p *Polling) TimeoutHint() time.Duration {
	return p.timeout
}

// HintAllowedKinds sets the kinds to request unless WithAllowedKinds was used.
// An empty hint leaves the remote's default.
func (p *Polling) HintAllowedKinds(kinds []Kind) {
	if len(kinds) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allowedExplicit {
		return
	}
	if !slices.Equal(p.allowed, kinds) {
		p.allowed = slices.Clone(kinds)
		p.allowedSent = false
	}
}

// Offset returns the id of the next update to fetch.
func (p *Polling) Offset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Updates starts polling and returns the stream. Only one stream may run at a
// time; a second concurrent call gets an already closed channel.
func (p *Polling) Updates(ctx context.Context) <-chan Result {
	out := make(chan Result)

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		logging.Logger().Warn("polling listener is already running")
		close(out)
		return out
	}
	p.running = true
	p.mu.Unlock()

	go p.run(ctx, out)
	return out
}

func (p *Polling) run(ctx context.Context, out chan<- Result) {
	defer close(out)
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	for {
		if p.flag.IsStopped() || ctx.Err() != nil {
			return
		}

		params := p.nextParams()
		batch, err := p.fetcher.Fetch(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !p.send(ctx, out, Result{Err: err}) {
				return
			}
			continue
		}
		p.markAllowedSent(params)

		sort.SliceStable(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
		next := params.Offset
		for _, upd := range batch {
			if errors.Is(upd.Err, ErrMissingID) {
				// Not acknowledgeable: redelivered until a later update moves the offset past it.
				if !p.send(ctx, out, Result{Err: fmt.Errorf("protocol violation in fetched batch: %w", upd.Err)}) {
					return
				}
				continue
			}
			if !p.send(ctx, out, Result{Update: upd}) {
				return
			}
			if upd.ID+1 > next {
				next = upd.ID + 1
			}
		}
		p.advance(next)
	}
}

func (p *Polling) send(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-p.flag.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Polling) nextParams() FetchParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	params := FetchParams{
		Offset:  p.offset,
		Timeout: p.timeout,
		Limit:   p.limit,
	}
	if !p.allowedSent && len(p.allowed) > 0 {
		params.AllowedKinds = slices.Clone(p.allowed)
	}
	return params
}

func (p *Polling) markAllowedSent(params FetchParams) {
	if params.AllowedKinds == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Equal(p.allowed, params.AllowedKinds) {
		p.allowedSent = true
	}
}

func (p *Polling) advance(next int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if next > p.offset {
		p.offset = next
	}
}
