package updates

import (
	"context"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/stoptoken"
)

// FetchParams are the arguments of one remote fetch call.
type FetchParams struct {
	// Offset is the id of the first update to return. Never negative.
	Offset int64
	// Timeout is how long the remote may hold the request open. Zero means short polling.
	Timeout time.Duration
	// Limit caps the batch size. Zero leaves it to the remote.
	Limit int
	// AllowedKinds filters update kinds. Nil keeps the previously sent filter.
	AllowedKinds []Kind
}

// Fetcher fetches pending updates since an offset, waiting up to a timeout.
// It returns updates in ascending id order or a transport error.
type Fetcher interface {
	Fetch(ctx context.Context, params FetchParams) ([]Update, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, params FetchParams) ([]Update, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, params FetchParams) ([]Update, error) {
	return f(ctx, params)
}

// Result is one stream item: an update or a transport error.
type Result struct {
	Update Update
	Err    error
}

// Listener produces a stream of updates that can be stopped from outside.
type Listener interface {
	// Updates starts the stream. The channel closes when the stream ends.
	Updates(ctx context.Context) <-chan Result
	// StopToken returns a token that ends the stream after the in-flight fetch.
	StopToken() stoptoken.Token
	// HintAllowedKinds tells the listener which kinds the consumer handles.
	// Listeners may ignore it.
	HintAllowedKinds(kinds []Kind)
	// TimeoutHint is the longest a single fetch may wait, or zero if unknown.
	TimeoutHint() time.Duration
}
