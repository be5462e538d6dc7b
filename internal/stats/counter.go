// Package stats keeps the processed-message counter shared by handlers and
// reports it on a cron schedule.
package stats

import (
	"sync/atomic"

	"github.com/neoclaw-ai/teledispatch/internal/handler"
)

// Counter is a monotonically increasing message count safe for concurrent use.
type Counter struct {
	n atomic.Uint64
}

// Inc adds one and returns the count before the increment.
func (c *Counter) Inc() uint64 {
	return c.n.Add(1) - 1
}

// Load returns the current count.
func (c *Counter) Load() uint64 {
	return c.n.Load()
}

// CounterKey holds the shared counter in dispatcher dependencies.
var CounterKey = handler.NewKey[*Counter]("messages_counter")
