// Package shutdown tracks the lifecycle of a dispatch loop so that it can be
// stopped from other goroutines.
package shutdown

import (
	"errors"
	"sync"
)

// ErrIdle is returned by Shutdown when no dispatch loop is running.
var ErrIdle = errors.New("dispatcher is not running")

// State is the dispatch lifecycle state.
type State int

const (
	Idle State = iota
	Dispatching
	ShuttingDown
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case ShuttingDown:
		return "shutting_down"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Coordinator is shared by pointer between the dispatch loop, which owns the
// Dispatching and Done transitions, and any goroutine requesting shutdown.
type Coordinator struct {
	mu    sync.Mutex
	state State
	done  chan struct{}
}

// New returns an idle coordinator.
func New() *Coordinator {
	return &Coordinator{}
}

// StartDispatching moves an Idle or Done coordinator to Dispatching. It is a
// no-op when already Dispatching or ShuttingDown.
func (c *Coordinator) StartDispatching() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Idle, Done:
		c.state = Dispatching
		c.done = make(chan struct{})
	}
}

// Shutdown requests the running loop to stop. The returned channel closes once
// the loop has finished. Repeated calls while shutting down return the same
// channel. ErrIdle is returned, and nothing changes, when the loop is not running.
func (c *Coordinator) Shutdown() (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Dispatching:
		c.state = ShuttingDown
		return c.done, nil
	case ShuttingDown:
		return c.done, nil
	default:
		return nil, ErrIdle
	}
}

// IsShuttingDown reports whether shutdown has been requested and not yet completed.
func (c *Coordinator) IsShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == ShuttingDown
}

// Done marks the loop as finished and wakes every Shutdown waiter.
func (c *Coordinator) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Dispatching, ShuttingDown:
		c.state = Done
		close(c.done)
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
