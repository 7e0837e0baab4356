package agent

import (
	"sync"
	"sync/atomic"
)

// Status is the lifecycle state of an agent.
type Status int32

const (
	StatusUsable          Status = 1
	StatusBusy            Status = 2
	StatusCancelRequested Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusUsable:
		return "usable"
	case StatusBusy:
		return "busy"
	case StatusCancelRequested:
		return "cancel_requested"
	}
	return "unknown"
}

// statusCell holds a Status and only exposes the legal transitions:
// Usable to Busy, Busy to CancelRequested, and back to Usable.
type statusCell struct {
	v atomic.Int32

	mu   sync.Mutex
	idle chan struct{} // closed on release; nil while usable
}

func newStatusCell() *statusCell {
	c := &statusCell{}
	c.v.Store(int32(StatusUsable))
	return c
}

func (c *statusCell) Load() Status {
	return Status(c.v.Load())
}

// reserve moves Usable to Busy. It reports false if the cell was not
// Usable.
func (c *statusCell) reserve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.v.CompareAndSwap(int32(StatusUsable), int32(StatusBusy)) {
		return false
	}
	c.idle = make(chan struct{})
	return true
}

// requestCancel moves Busy to CancelRequested.
func (c *statusCell) requestCancel() bool {
	return c.v.CompareAndSwap(int32(StatusBusy), int32(StatusCancelRequested))
}

// release returns the cell to Usable and wakes waiters.
func (c *statusCell) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Store(int32(StatusUsable))
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// idleCh returns a channel that is closed once the cell is Usable.
func (c *statusCell) idleCh() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idle == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.idle
}
