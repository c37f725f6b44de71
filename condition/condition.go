package condition

import (
	"context"
	"sync"
	"time"
)

// Cond is a condition variable bound to a Locker.
// The zero value is not usable; create one with New.
type Cond struct {
	// L is held while observing or changing the condition.
	L sync.Locker

	mu sync.Mutex
	ch chan struct{}
}

// New returns a Cond bound to l.
func New(l sync.Locker) *Cond {
	return &Cond{L: l, ch: make(chan struct{})}
}

// notifyChan returns the channel the next Broadcast will close.
// Must be called with L held so a state change cannot slip in between the
// caller's predicate check and the capture.
func (c *Cond) notifyChan() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ch
}

// Wait unlocks L, suspends until notified and relocks L before returning.
func (c *Cond) Wait() {
	ch := c.notifyChan()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitTimeout is Wait bounded by d. It reports whether d elapsed without a
// notification. A non-positive d returns immediately with true.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	ch := c.notifyChan()
	c.L.Unlock()
	defer c.L.Lock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ch:
		return false
	case <-timer.C:
		return true
	}
}

// WaitContext is Wait bounded by ctx. It returns ctx.Err() if the context
// ended before a notification arrived.
func (c *Cond) WaitContext(ctx context.Context) error {
	ch := c.notifyChan()
	c.L.Unlock()
	defer c.L.Lock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal wakes waiters. It may wake more than one.
func (c *Cond) Signal() {
	c.Broadcast()
}

// Broadcast wakes all waiters.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	close(c.ch)
	c.ch = make(chan struct{})
	c.mu.Unlock()
}
