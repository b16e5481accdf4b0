package network

import (
	"context"
	"sync"
)

// CancellationController holds the single live abort handle for
// in-flight sends. Arming a new handle supersedes the previous one
// without queueing: Cancel always targets the most recently armed
// dispatch. A send armed earlier keeps running but can no longer be
// aborted through this controller — a documented sharp edge, not
// prevented here.
type CancellationController struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewCancellationController creates an empty controller.
func NewCancellationController() *CancellationController {
	return &CancellationController{}
}

// Arm derives a cancellable context from parent and installs its
// cancel function as the live handle, replacing any previous one. The
// returned release function must be called when the dispatch finishes;
// it clears the handle only if it is still the live one.
func (c *CancellationController) Arm(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()

	release := func() {
		c.mu.Lock()
		if c.gen == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel aborts the most recently armed dispatch, if any.
func (c *CancellationController) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
