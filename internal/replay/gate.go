package replay

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when a run ends because it was asked to stop.
var ErrStopped = errors.New("run stopped")

// Gate carries the pause and stop requests to the worker. The worker checks
// it only at action and row boundaries.
type Gate struct {
	mu      sync.Mutex
	resume  chan struct{} // non-nil while paused, closed on resume
	stop    chan struct{}
	stopped bool
}

// NewGate returns an open gate.
func NewGate() *Gate {
	return &Gate{stop: make(chan struct{})}
}

// Pause closes the gate. It reports false if already paused or stopped.
func (g *Gate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped || g.resume != nil {
		return false
	}
	g.resume = make(chan struct{})
	return true
}

// Resume reopens a paused gate.
func (g *Gate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resume == nil {
		return false
	}
	close(g.resume)
	g.resume = nil
	return true
}

// Toggle pauses an open gate or resumes a paused one and returns the new
// paused state.
func (g *Gate) Toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	if g.resume != nil {
		close(g.resume)
		g.resume = nil
		return false
	}
	g.resume = make(chan struct{})
	return true
}

// Stop requests the end of the run. It also releases a paused worker.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	g.stopped = true
	close(g.stop)
	if g.resume != nil {
		close(g.resume)
		g.resume = nil
	}
}

// Done is closed once Stop has been called.
func (g *Gate) Done() <-chan struct{} { return g.stop }

func (g *Gate) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resume != nil
}

// Wait returns immediately when the gate is open, blocks while it is paused
// and fails with ErrStopped once stopped. onPause runs each time Wait is
// about to block. blocked reports whether it did.
func (g *Gate) Wait(ctx context.Context, onPause func()) (blocked bool, err error) {
	for {
		g.mu.Lock()
		stopped, resume := g.stopped, g.resume
		g.mu.Unlock()
		if stopped {
			return blocked, ErrStopped
		}
		if resume == nil {
			return blocked, nil
		}
		blocked = true
		if onPause != nil {
			onPause()
		}
		select {
		case <-resume:
		case <-g.stop:
		case <-ctx.Done():
			return blocked, ctx.Err()
		}
	}
}
