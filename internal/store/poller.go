// Package store holds the client-side state containers backing the
// dashboard: each store owns one subtree of the entity graph, refreshes
// it through the API gateway, and replaces it wholesale on every load.
package store

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultInterval is the poll cadence for stores that do not override it.
const DefaultInterval = 5 * time.Second

// LoadFunc performs one full refresh of a store's state.
type LoadFunc func(ctx context.Context) error

// Poller repeats a store's load operation on a fixed interval. Setup runs
// the load once synchronously and arms the timer only when that first
// load succeeds. Tick-triggered loads run concurrently without overlap
// protection; overlapping refreshes race and the last applied result
// wins.
type Poller struct {
	// Interval between refreshes; DefaultInterval when unset.
	Interval time.Duration
	// Logger receives background refresh failures. Poll failures are
	// best-effort and never surface to the UI.
	Logger *log.Logger
	// Ticks overrides the timer source. Tests drive the loop manually by
	// returning a hand-fed channel; the default is a time.Ticker stopped
	// when stop closes.
	Ticks func(interval time.Duration, stop <-chan struct{}) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
}

// Setup performs the initial load and arms the repeating timer. The first
// load completes (or fails) before the timer exists; a failed first load
// leaves the poller unarmed.
func (p *Poller) Setup(ctx context.Context, load LoadFunc) error {
	if err := load(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return nil
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	stop := make(chan struct{})
	p.stop = stop
	go p.loop(ctx, interval, stop, load)
	return nil
}

// TearDown cancels the pending timer. Idempotent; an in-flight load is
// not interrupted.
func (p *Poller) TearDown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

// Running reports whether the timer is armed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *Poller) loop(ctx context.Context, interval time.Duration, stop <-chan struct{}, load LoadFunc) {
	var tick <-chan time.Time
	if p.Ticks != nil {
		tick = p.Ticks(interval, stop)
	} else {
		t := time.NewTicker(interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			// Disarm so Running reports false and a later Setup can arm
			// a fresh timer. TearDown may have swapped in a new stop
			// channel already; leave that one alone.
			p.mu.Lock()
			if p.stop == stop {
				p.stop = nil
			}
			p.mu.Unlock()
			return
		case <-stop:
			return
		case <-tick:
			go func() {
				if err := load(ctx); err != nil && p.Logger != nil {
					p.Logger.Printf("poll refresh failed: %v", err)
				}
			}()
		}
	}
}
