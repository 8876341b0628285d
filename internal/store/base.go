package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// base carries the pieces every store shares: the state mutex, the
// generation counter that fences stale loads, and the change callback.
// Action functions are the sole mutation path; a load captures the
// generation before its fetch and its result is discarded if TearDown or
// Reset bumped the generation while it was in flight.
type base struct {
	mu       sync.Mutex
	gen      uint64
	onChange func()
}

// OnChange registers a callback fired after every state replacement, for
// a UI layer to hook. Set before Setup; not safe to change while loads
// are in flight.
func (b *base) OnChange(fn func()) { b.onChange = fn }

func (b *base) generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// invalidate discards results of any load currently in flight.
func (b *base) invalidate() {
	b.mu.Lock()
	b.gen++
	b.mu.Unlock()
}

// apply replaces state through fn if gen is still current. Returns false
// when the load lost its generation.
func (b *base) apply(gen uint64, fn func()) bool {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return false
	}
	fn()
	cb := b.onChange
	b.mu.Unlock()
	if cb != nil {
		cb()
	}
	return true
}

// reset bumps the generation and replaces state through fn in one
// critical section, then fires the change callback. Discards any
// in-flight load's result, like invalidate.
func (b *base) reset(fn func()) {
	b.mu.Lock()
	b.gen++
	fn()
	cb := b.onChange
	b.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// snapshotState deep-copies a store's fields by JSON round-trip, the
// pristine copy Reset restores.
func snapshotState(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot store state: %w", err)
	}
	return data, nil
}

func restoreState(snapshot json.RawMessage, v any) error {
	if err := json.Unmarshal(snapshot, v); err != nil {
		return fmt.Errorf("restore store state: %w", err)
	}
	return nil
}
