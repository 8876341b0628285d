package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// manualTicks installs a hand-fed timer channel and returns the feeder.
func manualTicks(p *Poller) chan time.Time {
	ch := make(chan time.Time)
	p.Ticks = func(time.Duration, <-chan struct{}) <-chan time.Time { return ch }
	return ch
}

func TestPollerCadence(t *testing.T) {
	p := &Poller{Interval: time.Second}
	ticks := manualTicks(p)
	var loads atomic.Int64
	loaded := make(chan struct{}, 16)
	load := func(ctx context.Context) error {
		loads.Add(1)
		loaded <- struct{}{}
		return nil
	}

	if err := p.Setup(context.Background(), load); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// Setup runs exactly one synchronous load before any tick.
	<-loaded
	if got := loads.Load(); got != 1 {
		t.Fatalf("loads after setup = %d, want 1", got)
	}

	for i := 0; i < 3; i++ {
		ticks <- time.Now()
		select {
		case <-loaded:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d did not trigger a load", i)
		}
	}
	if got := loads.Load(); got != 4 {
		t.Fatalf("loads after 3 ticks = %d, want 4", got)
	}

	p.TearDown()
	// Give the loop time to observe the closed stop channel before
	// offering another tick.
	time.Sleep(50 * time.Millisecond)
	select {
	case ticks <- time.Now():
		t.Fatal("loop still consuming ticks after TearDown")
	case <-time.After(100 * time.Millisecond):
	}
	select {
	case <-loaded:
		t.Fatal("load after TearDown")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPollerFirstLoadFailureLeavesUnarmed(t *testing.T) {
	p := &Poller{Interval: time.Second}
	manualTicks(p)
	wantErr := errors.New("backend down")
	err := p.Setup(context.Background(), func(ctx context.Context) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("setup err = %v", err)
	}
	if p.Running() {
		t.Fatal("poller armed after failed first load")
	}
}

func TestPollerTearDownIdempotent(t *testing.T) {
	p := &Poller{Interval: time.Second}
	manualTicks(p)
	p.TearDown() // no timer armed yet

	if err := p.Setup(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if !p.Running() {
		t.Fatal("poller not running after setup")
	}
	p.TearDown()
	p.TearDown()
	if p.Running() {
		t.Fatal("poller running after TearDown")
	}
}

func TestPollerContextCancelDisarms(t *testing.T) {
	p := &Poller{Interval: time.Second}
	manualTicks(p)
	noop := func(ctx context.Context) error { return nil }

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Setup(ctx, noop); err != nil {
		t.Fatalf("setup: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for p.Running() {
		select {
		case <-deadline:
			t.Fatal("poller still armed after context cancellation")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	// A fresh Setup arms a new timer.
	if err := p.Setup(context.Background(), noop); err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if !p.Running() {
		t.Fatal("poller not re-armed after cancellation")
	}
	p.TearDown()
}

func TestPollerSetupTwiceKeepsOneTimer(t *testing.T) {
	p := &Poller{Interval: time.Second}
	ticks := manualTicks(p)
	loaded := make(chan struct{}, 16)
	load := func(ctx context.Context) error {
		loaded <- struct{}{}
		return nil
	}
	if err := p.Setup(context.Background(), load); err != nil {
		t.Fatal(err)
	}
	<-loaded
	if err := p.Setup(context.Background(), load); err != nil {
		t.Fatal(err)
	}
	<-loaded

	ticks <- time.Now()
	<-loaded
	select {
	case <-loaded:
		t.Fatal("second timer loop is running")
	case <-time.After(200 * time.Millisecond):
	}
	p.TearDown()
}
