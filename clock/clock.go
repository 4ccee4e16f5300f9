// Package clock provides a low-overhead millisecond clock: a cached read
// with no syscall, an accurate read that refreshes the cache, and an
// optional background refresher that keeps the cached value current on a
// fixed cadence.
//
// Ported from the cached-clock design used throughout the threadly
// scheduling library (org.threadly.util.Clock): a single volatile/atomic
// field updated by a daemon that sleeps AUTOMATIC_UPDATE_FREQUENCY_IN_MS
// between samples.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCadence is the refresher's sampling interval when none is given.
const DefaultCadence = 100 * time.Millisecond

// Clock is a cached millisecond-resolution time source. The zero value is
// not usable; construct with New.
type Clock struct {
	cached  atomic.Int64
	cadence time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New returns a Clock stamped with the current time. cadence controls the
// refresher's sampling interval (DefaultCadence if <= 0). The refresher is
// not started automatically; call StartRefresher to begin periodic refresh.
func New(cadence time.Duration) *Clock {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	c := &Clock{cadence: cadence}
	c.NowAccurate()
	return c
}

var defaultClock = buildDefault()

func buildDefault() *Clock {
	c := New(DefaultCadence)
	c.StartRefresher()
	return c
}

// Default returns a process-wide Clock whose refresher is already running
// at DefaultCadence. It exists purely for convenience — scheduler.New uses
// it when no explicit Clock is supplied — and is not required reading for
// understanding the library; prefer constructing your own Clock when you
// need control over its lifecycle.
func Default() *Clock { return defaultClock }

// NowCached returns the last-refreshed millisecond value. Non-blocking,
// wait-free, and safe under concurrent refreshes: the underlying store is
// an atomic int64, so reads never observe a torn value even on 32-bit
// hosts.
func (c *Clock) NowCached() int64 { return c.cached.Load() }

// NowAccurate performs a fresh time read, stores it as the new cached
// value, and returns it. Safe for concurrent use; if two callers race, the
// last store wins and both return a recent, valid value.
func (c *Clock) NowAccurate() int64 {
	now := time.Now().UnixMilli()
	c.cached.Store(now)
	return now
}

// StartRefresher idempotently starts the background refresher goroutine,
// which loops: NowAccurate(); sleep(cadence). At most one refresher is ever
// active for a given Clock.
func (c *Clock) StartRefresher() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.refresh(c.stopCh, c.doneCh)
}

// StopRefresher signals the refresher to exit and waits for it to do so.
// Idempotent: calling it when no refresher is running is a no-op.
func (c *Clock) StopRefresher() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.Unlock()

	close(stopCh)
	<-doneCh
}

// Running reports whether the background refresher is currently active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) refresh(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	c.NowAccurate()
	t := time.NewTicker(c.cadence)
	defer t.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-t.C:
			c.NowAccurate()
		}
	}
}
