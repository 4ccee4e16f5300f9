// Package queue implements the ordered delayed-task queue that backs both
// scheduler variants: a mutable sequence of Containers kept sorted
// ascending by fire time, guarded by a single modification mutex.
//
// This is a from-scratch port of org.threadly.concurrent.NoThreadScheduler's
// internal queue discipline, deliberately not a container/heap-based binary
// heap: a heap has no stable tie order, and this queue's insertion position
// must implement "last-equal-wins" (new entries with an equal fire time sort
// after existing ones) to satisfy fairness among equally-delayed
// submissions. The notify-channel wake signal and the overall
// mutex-guarded-slice shape follow a delayed-delivery scheduler's usual Go
// rendition of the same discipline.
package queue

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/snehjoshi/tickwork/task"
)

// NowFunc returns the current time in milliseconds, as observed by a Queue
// for stamping and ordering decisions.
type NowFunc func() int64

// noHeadSentinel is stored in headFireAt when the queue is empty, so that
// the lock-free HeadDue fast path never reports a false positive.
const noHeadSentinel = int64(1<<63 - 1)

// Queue is a concurrency-safe, ascending-by-fire-time sequence of
// Containers. All mutating operations acquire mu; HeadDue is a best-effort,
// lock-free snapshot intended for the scheduler's fast "is anything ready"
// check.
type Queue struct {
	mu    sync.Mutex
	items []*Container
	nowFn NowFunc

	// Clock-freeze bracket state. Guarded by mu: every mutating operation
	// that needs a stable now() across a stamp+search sequence already
	// holds mu for its whole duration, so a simple depth counter (rather
	// than a per-goroutine/thread-local flag) is sufficient here — the
	// single-writer-at-a-time invariant mu provides is exactly what the
	// freeze bracket needs.
	freezeDepth int
	frozenAt    int64

	headFireAt atomic.Int64
	notifyCh   chan struct{}
}

// New returns an empty Queue that reads the current time from nowFn.
func New(nowFn NowFunc) *Queue {
	q := &Queue{nowFn: nowFn, notifyCh: make(chan struct{}, 1)}
	q.headFireAt.Store(noHeadSentinel)
	return q
}

// NotifyChan returns a channel that receives a value (best-effort, never
// blocking a writer) whenever a container is inserted or requeued; removals
// and Clear do not signal it. A blocking Tick
// implementation selects on this alongside a timer for the head's
// remaining delay.
func (q *Queue) NotifyChan() <-chan struct{} { return q.notifyCh }

// HeadDue reports, without acquiring mu, whether the queue's last-known
// head fire time is <= now. It may be stale by at most one concurrent
// mutation; callers that need a definitive answer must follow up under mu
// (PeekHead or PopIfReady).
func (q *Queue) HeadDue(now int64) bool {
	return q.headFireAt.Load() <= now
}

// now returns the queue's current notion of time, honouring an active
// clock-freeze bracket. Must be called with mu held.
func (q *Queue) now() int64 {
	if q.freezeDepth > 0 {
		return q.frozenAt
	}
	return q.nowFn()
}

// freeze begins (or, if nested, extends) a clock-freeze bracket: every
// now() call made while a bracket is open returns the single value
// captured at the 0→1 transition. Must be called with mu held; every
// freeze must be paired with a deferred unfreeze.
func (q *Queue) freeze() {
	if q.freezeDepth == 0 {
		q.frozenAt = q.nowFn()
	}
	q.freezeDepth++
}

func (q *Queue) unfreeze() {
	q.freezeDepth--
}

// syncHead refreshes the lock-free head snapshot. Must be called with mu
// held, after any mutation to items.
func (q *Queue) syncHead() {
	if len(q.items) == 0 {
		q.headFireAt.Store(noHeadSentinel)
		return
	}
	q.headFireAt.Store(q.items[0].fireAt)
}

func (q *Queue) wake() {
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

// insertionIndex returns the first index in items (sorted ascending by
// fireAt) whose fireAt is strictly greater than key — the "last-equal-wins"
// position, so a new entry with a tied key lands after every existing
// entry with that same key.
func insertionIndex(items []*Container, key int64) int {
	return sort.Search(len(items), func(i int) bool { return items[i].fireAt > key })
}

// insertionIndexFromRear computes the identical index as insertionIndex,
// but by scanning backward from the tail rather than bisecting. Recurring
// containers are repositioned immediately after firing, and their new
// delay is usually long relative to what's already queued near the front,
// so their insertion point is usually near the back — a backward linear
// scan reaches it faster in the common case without changing the result.
func insertionIndexFromRear(items []*Container, key int64) int {
	i := len(items)
	for i > 0 && items[i-1].fireAt > key {
		i--
	}
	return i
}

func insertAt(items []*Container, idx int, c *Container) []*Container {
	items = append(items, nil)
	copy(items[idx+1:], items[idx:])
	items[idx] = c
	return items
}

// Insert stamps c's initial fire time from the queue's clock and places it
// at the last-equal-wins position among existing entries, then wakes any
// blocked waiter.
func (q *Queue) Insert(c *Container) {
	q.mu.Lock()
	q.freeze()
	c.stampInitial(q.now())
	idx := insertionIndex(q.items, c.fireAt)
	q.items = insertAt(q.items, idx, c)
	q.unfreeze()
	q.syncHead()
	q.mu.Unlock()

	q.wake()
}

// PeekHead returns the earliest-firing container without removing it, or
// (nil, false) if the queue is empty.
func (q *Queue) PeekHead() (*Container, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// PopIfReady removes and returns the head container if, at now, it is
// ready — combining the ready-check and the removal into one locked step,
// so a concurrent submission or removal can never race between "checked
// ready" and "removed". Returns (nil, false) without mutating the queue if
// the queue is empty or its head is not yet ready.
func (q *Queue) PopIfReady(now int64) (*Container, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	head := q.items[0]
	if !head.Ready(now) {
		return nil, false
	}
	q.items = q.items[1:]
	q.syncHead()
	return head, true
}

// Requeue re-stamps a recurring container's fire time from its recurring
// delay (now() + recurringDelay, measured at requeue time — so ticks that
// run late do not try to "catch up" to a fixed grid) and reinserts it at
// the resulting last-equal-wins position, searching from the rear.
// c must already be out of the queue (PopIfReady removes it before the
// caller decides whether to requeue).
func (q *Queue) Requeue(c *Container) {
	q.mu.Lock()
	q.freeze()
	key := q.now() + c.recurringDelay
	idx := insertionIndexFromRear(q.items, key)
	q.items = insertAt(q.items, idx, c)
	c.fireAt = key
	q.unfreeze()
	q.syncHead()
	q.mu.Unlock()

	q.wake()
}

// RemoveByTask removes the first container whose task equals t, returning
// whether a removal occurred. O(n): the queue is ordered by fire time, not
// by task identity, so this scans linearly.
func (q *Queue) RemoveByTask(t task.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, c := range q.items {
		if c.t == t {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.syncHead()
			return true
		}
	}
	return false
}

// Clear drops every container without running any of them.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.syncHead()
	q.mu.Unlock()
}

// Len returns the current number of queued containers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Sorted reports whether items is non-decreasing by fireAt. Exposed for
// tests asserting the sortedness invariant; not used by production code
// paths, which maintain the invariant by construction.
func (q *Queue) Sorted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 1; i < len(q.items); i++ {
		if q.items[i-1].fireAt > q.items[i].fireAt {
			return false
		}
	}
	return true
}
