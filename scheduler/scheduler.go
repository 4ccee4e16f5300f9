// Package scheduler implements the manual task scheduler: one that never
// owns threads of its own. A caller drives progress entirely by invoking
// Tick — useful for work that must run on a specific externally-owned
// thread, such as a UI event loop, an I/O reactor, or a deterministic test
// driver.
//
// Ported from org.threadly.concurrent.NoThreadScheduler (see
// original_source/ in the retrieval pack) onto this repo's clock and queue
// packages. Submission and removal are safe from any goroutine; exactly
// one goroutine is expected to drive dispatch via Tick at a time — see
// Tick's doc comment for the concurrency contract.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/snehjoshi/tickwork/clock"
	"github.com/snehjoshi/tickwork/internal/queue"
	"github.com/snehjoshi/tickwork/task"
)

// ErrNilTask is returned by Schedule/ScheduleWithFixedDelay when task is nil.
var ErrNilTask = errors.New("scheduler: task must not be nil")

// ErrNegativeDelay is returned when a delay argument is negative.
var ErrNegativeDelay = errors.New("scheduler: delay must not be negative")

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithTickBlocksUntilAvailable sets whether Tick, when called with nothing
// ready to run, blocks until at least one task runs (true) or returns zero
// immediately (false, the default).
func WithTickBlocksUntilAvailable(blocks bool) Option {
	return func(s *Scheduler) { s.tickBlocks = blocks }
}

// WithClock supplies the Clock the scheduler reads its current time from.
// Default is clock.Default().
func WithClock(c *clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// Scheduler accepts task submissions and dispatches ready ones via Tick.
type Scheduler struct {
	queue      *queue.Queue
	clock      *clock.Clock
	tickBlocks bool

	// tickInFlight is an assertion, not a serializing guard: Tick does not
	// make a second concurrent caller wait for the first (see Tick's doc
	// comment). It catches accidental concurrent-tick bugs cheaply, via a
	// single CAS in every build, without imposing the mutex a hard guard
	// would need.
	tickInFlight atomic.Bool
}

// New constructs a Scheduler. With no options, tick never blocks and the
// scheduler reads time from clock.Default().
func New(opts ...Option) *Scheduler {
	s := &Scheduler{clock: clock.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.queue = queue.New(s.clock.NowCached)
	return s
}

// Execute is equivalent to Schedule(t, 0).
func (s *Scheduler) Execute(t task.Task) error {
	return s.Schedule(t, 0)
}

// Schedule submits t to run once, after delayMs. Rejects a nil task or a
// negative delay without modifying the queue.
func (s *Scheduler) Schedule(t task.Task, delayMs int64) error {
	if t == nil {
		return ErrNilTask
	}
	if delayMs < 0 {
		return ErrNegativeDelay
	}
	s.queue.Insert(queue.NewOneShot(t, delayMs))
	return nil
}

// ScheduleWithFixedDelay submits t to run every recurringDelayMs, first
// after initialDelayMs. Rejects a nil task or a negative delay without
// modifying the queue.
func (s *Scheduler) ScheduleWithFixedDelay(t task.Task, initialDelayMs, recurringDelayMs int64) error {
	if t == nil {
		return ErrNilTask
	}
	if initialDelayMs < 0 || recurringDelayMs < 0 {
		return ErrNegativeDelay
	}
	s.queue.Insert(queue.NewRecurring(t, initialDelayMs, recurringDelayMs))
	return nil
}

// Remove removes the first container (one-shot or recurring) whose task
// equals t, returning whether a removal occurred. A recurring task removed
// between firings does not fire again. The contract is "no firings after
// Remove returns true"; a removal racing with an in-progress firing of the
// same task on another goroutine may or may not prevent that one firing.
func (s *Scheduler) Remove(t task.Task) bool {
	return s.queue.RemoveByTask(t)
}

// ClearTasks empties the queue without running anything in it.
func (s *Scheduler) ClearTasks() {
	s.queue.Clear()
}

// HasTaskReadyToRun reports whether the next Tick call is guaranteed to
// run at least one task.
func (s *Scheduler) HasTaskReadyToRun() bool {
	c, ok := s.queue.PeekHead()
	if !ok {
		return false
	}
	return c.Ready(s.clock.NowCached())
}

// IsShutdown always returns false: this scheduler has no lifecycle of its
// own, matching org.threadly.concurrent.NoThreadScheduler.isShutdown().
func (s *Scheduler) IsShutdown() bool { return false }

// Tick is TickContext(context.Background()).
func (s *Scheduler) Tick() (int, error) {
	return s.TickContext(context.Background())
}

// TickContext drains every task that is ready to run, running each on the
// calling goroutine, and returns how many ran.
//
// If the scheduler was constructed with WithTickBlocksUntilAvailable(true)
// and nothing ran on the first pass, TickContext blocks until either a
// submission arrives or the current head's delay expires, then retries —
// it does not return 0 in that configuration unless ctx is cancelled
// first, in which case it returns ctx.Err().
//
// If a task's Run panics, the panic propagates up through TickContext
// uncaught: the container has already been removed (one-shot) or
// repositioned (recurring) before Run was called, so the queue is left
// consistent, but tasks queued after the panicking one do not run during
// this call. TickContext itself does not recover — a caller that wants
// cancel-on-panic semantics must wrap its task.
//
// TickContext does not serialize concurrent callers: callers must ensure
// at most one Tick/TickContext call is in flight at a time. If a second
// call starts while one is in flight on the same Scheduler, the second call
// panics. Each ready task is taken off the queue by a single locked
// check-and-remove step, so no task is run twice. No mutex is held across
// the tick, which keeps the common, single-driver path lock-light.
func (s *Scheduler) TickContext(ctx context.Context) (int, error) {
	if !s.tickInFlight.CompareAndSwap(false, true) {
		panic("scheduler: concurrent Tick/TickContext calls detected")
	}
	defer s.tickInFlight.Store(false)

	count := 0
	for {
		count += s.drainReady()

		if !s.tickBlocks || count > 0 {
			return count, nil
		}

		head, ok := s.queue.PeekHead()
		if !ok {
			select {
			case <-ctx.Done():
				return count, ctx.Err()
			case <-s.queue.NotifyChan():
			}
			continue
		}

		remaining := head.RemainingDelay(s.clock.NowCached())
		if remaining <= 0 {
			continue
		}

		t := time.NewTimer(time.Duration(remaining) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return count, ctx.Err()
		case <-s.queue.NotifyChan():
			t.Stop()
		case <-t.C:
		}
	}
}

// drainReady pops and runs every currently-ready task, returning how many
// ran. A recurring task is requeued (its fire time advanced from its
// recurring delay) before it runs, so a panicking task body still leaves
// its schedule intact.
func (s *Scheduler) drainReady() int {
	ran := 0
	for {
		now := s.clock.NowCached()
		c, ok := s.queue.PopIfReady(now)
		if !ok {
			return ran
		}
		ran++
		if c.Recurring() {
			s.queue.Requeue(c)
		}
		c.Task().Run()
	}
}
