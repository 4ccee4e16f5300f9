// Package vscheduler implements the virtual-time scheduler variant: the
// same submission and lifecycle surface as package scheduler, but its
// internal now() accessor returns a caller-supplied time instead of a
// cached wall-clock read. This makes dispatch a pure function of the
// submissions and the sequence of Tick(now) calls, enabling deterministic
// tests that advance past many recurrences of a task without sleeping.
package vscheduler

import (
	"errors"
	"sync/atomic"

	"github.com/snehjoshi/tickwork/internal/queue"
	"github.com/snehjoshi/tickwork/task"
)

// ErrNilTask is returned by Schedule/ScheduleWithFixedDelay when task is nil.
var ErrNilTask = errors.New("vscheduler: task must not be nil")

// ErrNegativeDelay is returned when a delay argument is negative.
var ErrNegativeDelay = errors.New("vscheduler: delay must not be negative")

// Scheduler is the virtual-time counterpart to scheduler.Scheduler.
type Scheduler struct {
	queue *queue.Queue
	now   atomic.Int64
}

// New constructs a Scheduler whose virtual clock starts at 0.
func New() *Scheduler {
	s := &Scheduler{}
	s.queue = queue.New(s.now.Load)
	return s
}

// SetTime sets the scheduler's virtual clock to ms, without running
// anything. Subsequent submissions stamp their fire time from ms.
func (s *Scheduler) SetTime(ms int64) { s.now.Store(ms) }

// Advance moves the scheduler's virtual clock forward by deltaMs, without
// running anything.
func (s *Scheduler) Advance(deltaMs int64) { s.now.Add(deltaMs) }

// Now returns the scheduler's current virtual time.
func (s *Scheduler) Now() int64 { return s.now.Load() }

// Execute is equivalent to Schedule(t, 0).
func (s *Scheduler) Execute(t task.Task) error {
	return s.Schedule(t, 0)
}

// Schedule submits t to run once, after delayMs measured from the
// scheduler's current virtual time.
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
// after initialDelayMs, both measured from the scheduler's current virtual
// time.
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

// Remove removes the first container whose task equals t, returning
// whether a removal occurred.
func (s *Scheduler) Remove(t task.Task) bool {
	return s.queue.RemoveByTask(t)
}

// ClearTasks empties the queue without running anything in it.
func (s *Scheduler) ClearTasks() {
	s.queue.Clear()
}

// HasTaskReadyToRun reports whether the next Tick call is guaranteed to
// run at least one task, at the scheduler's current virtual time.
func (s *Scheduler) HasTaskReadyToRun() bool {
	c, ok := s.queue.PeekHead()
	if !ok {
		return false
	}
	return c.Ready(s.now.Load())
}

// IsShutdown always returns false.
func (s *Scheduler) IsShutdown() bool { return false }

// Tick sets the scheduler's virtual time to now, then runs every task
// whose fire time is <= now, returning how many ran. Unlike the manual
// scheduler's Tick, this never blocks: virtual time only ever moves when a
// caller calls SetTime, Advance, or Tick.
//
// A recurring task's fire time after this firing is now + its recurring
// delay, so if now jumps past more than one period, only the most recent
// occurrence fires here — the schedule does not replay missed
// intermediate occurrences (see DESIGN.md for the worked example this
// resolves).
//
// As with the manual scheduler, a panicking task's Run propagates up
// through Tick uncaught, after the task's container has already been
// removed or repositioned.
func (s *Scheduler) Tick(now int64) int {
	s.now.Store(now)
	ran := 0
	for {
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
