package queue

import "github.com/snehjoshi/tickwork/task"

// kind tags a Container as a one-shot or recurring submission. Modeled as a
// tagged variant rather than a container/subcontainer class hierarchy, per
// the "abstract container with per-variant behavior" design note: the two
// variants differ only in how stampInitial and the recurring reposition
// compute their next fire time, not in how the queue stores or compares
// them.
type kind uint8

const (
	oneShot kind = iota
	recurring
)

// Container wraps a Task with the metadata a Queue needs to keep it sorted
// and to fire it at the right time: its fire time, and either a one-shot
// delay or an initial delay plus a recurring period.
//
// A Container does not hold a reference back to its owning Queue. The
// scheduler that owns the Queue applies removal or repositioning itself
// (see Queue.PopIfReady and Queue.Requeue) after reading a Container's
// Recurring/fire-time state — this avoids the cyclic container-to-scheduler
// back-pointer the original design used.
type Container struct {
	t      task.Task
	fireAt int64 // ms since epoch; -1 until stamped by Insert
	kind   kind

	initialDelay   int64
	recurringDelay int64
}

// NewOneShot returns an unstamped one-shot Container. Call Insert to stamp
// and place it.
func NewOneShot(t task.Task, delayMs int64) *Container {
	return &Container{t: t, fireAt: -1, kind: oneShot, initialDelay: delayMs}
}

// NewRecurring returns an unstamped recurring Container.
func NewRecurring(t task.Task, initialDelayMs, recurringDelayMs int64) *Container {
	return &Container{
		t:              t,
		fireAt:         -1,
		kind:           recurring,
		initialDelay:   initialDelayMs,
		recurringDelay: recurringDelayMs,
	}
}

// Task returns the wrapped task.
func (c *Container) Task() task.Task { return c.t }

// Recurring reports whether this is a recurring container.
func (c *Container) Recurring() bool { return c.kind == recurring }

// FireAt returns the container's current absolute fire time in ms, or -1
// if it has not yet been stamped.
func (c *Container) FireAt() int64 { return c.fireAt }

// RemainingDelay returns fireAt - now: how long until the container is
// ready, possibly negative if it is already overdue.
func (c *Container) RemainingDelay(now int64) int64 { return c.fireAt - now }

// Ready reports whether RemainingDelay(now) <= 0.
func (c *Container) Ready(now int64) bool { return c.RemainingDelay(now) <= 0 }

// stampInitial sets fireAt = now + initialDelay. Called exactly once, by
// Insert, under the queue's modification mutex and inside a clock-freeze
// bracket.
func (c *Container) stampInitial(now int64) {
	c.fireAt = now + c.initialDelay
}
