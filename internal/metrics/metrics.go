// Package metrics provides a lightweight Prometheus-compatible metrics
// registry for a tickwork node. It deliberately avoids the
// prometheus/client_golang package so the daemon binary stays small with no
// additional dependencies.
//
// # Counter naming convention
//
// Every counter uses a tab-separated string as its label key so that a single
// sync.Map can hold all label combinations without additional map nesting.
//
//	TasksScheduled / TasksRun / TasksRemoved  →  key = "kind"  ("one_shot" or "recurring")
//	TicksTotal / TickEmptyTotal               →  no labels, key = ""
//
// # Prometheus text output
//
// Calling Registry.Handler() returns an http.Handler that renders all counters
// in the Prometheus exposition format (text/plain; version=0.0.4).
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ─── labelCounter ─────────────────────────────────────────────────────────────

// labelCounter is a lock-free, label-keyed counter map backed by sync.Map and
// atomic.Int64 values.
type labelCounter struct {
	vals sync.Map // key string → *atomic.Int64
}

func (lc *labelCounter) get(key string) *atomic.Int64 {
	v, _ := lc.vals.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Inc increments the counter for key by 1.
func (lc *labelCounter) Inc(key string) { lc.get(key).Add(1) }

// Add increments the counter for key by n.
func (lc *labelCounter) Add(key string, n int64) { lc.get(key).Add(n) }

// Each calls fn for every key/value pair. The order is non-deterministic.
func (lc *labelCounter) Each(fn func(key string, val int64)) {
	lc.vals.Range(func(k, v any) bool {
		fn(k.(string), v.(*atomic.Int64).Load())
		return true
	})
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry holds all tickwork application metrics. A Scheduler or
// vscheduler.Scheduler does not hold a Registry itself — a caller that wants
// metrics wraps Schedule/Tick calls and feeds counts into one, keeping the
// scheduling packages free of an observability dependency.
type Registry struct {
	// Task-level counters. key = "kind" ("one_shot" or "recurring")
	TasksScheduled labelCounter
	TasksRun       labelCounter
	TasksRemoved   labelCounter

	// Tick-level counters. No labels; always queried with key "".
	TicksTotal     labelCounter
	TickEmptyTotal labelCounter
}

// ─── Prometheus text serialisation ────────────────────────────────────────────

// Handler returns an http.Handler that renders all metrics in the Prometheus
// plain-text exposition format (text/plain; version=0.0.4).
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		var b strings.Builder

		writeFamily(&b, "tickwork_tasks_scheduled_total",
			"Total tasks submitted via Schedule or ScheduleWithFixedDelay", "counter",
			func(fn func(labels, val string)) {
				r.TasksScheduled.Each(func(key string, val int64) {
					fn(fmt.Sprintf(`kind=%q`, key), fmt.Sprintf("%d", val))
				})
			})

		writeFamily(&b, "tickwork_tasks_run_total",
			"Total tasks that finished Run", "counter",
			func(fn func(labels, val string)) {
				r.TasksRun.Each(func(key string, val int64) {
					fn(fmt.Sprintf(`kind=%q`, key), fmt.Sprintf("%d", val))
				})
			})

		writeFamily(&b, "tickwork_tasks_removed_total",
			"Total tasks removed before firing", "counter",
			func(fn func(labels, val string)) {
				r.TasksRemoved.Each(func(key string, val int64) {
					fn(fmt.Sprintf(`kind=%q`, key), fmt.Sprintf("%d", val))
				})
			})

		writeFamily(&b, "tickwork_ticks_total",
			"Total Tick/TickContext calls", "counter",
			func(fn func(labels, val string)) {
				r.TicksTotal.Each(func(_ string, val int64) {
					fn("", fmt.Sprintf("%d", val))
				})
			})

		writeFamily(&b, "tickwork_tick_empty_total",
			"Total Tick/TickContext calls that ran nothing", "counter",
			func(fn func(labels, val string)) {
				r.TickEmptyTotal.Each(func(_ string, val int64) {
					fn("", fmt.Sprintf("%d", val))
				})
			})

		fmt.Fprint(w, b.String())
	})
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// writeFamily writes a single Prometheus metric family to b.
// fill is called with a writer function that appends individual label+value lines.
func writeFamily(
	b *strings.Builder,
	name, help, typ string,
	fill func(fn func(labels, val string)),
) {
	var lines []string
	fill(func(labels, val string) {
		if labels == "" {
			lines = append(lines, fmt.Sprintf("%s %s\n", name, val))
			return
		}
		lines = append(lines, fmt.Sprintf("%s{%s} %s\n", name, labels, val))
	})
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
	for _, l := range lines {
		b.WriteString(l)
	}
}

// ─── Convenience key builders ─────────────────────────────────────────────────

const (
	// KindOneShot is the label value for a task scheduled via Schedule.
	KindOneShot = "one_shot"
	// KindRecurring is the label value for a task scheduled via
	// ScheduleWithFixedDelay.
	KindRecurring = "recurring"
)

// TickKey is the single, label-less key used by TicksTotal and
// TickEmptyTotal.
const TickKey = ""
