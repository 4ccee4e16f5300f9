// Package instance mints comparable, time-ordered identifiers for tagging
// task handles. A task.Task is only comparable by its underlying pointer —
// useful for Remove, useless for correlating a task with a log line or a
// metric series across a run. A minted ID fills that gap without attaching
// any persisted state to the process itself, since this substrate has no
// node identity of its own to track (no WAL, no clustering).
package instance

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// monoEntropy is a package-level monotone entropy source shared across all
// NewID calls, so IDs stay lexicographically ordered even when minted within
// the same millisecond.
var (
	monoMu      sync.Mutex
	monoEntropy io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewID mints a fresh, time-ordered ULID string. Callers use it to tag a
// task.Task adapter with a handle that sorts by mint time, so a sequence of
// scheduled tasks can be correlated across logs and metrics even though the
// task.Task interface itself only offers pointer equality.
func NewID() (string, error) {
	monoMu.Lock()
	defer monoMu.Unlock()
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, monoEntropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustNewID is like NewID but panics on error. Use only in tests or init code.
func MustNewID() string {
	id, err := NewID()
	if err != nil {
		panic(fmt.Sprintf("instance.MustNewID: %v", err))
	}
	return id
}
