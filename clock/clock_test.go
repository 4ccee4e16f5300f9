package clock_test

import (
	"testing"
	"time"

	"github.com/snehjoshi/tickwork/clock"
)

func TestNew_StampsCurrentTime(t *testing.T) {
	before := time.Now().UnixMilli()
	c := clock.New(0)
	after := time.Now().UnixMilli()

	got := c.NowCached()
	if got < before || got > after {
		t.Fatalf("NowCached() = %d, want between %d and %d", got, before, after)
	}
}

func TestNew_DefaultsCadenceWhenNonPositive(t *testing.T) {
	c := clock.New(0)
	c.StartRefresher()
	defer c.StopRefresher()
	if !c.Running() {
		t.Fatal("expected refresher to start with a non-positive cadence defaulted")
	}
}

func TestNowAccurate_RefreshesCachedValue(t *testing.T) {
	c := clock.New(time.Hour)
	first := c.NowCached()
	time.Sleep(5 * time.Millisecond)
	second := c.NowAccurate()

	if second < first {
		t.Fatalf("NowAccurate() went backward: %d -> %d", first, second)
	}
	if c.NowCached() != second {
		t.Fatalf("NowCached() = %d after NowAccurate() = %d, want equal", c.NowCached(), second)
	}
}

func TestStartStopRefresher_Idempotent(t *testing.T) {
	c := clock.New(5 * time.Millisecond)

	c.StartRefresher()
	c.StartRefresher()
	if !c.Running() {
		t.Fatal("expected refresher running after double start")
	}

	c.StopRefresher()
	c.StopRefresher()
	if c.Running() {
		t.Fatal("expected refresher stopped after double stop")
	}
}

func TestRefresher_UpdatesCacheOnCadence(t *testing.T) {
	c := clock.New(5 * time.Millisecond)
	c.StartRefresher()
	defer c.StopRefresher()

	start := c.NowCached()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if c.NowCached() > start {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("expected cached value to advance while refresher is running")
}

func TestDefault_ReturnsSameInstanceAndIsRunning(t *testing.T) {
	a := clock.Default()
	b := clock.Default()
	if a != b {
		t.Fatal("Default() must return the same process-wide Clock every call")
	}
	if !a.Running() {
		t.Fatal("expected the default Clock's refresher to already be running")
	}
}
