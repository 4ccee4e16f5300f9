package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/snehjoshi/tickwork/task"
)

func fixedNow(ms int64) NowFunc {
	return func() int64 { return ms }
}

func TestInsert_OrdersAscendingByFireTime(t *testing.T) {
	var now atomic.Int64
	q := New(now.Load)

	a := NewOneShot(task.NewFunc(func() {}), 30)
	b := NewOneShot(task.NewFunc(func() {}), 10)
	c := NewOneShot(task.NewFunc(func() {}), 20)

	q.Insert(a)
	q.Insert(b)
	q.Insert(c)

	if !q.Sorted() {
		t.Fatal("queue not sorted after inserts")
	}
	head, ok := q.PeekHead()
	if !ok || head != b {
		t.Fatal("expected container with smallest delay to be head")
	}
}

func TestInsert_LastEqualWins(t *testing.T) {
	var now atomic.Int64
	q := New(now.Load)

	first := NewOneShot(task.NewFunc(func() {}), 10)
	second := NewOneShot(task.NewFunc(func() {}), 10)

	q.Insert(first)
	q.Insert(second)

	head, _ := q.PeekHead()
	if head != first {
		t.Fatal("expected the earlier insertion to sort before an equal-delay later insertion")
	}
}

func TestPopIfReady_OnlyPopsWhenDue(t *testing.T) {
	q := New(fixedNow(0))
	c := NewOneShot(task.NewFunc(func() {}), 10)
	q.Insert(c)

	if _, ok := q.PopIfReady(5); ok {
		t.Fatal("expected PopIfReady(5) to fail before fire time 10")
	}
	got, ok := q.PopIfReady(10)
	if !ok || got != c {
		t.Fatal("expected PopIfReady(10) to return the container")
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after pop, want 0", q.Len())
	}
}

func TestPopIfReady_EmptyQueue(t *testing.T) {
	q := New(fixedNow(0))
	if _, ok := q.PopIfReady(1000); ok {
		t.Fatal("expected PopIfReady on empty queue to fail")
	}
}

func TestRequeue_RestampsFromRequeueTime(t *testing.T) {
	var now atomic.Int64
	now.Store(100)
	q := New(now.Load)

	c := NewRecurring(task.NewFunc(func() {}), 0, 50)
	q.Insert(c) // fireAt = 100

	popped, ok := q.PopIfReady(150)
	if !ok || popped != c {
		t.Fatal("expected container ready at 150")
	}

	now.Store(160) // simulate the tick running late
	q.Requeue(popped)

	if popped.FireAt() != 210 {
		t.Fatalf("FireAt() after requeue = %d, want 210 (drift-based, not a fixed grid)", popped.FireAt())
	}
}

func TestRemoveByTask_RemovesMatchingContainer(t *testing.T) {
	q := New(fixedNow(0))
	tk := task.NewFunc(func() {})
	c := NewOneShot(tk, 10)
	q.Insert(c)

	if !q.RemoveByTask(tk) {
		t.Fatal("expected RemoveByTask to find the task")
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after removal, want 0", q.Len())
	}
	if q.RemoveByTask(tk) {
		t.Fatal("expected second RemoveByTask to find nothing")
	}
}

func TestClear_EmptiesQueue(t *testing.T) {
	q := New(fixedNow(0))
	q.Insert(NewOneShot(task.NewFunc(func() {}), 10))
	q.Insert(NewOneShot(task.NewFunc(func() {}), 20))

	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", q.Len())
	}
}

func TestHeadDue_TracksMutationsWithoutLocking(t *testing.T) {
	q := New(fixedNow(0))
	if q.HeadDue(0) {
		t.Fatal("expected HeadDue false on empty queue")
	}

	q.Insert(NewOneShot(task.NewFunc(func() {}), 10))
	if q.HeadDue(5) {
		t.Fatal("expected HeadDue(5) false before fire time 10")
	}
	if !q.HeadDue(10) {
		t.Fatal("expected HeadDue(10) true at fire time")
	}
}

func TestNotifyChan_WakesOnInsert(t *testing.T) {
	q := New(fixedNow(0))
	q.Insert(NewOneShot(task.NewFunc(func() {}), 10))

	select {
	case <-q.NotifyChan():
	default:
		t.Fatal("expected a pending notification after Insert")
	}
}

func TestConcurrentInsertAndPop(t *testing.T) {
	var now atomic.Int64
	now.Store(1000)
	q := New(now.Load)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Insert(NewOneShot(task.NewFunc(func() {}), 0))
		}()
	}
	wg.Wait()

	popped := 0
	for {
		_, ok := q.PopIfReady(1000)
		if !ok {
			break
		}
		popped++
	}
	if popped != 50 {
		t.Fatalf("popped %d containers, want 50", popped)
	}
}
