package task_test

import (
	"testing"

	"github.com/snehjoshi/tickwork/task"
)

func TestNewFunc_RunsWrappedFunc(t *testing.T) {
	ran := false
	tk := task.NewFunc(func() { ran = true })
	tk.Run()
	if !ran {
		t.Fatal("expected wrapped func to run")
	}
}

func TestNewFunc_DistinctHandlesNeverEqual(t *testing.T) {
	f := func() {}
	a := task.NewFunc(f)
	b := task.NewFunc(f)
	if a == b {
		t.Fatal("two NewFunc calls wrapping the same closure must not compare equal")
	}
}

func TestNewFunc_SameHandleEqualsItself(t *testing.T) {
	a := task.NewFunc(func() {})
	var b task.Task = a
	if a != b {
		t.Fatal("the same handle must compare equal to itself through the interface")
	}
}
