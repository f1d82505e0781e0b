package effector

import (
	"testing"

	"github.com/wippyai/wasm-journal/journal"
)

func TestPollQueueOrderPerThread(t *testing.T) {
	q := NewPollQueue()
	a1 := &journal.PollOneoff{Thread: 1}
	a2 := &journal.PollOneoff{Thread: 1}
	b1 := &journal.PollOneoff{Thread: 2}
	q.Push(a1)
	q.Push(b1)
	q.Push(a2)

	if q.Len() != 3 {
		t.Fatalf("Len = %d", q.Len())
	}
	if p, _ := q.Pop(2); p != b1 {
		t.Error("thread 2 got wrong poll")
	}
	if p, _ := q.Pop(1); p != a1 {
		t.Error("thread 1 polls out of order")
	}
	if p, _ := q.Pop(1); p != a2 {
		t.Error("thread 1 second poll wrong")
	}
	if _, ok := q.Pop(1); ok {
		t.Error("pop from drained queue succeeded")
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after draining", q.Len())
	}
}
