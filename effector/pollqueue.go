package effector

import (
	"sync"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/journal"
)

// PollQueue holds recorded polls per thread in journal order. Replay
// pushes; the poll host pops one entry per guest poll_oneoff call.
type PollQueue struct {
	mu      sync.Mutex
	pending map[wasmjournal.ThreadID][]*journal.PollOneoff
	n       int
}

// NewPollQueue creates an empty queue.
func NewPollQueue() *PollQueue {
	return &PollQueue{pending: make(map[wasmjournal.ThreadID][]*journal.PollOneoff)}
}

// Push appends p to its thread's queue.
func (q *PollQueue) Push(p *journal.PollOneoff) {
	q.mu.Lock()
	q.pending[p.Thread] = append(q.pending[p.Thread], p)
	q.n++
	q.mu.Unlock()
}

// Pop removes and returns the oldest poll recorded for id.
func (q *PollQueue) Pop(id wasmjournal.ThreadID) (*journal.PollOneoff, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.pending[id]
	if len(list) == 0 {
		return nil, false
	}
	p := list[0]
	list[0] = nil
	if len(list) == 1 {
		delete(q.pending, id)
	} else {
		q.pending[id] = list[1:]
	}
	q.n--
	return p, true
}

// Len returns the number of polls not yet consumed.
func (q *PollQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}
