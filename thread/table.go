package thread

import (
	"sync"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
)

type slot struct {
	thread *Thread
	id     wasmjournal.ThreadID
	valid  bool
}

// Table holds live threads by handle and by thread id. Freed handles are
// reused.
type Table struct {
	slots    []slot
	freeList []Handle
	byID     map[wasmjournal.ThreadID]Handle
	mu       sync.RWMutex
	closed   bool

	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		slots:    make([]slot, 0, 16),
		freeList: make([]Handle, 0, 4),
		byID:     make(map[wasmjournal.ThreadID]Handle),
	}
}

// Reserve claims a handle for id. It fails if id is already live.
func (t *Table) Reserve(id wasmjournal.ThreadID, th *Thread) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, errors.Closed(errors.PhaseSpawn, "thread table")
	}
	if _, dup := t.byID[id]; dup {
		t.mu.Unlock()
		return 0, errors.New(errors.PhaseSpawn, errors.KindInvalidInput).
			Path("thread", "id").
			Value(uint32(id)).
			Detail("thread %d already exists", id).
			Build()
	}

	s := slot{thread: th, id: id, valid: true}
	var h Handle
	if n := len(t.freeList); n > 0 {
		h = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.slots[h-1] = s
	} else {
		t.slots = append(t.slots, s)
		h = Handle(len(t.slots))
	}
	t.byID[id] = h
	t.mu.Unlock()

	t.notify(Event{Type: EventReserved, Handle: h, ID: id, Thread: th})
	return h, nil
}

// Get returns the thread at h.
func (t *Table) Get(h Handle) (*Thread, bool) {
	if h == 0 {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := int(h - 1)
	if idx >= len(t.slots) || !t.slots[idx].valid {
		return nil, false
	}
	return t.slots[idx].thread, true
}

// Lookup returns the handle and thread registered for id.
func (t *Table) Lookup(id wasmjournal.ThreadID) (Handle, *Thread, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byID[id]
	if !ok {
		return 0, nil, false
	}
	return h, t.slots[h-1].thread, true
}

// Release frees h and returns the thread it held.
func (t *Table) Release(h Handle) (*Thread, bool) {
	if h == 0 {
		return nil, false
	}
	t.mu.Lock()
	idx := int(h - 1)
	if idx >= len(t.slots) || !t.slots[idx].valid {
		t.mu.Unlock()
		return nil, false
	}
	s := t.slots[idx]
	t.slots[idx] = slot{}
	delete(t.byID, s.id)
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	t.notify(Event{Type: EventReleased, Handle: h, ID: s.id, Thread: s.thread})
	return s.thread, true
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Each calls fn for every live thread until fn returns false.
func (t *Table) Each(fn func(Handle, *Thread) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, s := range t.slots {
		if s.valid && !fn(Handle(i+1), s.thread) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close stops accepting reservations. Live threads are left to their
// owner.
func (t *Table) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnThreadEvent(e)
	}
}
