package thread

import (
	"context"
	"sync"

	wasmjournal "github.com/wippyai/wasm-journal"
)

// Handle is a slot in the thread table. Handle 0 is never valid.
type Handle uint32

// SpawnRequest carries everything needed to recreate a thread. The entry
// point has already been narrowed to Width.
type SpawnRequest struct {
	CallStack   []byte
	MemoryStack []byte
	StoreData   []byte
	Layout      wasmjournal.MemoryLayout
	EntryPoint  uint64
	ID          wasmjournal.ThreadID
	Width       wasmjournal.AddressWidth
}

// Launcher starts a reserved thread. A returned error aborts creation.
type Launcher interface {
	Launch(ctx context.Context, t *Thread, req SpawnRequest) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, t *Thread, req SpawnRequest) error

func (f LauncherFunc) Launch(ctx context.Context, t *Thread, req SpawnRequest) error {
	return f(ctx, t, req)
}

// State is the lifecycle state of a thread.
type State uint8

const (
	StateReserved State = iota
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateReserved:
		return "reserved"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Thread is a live guest thread.
type Thread struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	exitCode uint32

	Layout     wasmjournal.MemoryLayout
	EntryPoint uint64
	ID         wasmjournal.ThreadID
	Width      wasmjournal.AddressWidth
}

func newThread(parent context.Context, req SpawnRequest) *Thread {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Thread{
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		ID:         req.ID,
		EntryPoint: req.EntryPoint,
		Layout:     req.Layout,
		Width:      req.Width,
	}
}

// Context is canceled when the thread is terminated.
func (t *Thread) Context() context.Context {
	return t.ctx
}

// Done is closed once the thread has exited.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

// State returns the current lifecycle state.
func (t *Thread) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ExitCode returns the exit code; it is only meaningful once Done is
// closed.
func (t *Thread) ExitCode() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exitCode
}

func (t *Thread) setRunning() {
	t.mu.Lock()
	t.state = StateRunning
	t.mu.Unlock()
}

// exit marks the thread exited. It reports false if it already was.
func (t *Thread) exit(code uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateExited {
		return false
	}
	t.state = StateExited
	t.exitCode = code
	t.cancel()
	close(t.done)
	return true
}

// EventType is a thread lifecycle notification type.
type EventType uint8

const (
	EventReserved EventType = iota
	EventStarted
	EventExited
	EventReleased
)

// Event is a thread lifecycle notification.
type Event struct {
	Thread *Thread
	Handle Handle
	ID     wasmjournal.ThreadID
	Type   EventType
}

// Observer receives thread lifecycle events. Observers are called
// synchronously and must not call back into the table.
type Observer interface {
	OnThreadEvent(Event)
}
