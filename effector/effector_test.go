package effector

import (
	"bytes"
	"context"
	"errors"
	"testing"

	wasmjournal "github.com/wippyai/wasm-journal"
	jerrors "github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/storage"
	"github.com/wippyai/wasm-journal/thread"
	"github.com/wippyai/wasm-journal/wire"
)

var testLayout = wasmjournal.MemoryLayout{StackUpper: 0x8000, StackLower: 0x7000, StackSize: 0x1000}

// recordingLauncher remembers every request it launched.
type recordingLauncher struct {
	reqs []thread.SpawnRequest
	err  error
}

func (l *recordingLauncher) Launch(_ context.Context, _ *thread.Thread, req thread.SpawnRequest) error {
	if l.err != nil {
		return l.err
	}
	l.reqs = append(l.reqs, req)
	return nil
}

type failingAppender struct {
	err error
}

func (f failingAppender) Append(context.Context, journal.Entry) error {
	return f.err
}

func newLog(t *testing.T) *journal.Log {
	t.Helper()
	log, err := journal.New(storage.NewMemory())
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	return log
}

func newEffector(t *testing.T, log journal.Appender, threads Spawner, opts ...Option) *Effector {
	t.Helper()
	e, err := New(log, threads, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func entries(t *testing.T, log *journal.Log) []journal.Entry {
	t.Helper()
	var out []journal.Entry
	for e, err := range log.Entries(context.Background()) {
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		out = append(out, e)
	}
	return out
}

func TestSaveThreadState(t *testing.T) {
	log := newLog(t)
	e := newEffector(t, log, nil)
	callStack := bytes.Repeat([]byte{0xCA}, 40)

	err := e.SaveThreadState(context.Background(), 4, []byte{1, 2}, callStack, []byte("store"),
		wasmjournal.Spawned(0x1_0000_0000), testLayout, wasmjournal.Width32)
	if err != nil {
		t.Fatalf("SaveThreadState: %v", err)
	}

	got := entries(t, log)
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	st, ok := got[0].(*journal.SetThread)
	if !ok {
		t.Fatalf("entry is %T", got[0])
	}
	if st.ID != 4 || st.Start.EntryPoint != 0x1_0000_0000 || st.Width != wasmjournal.Width32 {
		t.Errorf("snapshot: %+v", st)
	}
	if !bytes.Equal(st.CallStack, callStack) || string(st.StoreData) != "store" || st.Layout != testLayout {
		t.Errorf("buffers not preserved: %+v", st)
	}
}

func TestSaveFailurePropagated(t *testing.T) {
	cause := jerrors.StorageIO("append", errors.New("disk full"))
	e := newEffector(t, failingAppender{err: cause}, nil)

	err := e.SaveThreadState(context.Background(), 1, nil, nil, nil, wasmjournal.MainThread(), testLayout, wasmjournal.Width32)
	if !errors.Is(err, jerrors.ErrStorageIO) {
		t.Errorf("SaveThreadState: got %v, want storage error", err)
	}
	if err := e.SaveThreadExit(context.Background(), 1, 0); !errors.Is(err, cause) {
		t.Errorf("SaveThreadExit: got %v", err)
	}

	noLog := newEffector(t, nil, nil)
	if err := noLog.SaveThreadExit(context.Background(), 1, 0); err == nil {
		t.Error("save without journal succeeded")
	}
}

func TestSaveFrozenLog(t *testing.T) {
	log := newLog(t)
	log.Freeze()
	e := newEffector(t, log, nil)
	if err := e.SaveThreadExit(context.Background(), 1, 0); !errors.Is(err, jerrors.ErrClosed) {
		t.Errorf("got %v, want closed", err)
	}
}

func TestSavePoll(t *testing.T) {
	log := newLog(t)
	e := newEffector(t, log, nil)
	subs := []wire.Subscription{
		{UserData: 1, Event: wire.Clock{ID: wire.ClockMonotonic, Timeout: 500, Precision: 1}},
		{UserData: 2, Event: wire.Read{Fd: 3}},
	}
	events := []wire.Event{wire.EventFor(subs[1])}

	if err := e.SavePoll(context.Background(), 0, subs, []uint32{1}, events); err != nil {
		t.Fatalf("SavePoll: %v", err)
	}
	if err := e.SavePoll(context.Background(), 0, subs, []uint32{1, 0}, events); err == nil {
		t.Error("mismatched ready/events accepted")
	}
	if err := e.SavePoll(context.Background(), 0, subs, []uint32{2}, events); !errors.Is(err, &jerrors.Error{Kind: jerrors.KindOutOfBounds}) {
		t.Errorf("ready index past subscriptions: %v", err)
	}
	if n := log.Len(); n != 1 {
		t.Errorf("log has %d entries, want 1", n)
	}
}

func TestApplyThreadStateMainThread(t *testing.T) {
	launcher := &recordingLauncher{}
	m := thread.NewManager(launcher)
	e := newEffector(t, nil, m)

	h, err := e.ApplyThreadState(context.Background(), 0, []byte{1}, []byte{2}, nil,
		wasmjournal.MainThread(), testLayout, wasmjournal.Width64)
	if !errors.Is(err, jerrors.ErrUnsupportedRestore) {
		t.Fatalf("got %v, want unsupported restore", err)
	}
	if h != 0 || len(launcher.reqs) != 0 || m.Table().Len() != 0 {
		t.Error("main thread snapshot created a thread")
	}
}

func TestApplyThreadStateWidth(t *testing.T) {
	callStack := bytes.Repeat([]byte{0x5A}, 40)
	memStack := []byte{9, 8, 7, 6}
	store := []byte("globals")
	start := wasmjournal.Spawned(0x1_0000_0000)

	t.Run("32-bit overflows", func(t *testing.T) {
		launcher := &recordingLauncher{}
		e := newEffector(t, nil, thread.NewManager(launcher))
		_, err := e.ApplyThreadState(context.Background(), 2, memStack, callStack, store, start, testLayout, wasmjournal.Width32)
		if !errors.Is(err, jerrors.ErrAddressOverflow) {
			t.Fatalf("got %v, want address overflow", err)
		}
		var je *jerrors.Error
		if !errors.As(err, &je) || je.Value != uint64(0x1_0000_0000) {
			t.Errorf("overflow value: %+v", je)
		}
		if len(launcher.reqs) != 0 {
			t.Error("thread spawned despite overflow")
		}
	})

	t.Run("64-bit restores exactly", func(t *testing.T) {
		launcher := &recordingLauncher{}
		m := thread.NewManager(launcher)
		e := newEffector(t, nil, m)
		h, err := e.ApplyThreadState(context.Background(), 2, memStack, callStack, store, start, testLayout, wasmjournal.Width64)
		if err != nil {
			t.Fatalf("ApplyThreadState: %v", err)
		}
		if len(launcher.reqs) != 1 {
			t.Fatalf("launched %d threads", len(launcher.reqs))
		}
		req := launcher.reqs[0]
		if req.EntryPoint != 0x1_0000_0000 || req.Width != wasmjournal.Width64 || req.ID != 2 {
			t.Errorf("request: %+v", req)
		}
		if !bytes.Equal(req.CallStack, callStack) || !bytes.Equal(req.MemoryStack, memStack) || !bytes.Equal(req.StoreData, store) {
			t.Error("initial context differs from the snapshot")
		}
		th, ok := m.Table().Get(h)
		if !ok || th.EntryPoint != 0x1_0000_0000 {
			t.Error("spawned thread missing or wrong entry point")
		}
	})

	t.Run("32-bit in range", func(t *testing.T) {
		launcher := &recordingLauncher{}
		e := newEffector(t, nil, thread.NewManager(launcher))
		if _, err := e.ApplyThreadState(context.Background(), 3, nil, nil, nil, wasmjournal.Spawned(0xFFFF_FFFF), testLayout, wasmjournal.Width32); err != nil {
			t.Fatal(err)
		}
		if launcher.reqs[0].EntryPoint != 0xFFFF_FFFF {
			t.Errorf("entry point %#x", launcher.reqs[0].EntryPoint)
		}
	})

	t.Run("unknown width", func(t *testing.T) {
		e := newEffector(t, nil, thread.NewManager(&recordingLauncher{}))
		_, err := e.ApplyThreadState(context.Background(), 3, nil, nil, nil, wasmjournal.Spawned(1), testLayout, 16)
		if !errors.Is(err, &jerrors.Error{Kind: jerrors.KindInvalidInput}) {
			t.Errorf("got %v", err)
		}
	})
}

type spawnerFunc func(context.Context, thread.SpawnRequest) (thread.Handle, error)

func (f spawnerFunc) SpawnWithContext(ctx context.Context, req thread.SpawnRequest) (thread.Handle, error) {
	return f(ctx, req)
}

func TestApplyThreadStateSpawnError(t *testing.T) {
	cause := errors.New("instance pool exhausted")

	t.Run("manager", func(t *testing.T) {
		m := thread.NewManager(&recordingLauncher{err: cause})
		e := newEffector(t, nil, m)
		_, err := e.ApplyThreadState(context.Background(), 5, nil, nil, nil, wasmjournal.Spawned(0x10), testLayout, wasmjournal.Width32)
		if !errors.Is(err, jerrors.ErrSpawn) || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
		if m.Table().Len() != 0 {
			t.Error("half-created thread left behind")
		}
	})

	t.Run("foreign spawner", func(t *testing.T) {
		e := newEffector(t, nil, spawnerFunc(func(context.Context, thread.SpawnRequest) (thread.Handle, error) {
			return 0, cause
		}))
		_, err := e.ApplyThreadState(context.Background(), 5, nil, nil, nil, wasmjournal.Spawned(0x10), testLayout, wasmjournal.Width32)
		if !errors.Is(err, jerrors.ErrSpawn) || !errors.Is(err, cause) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("no spawner", func(t *testing.T) {
		e := newEffector(t, nil, nil)
		_, err := e.ApplyThreadState(context.Background(), 5, nil, nil, nil, wasmjournal.Spawned(0x10), testLayout, wasmjournal.Width32)
		if !errors.Is(err, jerrors.ErrSpawn) {
			t.Errorf("got %v", err)
		}
	})
}
