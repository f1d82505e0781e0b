package thread

import (
	"context"
	"errors"
	"testing"

	wasmjournal "github.com/wippyai/wasm-journal"
	jerrors "github.com/wippyai/wasm-journal/errors"
)

type ctxKey struct{}

func TestManagerSpawn(t *testing.T) {
	var launched *Thread
	m := NewManager(LauncherFunc(func(ctx context.Context, th *Thread, req SpawnRequest) error {
		if th.State() != StateReserved {
			t.Errorf("state during launch: %s", th.State())
		}
		if ctx.Value(ctxKey{}) != "v" {
			t.Error("thread context lost parent values")
		}
		launched = th
		return nil
	}))

	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	h, err := m.SpawnWithContext(parent, SpawnRequest{ID: 3, EntryPoint: 0x40})
	if err != nil {
		t.Fatalf("SpawnWithContext: %v", err)
	}
	cancel()

	th, ok := m.Table().Get(h)
	if !ok || th != launched {
		t.Fatal("spawned thread not in table")
	}
	if th.State() != StateRunning || th.EntryPoint != 0x40 {
		t.Errorf("thread: state %s entry %#x", th.State(), th.EntryPoint)
	}
	if th.Context().Err() != nil {
		t.Error("canceling the spawn context canceled the thread")
	}

	if err := m.Terminate(3, 7); err != nil {
		t.Fatal(err)
	}
	select {
	case <-th.Done():
	default:
		t.Fatal("Done not closed after Terminate")
	}
	if th.ExitCode() != 7 || th.Context().Err() == nil {
		t.Errorf("exit code %d, ctx err %v", th.ExitCode(), th.Context().Err())
	}
	if m.Table().Len() != 0 {
		t.Error("terminated thread still in table")
	}
	if err := m.Terminate(3, 0); !errors.Is(err, &jerrors.Error{Kind: jerrors.KindNotFound}) {
		t.Errorf("second terminate: %v", err)
	}
}

func TestManagerLaunchFailureRollsBack(t *testing.T) {
	cause := errors.New("no free instance")
	obs := &testObserver{}
	m := NewManager(LauncherFunc(func(context.Context, *Thread, SpawnRequest) error {
		return cause
	}))
	m.Table().Subscribe(obs)

	h, err := m.SpawnWithContext(context.Background(), SpawnRequest{ID: 9})
	if h != 0 {
		t.Errorf("handle returned on failure: %d", h)
	}
	if !errors.Is(err, jerrors.ErrSpawn) {
		t.Errorf("got %v, want spawn error", err)
	}
	if !errors.Is(err, cause) {
		t.Error("launcher cause not preserved")
	}
	if m.Table().Len() != 0 {
		t.Error("failed spawn left a reservation")
	}
	if _, _, ok := m.Table().Lookup(9); ok {
		t.Error("failed thread id still registered")
	}
	if len(obs.events) != 2 || obs.events[1].Type != EventReleased {
		t.Errorf("events: %+v", obs.events)
	}

	// The id is free again.
	m.launcher = LauncherFunc(func(context.Context, *Thread, SpawnRequest) error { return nil })
	if _, err := m.SpawnWithContext(context.Background(), SpawnRequest{ID: 9}); err != nil {
		t.Errorf("respawn after failure: %v", err)
	}
}

func TestManagerSpawnCanceled(t *testing.T) {
	called := false
	m := NewManager(LauncherFunc(func(context.Context, *Thread, SpawnRequest) error {
		called = true
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.SpawnWithContext(ctx, SpawnRequest{ID: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
	if called || m.Table().Len() != 0 {
		t.Error("canceled spawn created a thread")
	}
}

func TestManagerDuplicateID(t *testing.T) {
	m := NewManager(LauncherFunc(func(context.Context, *Thread, SpawnRequest) error { return nil }))
	if _, err := m.SpawnWithContext(context.Background(), SpawnRequest{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SpawnWithContext(context.Background(), SpawnRequest{ID: 1}); !errors.Is(err, jerrors.ErrSpawn) {
		t.Errorf("duplicate spawn: %v", err)
	}
	if m.Table().Len() != 1 {
		t.Errorf("Len: %d", m.Table().Len())
	}
}

func TestManagerClose(t *testing.T) {
	m := NewManager(LauncherFunc(func(context.Context, *Thread, SpawnRequest) error { return nil }))
	for id := uint32(1); id <= 3; id++ {
		if _, err := m.SpawnWithContext(context.Background(), SpawnRequest{ID: wasmjournal.ThreadID(id)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Table().Len() != 0 {
		t.Error("threads left after Close")
	}
	if _, err := m.SpawnWithContext(context.Background(), SpawnRequest{ID: 4}); err == nil {
		t.Error("spawn after Close succeeded")
	}
}
