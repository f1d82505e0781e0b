package host

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-journal/engine"
	"github.com/wippyai/wasm-journal/engine/enginetest"
	"github.com/wippyai/wasm-journal/wire"
)

func newGuest(t *testing.T, h *PollHost, pages uint32) (wazero.Runtime, api.Module) {
	t.Helper()
	ctx := context.Background()
	rt, err := engine.NewRuntime(ctx, engine.Config{Compiler: engine.CompilerInterpreter})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rt.Close(ctx) })

	host, err := Instantiate(ctx, rt, "", h)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if host.Name() != ModuleName {
		t.Errorf("module name %q", host.Name())
	}
	guest, err := rt.Instantiate(ctx, enginetest.Forwarder(pages, ModuleName, "poll_oneoff", 4))
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	return rt, guest
}

func TestInstantiatePollOneoff(t *testing.T) {
	log, eff := newRecording(t)
	clock := &fakeClock{t: t}
	_, guest := newGuest(t, New(eff, WithClock(clock)), 1)

	mem := engine.NewMemory(guest.Memory())
	n := writeSubs(t, mem, clockWait)

	ctx := context.Background()
	res, err := guest.ExportedFunction("poll_oneoff").Call(ctx, inPtr, outPtr, uint64(n), neventsPtr)
	if err != nil {
		t.Fatal(err)
	}
	if errno := wire.Errno(res[0]); errno != wire.ErrnoSuccess {
		t.Fatalf("errno %d", errno)
	}
	events := readEvents(t, mem)
	if len(events) != 1 || events[0].UserData != 1 || events[0].Type != wire.EventTypeClock {
		t.Errorf("events: %+v", events)
	}
	if clock.slept != 500 {
		t.Errorf("slept %v, want 500ns", clock.slept)
	}
	if log.Len() != 1 {
		t.Errorf("recorded %d entries", log.Len())
	}
}

func TestInstantiateInvalidRequest(t *testing.T) {
	_, guest := newGuest(t, New(nil, WithClock(&fakeClock{t: t, noSleep: true})), 1)
	res, err := guest.ExportedFunction("poll_oneoff").Call(context.Background(), inPtr, outPtr, 0, neventsPtr)
	if err != nil {
		t.Fatal(err)
	}
	if wire.Errno(res[0]) != wire.ErrnoInval {
		t.Errorf("errno %d, want EINVAL", res[0])
	}
}

func TestInstantiateGuestWithoutMemory(t *testing.T) {
	_, guest := newGuest(t, New(nil, WithClock(&fakeClock{t: t, noSleep: true})), 0)
	res, err := guest.ExportedFunction("poll_oneoff").Call(context.Background(), inPtr, outPtr, 1, neventsPtr)
	if err != nil {
		t.Fatal(err)
	}
	if wire.Errno(res[0]) != wire.ErrnoFault {
		t.Errorf("errno %d, want EFAULT", res[0])
	}
}
