package thread

import (
	"context"
	"errors"
	"testing"

	jerrors "github.com/wippyai/wasm-journal/errors"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnThreadEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTableReserveRelease(t *testing.T) {
	table := NewTable()
	th := newThread(context.Background(), SpawnRequest{ID: 5})

	h, err := table.Reserve(5, th)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if h == 0 {
		t.Fatal("expected non-zero handle")
	}
	if got, ok := table.Get(h); !ok || got != th {
		t.Fatal("Get failed")
	}
	if lh, lt, ok := table.Lookup(5); !ok || lh != h || lt != th {
		t.Fatal("Lookup failed")
	}

	if _, err := table.Reserve(5, th); err == nil {
		t.Error("duplicate id accepted")
	}

	if got, ok := table.Release(h); !ok || got != th {
		t.Fatal("Release failed")
	}
	if table.Len() != 0 {
		t.Errorf("Len after release: %d", table.Len())
	}
	if _, ok := table.Get(h); ok {
		t.Error("Get succeeded after release")
	}
	if _, ok := table.Release(h); ok {
		t.Error("double release succeeded")
	}
	if _, ok := table.Get(0); ok {
		t.Error("handle 0 must be invalid")
	}
}

func TestTableHandleReuse(t *testing.T) {
	table := NewTable()
	h1, _ := table.Reserve(1, nil)
	h2, _ := table.Reserve(2, nil)
	table.Release(h1)

	h3, err := table.Reserve(3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if h3 != h1 {
		t.Errorf("freed handle not reused: got %d, want %d", h3, h1)
	}
	if h3 == h2 {
		t.Error("live handle reused")
	}

	n := 0
	table.Each(func(Handle, *Thread) bool {
		n++
		return true
	})
	if n != 2 {
		t.Errorf("Each visited %d threads, want 2", n)
	}
}

func TestTableObservers(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h, _ := table.Reserve(1, nil)
	table.Release(h)

	if len(obs.events) != 2 {
		t.Fatalf("got %d events, want 2", len(obs.events))
	}
	if obs.events[0].Type != EventReserved || obs.events[1].Type != EventReleased {
		t.Errorf("events: %+v", obs.events)
	}

	table.Unsubscribe(obs)
	table.Reserve(2, nil)
	if len(obs.events) != 2 {
		t.Error("unsubscribed observer still notified")
	}
}

func TestTableClosed(t *testing.T) {
	table := NewTable()
	_ = table.Close()
	if _, err := table.Reserve(1, nil); !errors.Is(err, jerrors.ErrClosed) {
		t.Errorf("got %v, want closed", err)
	}
}
