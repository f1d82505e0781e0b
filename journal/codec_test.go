package journal

import (
	"bytes"
	"errors"
	"testing"

	wasmjournal "github.com/wippyai/wasm-journal"
	jerrors "github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/wire"
)

func sampleSetThread() *SetThread {
	return &SetThread{
		ID:          7,
		CallStack:   bytes.Repeat([]byte{0xAB}, 40),
		MemoryStack: []byte{1, 2, 3, 4},
		StoreData:   []byte("store"),
		Start:       wasmjournal.Spawned(0x1_0000_0000),
		Layout: wasmjournal.MemoryLayout{
			StackUpper: 0x20000,
			StackLower: 0x10000,
			GuardSize:  4096,
			StackSize:  0x10000,
		},
		Width: wasmjournal.Width64,
	}
}

func samplePoll() *PollOneoff {
	return &PollOneoff{
		Thread: 3,
		Subscriptions: []wire.Subscription{
			{UserData: 1, Event: wire.Clock{ID: wire.ClockMonotonic, Timeout: 500, Precision: 1}},
			{UserData: 2, Event: wire.Read{Fd: 4}},
		},
		Ready: []uint32{1},
		Events: []wire.Event{
			{UserData: 2, Type: wire.EventTypeFdRead, FdReadwrite: wire.EventFdReadwrite{NBytes: 17}},
		},
	}
}

func equalSetThread(a, b *SetThread) bool {
	return a.ID == b.ID &&
		bytes.Equal(a.CallStack, b.CallStack) &&
		bytes.Equal(a.MemoryStack, b.MemoryStack) &&
		bytes.Equal(a.StoreData, b.StoreData) &&
		a.Start == b.Start &&
		a.Layout == b.Layout &&
		a.Width == b.Width
}

func TestSetThreadRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		entry *SetThread
	}{
		{"spawned wasm64", sampleSetThread()},
		{"main wasm32", &SetThread{ID: 0, Start: wasmjournal.MainThread(), Width: wasmjournal.Width32}},
		{"empty buffers", &SetThread{ID: 1, CallStack: []byte{}, Start: wasmjournal.Spawned(0), Width: wasmjournal.Width32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalEntry(tt.entry)
			if err != nil {
				t.Fatalf("MarshalEntry: %v", err)
			}
			got, err := UnmarshalEntry(data)
			if err != nil {
				t.Fatalf("UnmarshalEntry: %v", err)
			}
			st, ok := got.(*SetThread)
			if !ok {
				t.Fatalf("got %T, want *SetThread", got)
			}
			if !equalSetThread(st, tt.entry) {
				t.Errorf("round trip: got %+v, want %+v", st, tt.entry)
			}
		})
	}
}

func TestEntryPointStoredWide(t *testing.T) {
	e := sampleSetThread()
	e.Width = wasmjournal.Width32

	data, err := MarshalEntry(e)
	if err != nil {
		t.Fatalf("MarshalEntry: %v", err)
	}
	got, err := UnmarshalEntry(data)
	if err != nil {
		t.Fatalf("UnmarshalEntry: %v", err)
	}
	if got.(*SetThread).Start.EntryPoint != 0x1_0000_0000 {
		t.Errorf("entry point truncated: %#x", got.(*SetThread).Start.EntryPoint)
	}
}

func TestCloseThreadRoundTrip(t *testing.T) {
	data, err := MarshalEntry(&CloseThread{ID: 12, ExitCode: 3})
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalEntry(data)
	if err != nil {
		t.Fatal(err)
	}
	if ct := got.(*CloseThread); ct.ID != 12 || ct.ExitCode != 3 {
		t.Errorf("got %+v", ct)
	}
}

func TestPollOneoffRoundTrip(t *testing.T) {
	want := samplePoll()
	data, err := MarshalEntry(want)
	if err != nil {
		t.Fatalf("MarshalEntry: %v", err)
	}
	got, err := UnmarshalEntry(data)
	if err != nil {
		t.Fatalf("UnmarshalEntry: %v", err)
	}
	p := got.(*PollOneoff)
	if p.Thread != want.Thread || len(p.Subscriptions) != 2 || len(p.Ready) != 1 {
		t.Fatalf("got %+v", p)
	}
	for i := range want.Subscriptions {
		if p.Subscriptions[i] != want.Subscriptions[i] {
			t.Errorf("subscription %d: got %+v", i, p.Subscriptions[i])
		}
	}
	if p.Ready[0] != 1 || p.Events[0] != want.Events[0] {
		t.Errorf("events: got %v %+v", p.Ready, p.Events)
	}

	d1, _ := want.Digest()
	d2, _ := p.Digest()
	if d1 != d2 {
		t.Error("digest changed across round trip")
	}
}

func TestPollDigestMatchesRaw(t *testing.T) {
	p := samplePoll()
	raws, err := wire.EncodeAll(p.Subscriptions)
	if err != nil {
		t.Fatal(err)
	}
	// Padding garbage from the guest must not change the digest.
	raws[0][12] = 0xEE
	raws[1][40] = 0xEE

	d, err := p.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if d != DigestRaw(raws) {
		t.Error("digest of dirty raw records differs")
	}

	raws[1][16] = 9
	if d == DigestRaw(raws) {
		t.Error("digest ignores a field change")
	}
}

func TestMarshalRejects(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
	}{
		{"bad width", &SetThread{Start: wasmjournal.MainThread(), Width: 16}},
		{"bad start kind", &SetThread{Start: wasmjournal.StartType{Kind: 9}, Width: wasmjournal.Width32}},
		{"ready/events mismatch", &PollOneoff{Subscriptions: samplePoll().Subscriptions, Ready: []uint32{0}}},
		{"ready out of range", &PollOneoff{
			Subscriptions: samplePoll().Subscriptions,
			Ready:         []uint32{5},
			Events:        []wire.Event{{}},
		}},
		{"nil event kind", &PollOneoff{Subscriptions: []wire.Subscription{{UserData: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MarshalEntry(tt.entry); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUnmarshalRejects(t *testing.T) {
	valid, err := MarshalEntry(sampleSetThread())
	if err != nil {
		t.Fatal(err)
	}
	poll, err := MarshalEntry(samplePoll())
	if err != nil {
		t.Fatal(err)
	}
	badTag := bytes.Clone(poll)
	// type (2) + thread (1) + count (1) + tag offset inside the first record
	badTag[2+1+1+8] = 7

	tests := []struct {
		name string
		data []byte
		kind *jerrors.Error
	}{
		{"empty", nil, &jerrors.Error{Kind: jerrors.KindInvalidData}},
		{"unknown type", []byte{0x09, 0x00}, &jerrors.Error{Kind: jerrors.KindInvalidData}},
		{"truncated", valid[:len(valid)-3], &jerrors.Error{Kind: jerrors.KindInvalidData}},
		{"trailing bytes", append(bytes.Clone(valid), 0), &jerrors.Error{Kind: jerrors.KindInvalidData}},
		{"invalid subscription tag", badTag, jerrors.ErrInvalidDiscriminant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEntry(tt.data)
			if !errors.Is(err, tt.kind) {
				t.Errorf("got %v, want kind %s", err, tt.kind.Kind)
			}
		})
	}
}
