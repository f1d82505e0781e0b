package journal

import (
	"hash"

	"golang.org/x/crypto/blake2b"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal/internal/binary"
	"github.com/wippyai/wasm-journal/wire"
)

// MaxPollSubscriptions bounds the subscriptions of a decoded poll entry.
const MaxPollSubscriptions = wire.MaxSubscriptions

const (
	startMain  byte = 0
	startSpawn byte = 1
)

func newDigest() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for oversized keys
		panic(err)
	}
	return h
}

// MarshalEntry encodes e as a single record.
func MarshalEntry(e Entry) ([]byte, error) {
	w := binary.NewWriter()
	switch v := e.(type) {
	case *SetThread:
		if err := marshalSetThread(w, v); err != nil {
			return nil, err
		}
	case *CloseThread:
		w.WriteU16LE(uint16(EntryTypeCloseThread))
		w.WriteU32(uint32(v.ID))
		w.WriteU32(v.ExitCode)
	case *PollOneoff:
		if err := marshalPoll(w, v); err != nil {
			return nil, err
		}
	default:
		return nil, errors.InvalidInput(errors.PhaseEncode, "unknown entry type")
	}
	return w.Bytes(), nil
}

func marshalSetThread(w *binary.Writer, e *SetThread) error {
	if !e.Width.Valid() {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Path("set_thread", "width").
			Value(uint8(e.Width)).
			Detail("address width must be 32 or 64").
			Build()
	}
	w.WriteU16LE(uint16(EntryTypeSetThread))
	w.WriteU32(uint32(e.ID))
	w.WriteBuffer(e.CallStack)
	w.WriteBuffer(e.MemoryStack)
	w.WriteBuffer(e.StoreData)
	switch e.Start.Kind {
	case wasmjournal.StartMainThread:
		w.Byte(startMain)
	case wasmjournal.StartSpawned:
		w.Byte(startSpawn)
		w.WriteU64(e.Start.EntryPoint)
	default:
		return errors.InvalidDiscriminant(errors.PhaseEncode, []string{"set_thread", "start"}, uint32(e.Start.Kind), uint32(startSpawn))
	}
	w.WriteU64(e.Layout.StackUpper)
	w.WriteU64(e.Layout.StackLower)
	w.WriteU64(e.Layout.GuardSize)
	w.WriteU64(e.Layout.StackSize)
	w.Byte(byte(e.Width))
	return nil
}

func marshalPoll(w *binary.Writer, e *PollOneoff) error {
	if len(e.Ready) != len(e.Events) {
		return errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Path("poll_oneoff", "events").
			Detail("%d ready indexes but %d events", len(e.Ready), len(e.Events)).
			Build()
	}
	raws, err := wire.EncodeAll(e.Subscriptions)
	if err != nil {
		return err
	}
	w.WriteU16LE(uint16(EntryTypePollOneoff))
	w.WriteU32(uint32(e.Thread))
	w.WriteU32(uint32(len(raws)))
	for i := range raws {
		w.WriteBytes(raws[i][:])
	}
	w.WriteU32(uint32(len(e.Ready)))
	for i, idx := range e.Ready {
		if int(idx) >= len(raws) {
			return errors.OutOfBounds(errors.PhaseEncode, []string{"poll_oneoff", "ready"}, int(idx), len(raws))
		}
		w.WriteU32(idx)
		ev := e.Events[i].Encode()
		w.WriteBytes(ev[:])
	}
	return nil
}

// UnmarshalEntry decodes a record produced by MarshalEntry. Unknown entry
// types, truncated bodies and trailing bytes fail with an invalid_data
// error.
func UnmarshalEntry(data []byte) (Entry, error) {
	r := binary.NewReader(data)
	tag, err := r.ReadU16LE()
	if err != nil {
		return nil, decodeErr("type", err)
	}

	var e Entry
	switch EntryType(tag) {
	case EntryTypeSetThread:
		e, err = unmarshalSetThread(r)
	case EntryTypeCloseThread:
		e, err = unmarshalCloseThread(r)
	case EntryTypePollOneoff:
		e, err = unmarshalPoll(r)
	default:
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Path("entry", "type").
			Value(tag).
			Detail("unknown entry type %d", tag).
			Build()
	}
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{EntryType(tag).String()},
			"trailing bytes after entry")
	}
	return e, nil
}

func decodeErr(field string, cause error) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidData).
		Path("entry", field).
		Cause(cause).
		Build()
}

func unmarshalSetThread(r *binary.Reader) (*SetThread, error) {
	e := &SetThread{}
	id, err := r.ReadU32()
	if err != nil {
		return nil, decodeErr("id", err)
	}
	e.ID = wasmjournal.ThreadID(id)
	if e.CallStack, err = r.ReadBuffer(); err != nil {
		return nil, decodeErr("call_stack", err)
	}
	if e.MemoryStack, err = r.ReadBuffer(); err != nil {
		return nil, decodeErr("memory_stack", err)
	}
	if e.StoreData, err = r.ReadBuffer(); err != nil {
		return nil, decodeErr("store_data", err)
	}

	kind, err := r.ReadByte()
	if err != nil {
		return nil, decodeErr("start", err)
	}
	switch kind {
	case startMain:
		e.Start = wasmjournal.MainThread()
	case startSpawn:
		ep, err := r.ReadU64()
		if err != nil {
			return nil, decodeErr("entry_point", err)
		}
		e.Start = wasmjournal.Spawned(ep)
	default:
		return nil, errors.InvalidDiscriminant(errors.PhaseDecode, []string{"set_thread", "start"}, uint32(kind), uint32(startSpawn))
	}

	fields := []*uint64{&e.Layout.StackUpper, &e.Layout.StackLower, &e.Layout.GuardSize, &e.Layout.StackSize}
	for _, f := range fields {
		if *f, err = r.ReadU64(); err != nil {
			return nil, decodeErr("layout", err)
		}
	}

	width, err := r.ReadByte()
	if err != nil {
		return nil, decodeErr("width", err)
	}
	e.Width = wasmjournal.AddressWidth(width)
	if !e.Width.Valid() {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"set_thread", "width"}, "address width must be 32 or 64")
	}
	return e, nil
}

func unmarshalCloseThread(r *binary.Reader) (*CloseThread, error) {
	id, err := r.ReadU32()
	if err != nil {
		return nil, decodeErr("id", err)
	}
	code, err := r.ReadU32()
	if err != nil {
		return nil, decodeErr("exit_code", err)
	}
	return &CloseThread{ID: wasmjournal.ThreadID(id), ExitCode: code}, nil
}

func unmarshalPoll(r *binary.Reader) (*PollOneoff, error) {
	thread, err := r.ReadU32()
	if err != nil {
		return nil, decodeErr("thread", err)
	}
	n, err := r.ReadU32()
	if err != nil {
		return nil, decodeErr("subscriptions", err)
	}
	if n > MaxPollSubscriptions {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"poll_oneoff", "subscriptions"}, "too many subscriptions")
	}

	e := &PollOneoff{Thread: wasmjournal.ThreadID(thread)}
	raws := make([]wire.RawSubscription, n)
	for i := range raws {
		b, err := r.ReadBytes(wire.SubscriptionSize)
		if err != nil {
			return nil, decodeErr("subscriptions", err)
		}
		copy(raws[i][:], b)
	}
	if e.Subscriptions, err = wire.DecodeAll(raws); err != nil {
		return nil, err
	}

	ready, err := r.ReadU32()
	if err != nil {
		return nil, decodeErr("ready", err)
	}
	if ready > n {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"poll_oneoff", "ready"}, "more ready events than subscriptions")
	}
	e.Ready = make([]uint32, ready)
	e.Events = make([]wire.Event, ready)
	for i := range e.Ready {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, decodeErr("ready", err)
		}
		if idx >= n {
			return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"poll_oneoff", "ready"}, int(idx), int(n))
		}
		e.Ready[i] = idx

		b, err := r.ReadBytes(wire.EventSize)
		if err != nil {
			return nil, decodeErr("events", err)
		}
		var raw wire.RawEvent
		copy(raw[:], b)
		if e.Events[i], err = wire.DecodeEvent(raw); err != nil {
			return nil, err
		}
	}
	return e, nil
}
