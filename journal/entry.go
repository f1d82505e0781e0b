package journal

import (
	"fmt"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/wire"
)

// EntryType is the on-disk discriminant of an entry.
type EntryType uint16

const (
	EntryTypeSetThread   EntryType = 1
	EntryTypeCloseThread EntryType = 2
	EntryTypePollOneoff  EntryType = 3
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeSetThread:
		return "set_thread"
	case EntryTypeCloseThread:
		return "close_thread"
	case EntryTypePollOneoff:
		return "poll_oneoff"
	default:
		return fmt.Sprintf("entry(%d)", uint16(t))
	}
}

// Entry is a journal entry. It is implemented by SetThread, CloseThread
// and PollOneoff only.
type Entry interface {
	Type() EntryType
	isEntry()
}

// SetThread is a thread snapshot. The buffers are opaque to the journal
// and are owned by the entry once appended.
type SetThread struct {
	CallStack   []byte
	MemoryStack []byte
	StoreData   []byte
	Start       wasmjournal.StartType
	Layout      wasmjournal.MemoryLayout
	ID          wasmjournal.ThreadID
	Width       wasmjournal.AddressWidth
}

// CloseThread records a thread exit.
type CloseThread struct {
	ID       wasmjournal.ThreadID
	ExitCode uint32
}

// PollOneoff records one poll: the subscriptions the guest passed, the
// indexes of those that fired, and the events returned for them. Ready
// and Events have the same length.
type PollOneoff struct {
	Subscriptions []wire.Subscription
	Ready         []uint32
	Events        []wire.Event
	Thread        wasmjournal.ThreadID
}

func (*SetThread) Type() EntryType   { return EntryTypeSetThread }
func (*CloseThread) Type() EntryType { return EntryTypeCloseThread }
func (*PollOneoff) Type() EntryType  { return EntryTypePollOneoff }

func (*SetThread) isEntry()   {}
func (*CloseThread) isEntry() {}
func (*PollOneoff) isEntry()  {}

// Digest hashes the normalized subscriptions of the poll in order. Replay
// compares it with the digest of the guest's live request.
func (p *PollOneoff) Digest() ([32]byte, error) {
	raws, err := wire.EncodeAll(p.Subscriptions)
	if err != nil {
		return [32]byte{}, err
	}
	return DigestRaw(raws), nil
}

// DigestRaw hashes a batch of raw subscriptions after normalizing each.
func DigestRaw(raws []wire.RawSubscription) [32]byte {
	h := newDigest()
	for i := range raws {
		d := raws[i].Digest()
		h.Write(d[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
