package wire

import (
	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
)

// MaxSubscriptions bounds a single batch read from guest memory.
const MaxSubscriptions = 1 << 16

// ReadSubscriptions copies n subscription records starting at ptr. The
// records are returned as found; callers normalize before hashing or
// recording them.
func ReadSubscriptions(mem wasmjournal.Memory, ptr, n uint32) ([]RawSubscription, error) {
	if n > MaxSubscriptions {
		return nil, errors.InvalidInput(errors.PhaseDecode, "too many subscriptions")
	}
	total := uint64(n) * SubscriptionSize
	if uint64(ptr)+total > 1<<32 {
		return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"subscriptions"}, int(ptr), int(total))
	}
	data, err := mem.Read(ptr, uint32(total))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read subscriptions")
	}
	out := make([]RawSubscription, n)
	for i := range out {
		copy(out[i][:], data[i*SubscriptionSize:])
	}
	return out, nil
}

// WriteEvents writes events contiguously starting at ptr.
func WriteEvents(mem wasmjournal.Memory, ptr uint32, events []RawEvent) error {
	if len(events) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(events)*EventSize)
	for i := range events {
		buf = append(buf, events[i][:]...)
	}
	if err := mem.Write(ptr, buf); err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "write events")
	}
	return nil
}
