package wire

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/wire/internal/layout"
)

var le = binary.LittleEndian

// RawSubscription is a subscription record exactly as it sits in guest
// memory.
type RawSubscription [SubscriptionSize]byte

// UserData returns the userdata field.
func (r *RawSubscription) UserData() Userdata {
	return Userdata(le.Uint64(r[offSubUserdata:]))
}

// Tag returns the raw discriminant. It may be outside the known set.
func (r *RawSubscription) Tag() EventType {
	return EventType(r[offSubTag])
}

// clock interprets the payload as a clock subscription. Callers check the
// tag first.
func (r *RawSubscription) clock() SubscriptionClock {
	return SubscriptionClock{
		ID:        ClockID(le.Uint32(r[offClockID:])),
		Timeout:   Timestamp(le.Uint64(r[offClockTimeout:])),
		Precision: Timestamp(le.Uint64(r[offClockPrec:])),
		Flags:     SubclockFlags(le.Uint16(r[offClockFlags:])),
	}
}

// fdReadwrite interprets the payload as an fd subscription. Callers check
// the tag first.
func (r *RawSubscription) fdReadwrite() SubscriptionFdReadwrite {
	return SubscriptionFdReadwrite{Fd: Fd(le.Uint32(r[offFd:]))}
}

func (r *RawSubscription) putClock(c SubscriptionClock) {
	le.PutUint32(r[offClockID:], uint32(c.ID))
	le.PutUint64(r[offClockTimeout:], uint64(c.Timeout))
	le.PutUint64(r[offClockPrec:], uint64(c.Precision))
	le.PutUint16(r[offClockFlags:], uint16(c.Flags))
}

func (r *RawSubscription) putFdReadwrite(f SubscriptionFdReadwrite) {
	le.PutUint32(r[offFd:], uint32(f.Fd))
}

// ZeroPadding returns a copy of r with every byte outside userdata, the
// tag and the active payload fields set to zero. For an invalid tag the
// whole union region is zeroed and the tag is kept, so Decode still
// rejects the result.
func (r RawSubscription) ZeroPadding() RawSubscription {
	layout.Normalize(subscriptionLayout, r[:])
	return r
}

// IsCanonical reports whether r is already normalized.
func (r *RawSubscription) IsCanonical() bool {
	return *r == r.ZeroPadding()
}

// Digest returns the BLAKE2b-256 hash of the normalized record.
func (r RawSubscription) Digest() [32]byte {
	n := r.ZeroPadding()
	return blake2b.Sum256(n[:])
}

// TaggedPayload is the kind-agnostic payload view returned by Tagged:
// either a SubscriptionClock or a SubscriptionFdReadwrite.
type TaggedPayload interface {
	isTaggedPayload()
}

func (SubscriptionClock) isTaggedPayload()       {}
func (SubscriptionFdReadwrite) isTaggedPayload() {}

// Tagged returns the active payload without the read/write distinction.
// ok is false for an invalid tag.
func (r *RawSubscription) Tagged() (payload TaggedPayload, ok bool) {
	switch r.Tag() {
	case EventTypeClock:
		return r.clock(), true
	case EventTypeFdRead, EventTypeFdWrite:
		return r.fdReadwrite(), true
	default:
		return nil, false
	}
}

// String renders the record, interpreting only the active member.
func (r RawSubscription) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "subscription{userdata: %d, type: %s", r.UserData(), r.Tag())
	payload, _ := r.Tagged()
	switch p := payload.(type) {
	case SubscriptionClock:
		fmt.Fprintf(&b, ", u: {clock_id: %s, timeout: %d, precision: %d, flags: %d}",
			p.ID, p.Timeout, p.Precision, p.Flags)
	case SubscriptionFdReadwrite:
		fmt.Fprintf(&b, ", u: {fd: %d}", p.Fd)
	}
	b.WriteByte('}')
	return b.String()
}

// SubscriptionPadding returns the byte ranges of r that normalization
// zeroes for its current tag.
func SubscriptionPadding(r *RawSubscription) []FieldRange {
	gaps, _ := layout.Padding(subscriptionLayout, r[:])
	out := make([]FieldRange, len(gaps))
	for i, g := range gaps {
		out[i] = FieldRange{Name: "padding", Start: g.Start, End: g.End}
	}
	return out
}

func invalidTag(tag EventType) error {
	return errors.New(errors.PhaseDecode, errors.KindInvalidDiscriminant).
		Path("subscription", "tag").
		Type("eventtype").
		Value(uint8(tag)).
		Detail("discriminant %d out of range (max %d)", uint8(tag), uint8(EventTypeFdWrite)).
		Build()
}
