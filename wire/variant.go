package wire

import (
	"strconv"

	"github.com/wippyai/wasm-journal/errors"
)

// EventKind is the tagged view of a subscription's tag and payload.
// It is implemented by Clock, Read and Write only.
type EventKind interface {
	// Type returns the discriminant this kind encodes to.
	Type() EventType
	isEventKind()
}

// Clock waits for a clock to reach a deadline.
type Clock SubscriptionClock

// Read waits for a descriptor to become readable.
type Read SubscriptionFdReadwrite

// Write waits for a descriptor to become writable.
type Write SubscriptionFdReadwrite

func (Clock) Type() EventType { return EventTypeClock }
func (Read) Type() EventType  { return EventTypeFdRead }
func (Write) Type() EventType { return EventTypeFdWrite }

func (Clock) isEventKind() {}
func (Read) isEventKind()  {}
func (Write) isEventKind() {}

// Subscription is the tagged view of a RawSubscription.
type Subscription struct {
	Event    EventKind
	UserData Userdata
}

// Encode builds the wire record for s. Every byte not covered by userdata,
// the tag or the active payload fields is zero. The only failure is a nil
// Event.
func Encode(s Subscription) (RawSubscription, error) {
	var r RawSubscription
	le.PutUint64(r[offSubUserdata:], uint64(s.UserData))

	switch ev := s.Event.(type) {
	case Clock:
		r[offSubTag] = byte(EventTypeClock)
		r.putClock(SubscriptionClock(ev))
	case Read:
		r[offSubTag] = byte(EventTypeFdRead)
		r.putFdReadwrite(SubscriptionFdReadwrite(ev))
	case Write:
		r[offSubTag] = byte(EventTypeFdWrite)
		r.putFdReadwrite(SubscriptionFdReadwrite(ev))
	default:
		return RawSubscription{}, errors.New(errors.PhaseEncode, errors.KindInvalidDiscriminant).
			Path("subscription", "event").
			Detail("no event kind").
			Build()
	}
	return r, nil
}

// Decode returns the tagged view of r. The tag is validated before any
// payload byte is read; tags outside {clock, fd_read, fd_write} fail with
// errors.ErrInvalidDiscriminant.
func Decode(r RawSubscription) (Subscription, error) {
	tag := r.Tag()
	s := Subscription{UserData: r.UserData()}

	switch tag {
	case EventTypeClock:
		s.Event = Clock(r.clock())
	case EventTypeFdRead:
		s.Event = Read(r.fdReadwrite())
	case EventTypeFdWrite:
		s.Event = Write(r.fdReadwrite())
	default:
		return Subscription{}, invalidTag(tag)
	}
	return s, nil
}

// DecodeAll decodes a batch, stopping at the first invalid record. The
// failing index is reported in the error path.
func DecodeAll(raws []RawSubscription) ([]Subscription, error) {
	out := make([]Subscription, len(raws))
	for i := range raws {
		s, err := Decode(raws[i])
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidDiscriminant).
				Path("subscriptions", strconv.Itoa(i)).
				Value(i).
				Cause(err).
				Build()
		}
		out[i] = s
	}
	return out, nil
}

// EncodeAll encodes a batch.
func EncodeAll(subs []Subscription) ([]RawSubscription, error) {
	out := make([]RawSubscription, len(subs))
	for i, s := range subs {
		r, err := Encode(s)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
