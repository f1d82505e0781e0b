package wire

import (
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/wire/internal/layout"
)

// RawEvent is an event record exactly as written to guest memory.
type RawEvent [EventSize]byte

// Event reports that a subscription fired.
type Event struct {
	FdReadwrite EventFdReadwrite
	UserData    Userdata
	Error       Errno
	Type        EventType
}

// EventFor returns a successful event answering sub.
func EventFor(sub Subscription) Event {
	return Event{UserData: sub.UserData, Type: sub.Event.Type()}
}

// Encode builds the wire record for e with all padding zero.
func (e Event) Encode() RawEvent {
	var r RawEvent
	le.PutUint64(r[offEvUserdata:], uint64(e.UserData))
	le.PutUint16(r[offEvError:], uint16(e.Error))
	r[offEvType] = byte(e.Type)
	le.PutUint64(r[offEvNBytes:], e.FdReadwrite.NBytes)
	le.PutUint16(r[offEvFlags:], uint16(e.FdReadwrite.Flags))
	return r
}

// DecodeEvent returns the value view of r. An event type outside the known
// set fails with errors.ErrInvalidDiscriminant.
func DecodeEvent(r RawEvent) (Event, error) {
	typ := EventType(r[offEvType])
	if !typ.Valid() {
		return Event{}, errors.New(errors.PhaseDecode, errors.KindInvalidDiscriminant).
			Path("event", "type").
			Type("eventtype").
			Value(uint8(typ)).
			Detail("discriminant %d out of range (max %d)", uint8(typ), uint8(EventTypeFdWrite)).
			Build()
	}
	return Event{
		UserData: Userdata(le.Uint64(r[offEvUserdata:])),
		Error:    Errno(le.Uint16(r[offEvError:])),
		Type:     typ,
		FdReadwrite: EventFdReadwrite{
			NBytes: le.Uint64(r[offEvNBytes:]),
			Flags:  EventRWFlags(le.Uint16(r[offEvFlags:])),
		},
	}, nil
}

// ZeroPadding returns a copy of r with padding zeroed.
func (r RawEvent) ZeroPadding() RawEvent {
	layout.Normalize(eventLayout, r[:])
	return r
}
