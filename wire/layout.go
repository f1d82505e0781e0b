package wire

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-journal/wire/internal/layout"
)

// Record sizes. Part of the guest ABI; checked against the computed
// layouts at init.
const (
	SubscriptionSize = 48
	EventSize        = 32
)

func typeName(s string) *string { return &s }

var (
	subscriptionClockType = &wit.TypeDef{
		Name: typeName("subscription-clock"),
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "id", Type: wit.U32{}},
			{Name: "timeout", Type: wit.U64{}},
			{Name: "precision", Type: wit.U64{}},
			{Name: "flags", Type: wit.U16{}},
		}},
	}

	subscriptionFdReadwriteType = &wit.TypeDef{
		Name: typeName("subscription-fd-readwrite"),
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "file-descriptor", Type: wit.U32{}},
		}},
	}

	// Case order is the EventType discriminant order.
	subscriptionUType = &wit.TypeDef{
		Name: typeName("subscription-u"),
		Kind: &wit.Variant{Cases: []wit.Case{
			{Name: "clock", Type: subscriptionClockType},
			{Name: "fd-read", Type: subscriptionFdReadwriteType},
			{Name: "fd-write", Type: subscriptionFdReadwriteType},
		}},
	}

	subscriptionType = &wit.TypeDef{
		Name: typeName("subscription"),
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "userdata", Type: wit.U64{}},
			{Name: "u", Type: subscriptionUType},
		}},
	}

	eventTypeEnum = &wit.TypeDef{
		Name: typeName("eventtype"),
		Kind: &wit.Enum{Cases: []wit.EnumCase{
			{Name: "clock"},
			{Name: "fd-read"},
			{Name: "fd-write"},
		}},
	}

	eventFdReadwriteType = &wit.TypeDef{
		Name: typeName("event-fd-readwrite"),
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "nbytes", Type: wit.U64{}},
			{Name: "flags", Type: wit.U16{}},
		}},
	}

	eventType = &wit.TypeDef{
		Name: typeName("event"),
		Kind: &wit.Record{Fields: []wit.Field{
			{Name: "userdata", Type: wit.U64{}},
			{Name: "error", Type: wit.U16{}},
			{Name: "type", Type: eventTypeEnum},
			{Name: "fd-readwrite", Type: eventFdReadwriteType},
		}},
	}
)

// Computed layouts and the absolute field offsets used by the codecs.
var (
	subscriptionLayout layout.Info
	eventLayout        layout.Info

	offSubUserdata  uint32
	offSubTag       uint32
	offSubPayload   uint32
	offClockID      uint32
	offClockTimeout uint32
	offClockPrec    uint32
	offClockFlags   uint32
	offFd           uint32

	offEvUserdata uint32
	offEvError    uint32
	offEvType     uint32
	offEvNBytes   uint32
	offEvFlags    uint32
)

func init() {
	calc := layout.NewCalculator()
	subscriptionLayout = calc.Calculate(subscriptionType)
	eventLayout = calc.Calculate(eventType)

	if subscriptionLayout.Size != SubscriptionSize {
		panic(fmt.Sprintf("wire: subscription layout is %d bytes, ABI requires %d", subscriptionLayout.Size, SubscriptionSize))
	}
	if eventLayout.Size != EventSize {
		panic(fmt.Sprintf("wire: event layout is %d bytes, ABI requires %d", eventLayout.Size, EventSize))
	}

	offSubUserdata = mustLocate(subscriptionLayout, "userdata")
	offSubTag = mustLocate(subscriptionLayout, "u")
	_, u, _ := subscriptionLayout.Locate("u")
	offSubPayload = offSubTag + u.PayloadOffset
	offClockID = mustLocate(subscriptionLayout, "u", "clock", "id")
	offClockTimeout = mustLocate(subscriptionLayout, "u", "clock", "timeout")
	offClockPrec = mustLocate(subscriptionLayout, "u", "clock", "precision")
	offClockFlags = mustLocate(subscriptionLayout, "u", "clock", "flags")
	offFd = mustLocate(subscriptionLayout, "u", "fd-read", "file-descriptor")

	offEvUserdata = mustLocate(eventLayout, "userdata")
	offEvError = mustLocate(eventLayout, "error")
	offEvType = mustLocate(eventLayout, "type")
	offEvNBytes = mustLocate(eventLayout, "fd-readwrite", "nbytes")
	offEvFlags = mustLocate(eventLayout, "fd-readwrite", "flags")
}

func mustLocate(info layout.Info, path ...string) uint32 {
	off, _, ok := info.Locate(path...)
	if !ok {
		panic(fmt.Sprintf("wire: no field %v in layout", path))
	}
	return off
}

// FieldRange is a named byte range of a wire record.
type FieldRange struct {
	Name  string
	Start uint32
	End   uint32
}

// SubscriptionFields lists the named byte ranges of a subscription with the
// given tag: userdata, tag and the fields of the active payload. It returns
// nil for an invalid tag.
func SubscriptionFields(tag EventType) []FieldRange {
	fields := []FieldRange{
		{Name: "userdata", Start: offSubUserdata, End: offSubUserdata + 8},
		{Name: "tag", Start: offSubTag, End: offSubTag + 1},
	}
	switch tag {
	case EventTypeClock:
		return append(fields,
			FieldRange{Name: "clock.id", Start: offClockID, End: offClockID + 4},
			FieldRange{Name: "clock.timeout", Start: offClockTimeout, End: offClockTimeout + 8},
			FieldRange{Name: "clock.precision", Start: offClockPrec, End: offClockPrec + 8},
			FieldRange{Name: "clock.flags", Start: offClockFlags, End: offClockFlags + 2},
		)
	case EventTypeFdRead, EventTypeFdWrite:
		return append(fields, FieldRange{Name: "fd", Start: offFd, End: offFd + 4})
	default:
		return nil
	}
}
