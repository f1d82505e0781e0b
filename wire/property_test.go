package wire

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genSubscription() gopter.Gen {
	return gopter.CombineGens(
		gen.UInt64(),
		gen.IntRange(0, 2),
		gen.UInt32(),
		gen.UInt64(),
		gen.UInt64(),
		gen.UInt16(),
	).Map(func(v []any) Subscription {
		ud := Userdata(v[0].(uint64))
		fd := Fd(v[2].(uint32))
		switch v[1].(int) {
		case 0:
			return Subscription{UserData: ud, Event: Clock{
				ID:        ClockID(v[2].(uint32)),
				Timeout:   Timestamp(v[3].(uint64)),
				Precision: Timestamp(v[4].(uint64)),
				Flags:     SubclockFlags(v[5].(uint16)),
			}}
		case 1:
			return Subscription{UserData: ud, Event: Read{Fd: fd}}
		default:
			return Subscription{UserData: ud, Event: Write{Fd: fd}}
		}
	})
}

// genRaw produces arbitrary record bytes with a valid tag.
func genRaw() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(SubscriptionSize, gen.UInt8()),
		gen.IntRange(0, 2),
	).Map(func(v []any) RawSubscription {
		var r RawSubscription
		copy(r[:], v[0].([]uint8))
		r[offSubTag] = byte(v[1].(int))
		return r
	})
}

func TestSubscriptionProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 500
	properties := gopter.NewProperties(params)

	properties.Property("decode inverts encode", prop.ForAll(
		func(s Subscription) bool {
			raw, err := Encode(s)
			if err != nil {
				return false
			}
			got, err := Decode(raw)
			return err == nil && got == s
		},
		genSubscription(),
	))

	properties.Property("encoded records are canonical", prop.ForAll(
		func(s Subscription) bool {
			raw, err := Encode(s)
			return err == nil && raw.IsCanonical()
		},
		genSubscription(),
	))

	properties.Property("zero padding is idempotent", prop.ForAll(
		func(r RawSubscription) bool {
			once := r.ZeroPadding()
			return once.ZeroPadding() == once
		},
		genRaw(),
	))

	properties.Property("zero padding clears bytes outside fields", prop.ForAll(
		func(r RawSubscription) bool {
			n := r.ZeroPadding()
			covered := make([]bool, SubscriptionSize)
			for _, f := range SubscriptionFields(n.Tag()) {
				for i := f.Start; i < f.End; i++ {
					covered[i] = true
				}
			}
			for i, b := range n {
				if covered[i] {
					if b != r[i] {
						return false
					}
				} else if b != 0 {
					return false
				}
			}
			return true
		},
		genRaw(),
	))

	properties.Property("decode after zero padding matches decode", prop.ForAll(
		func(r RawSubscription) bool {
			a, errA := Decode(r)
			b, errB := Decode(r.ZeroPadding())
			return errA == nil && errB == nil && a == b
		},
		genRaw(),
	))

	properties.TestingRun(t)
}
