package wire

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

func dump(b []byte) []byte {
	var sb strings.Builder
	for off := 0; off < len(b); off += 8 {
		fmt.Fprintf(&sb, "%02d: % x\n", off, b[off:off+8])
	}
	return []byte(sb.String())
}

func TestWireGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	clock, err := Encode(Subscription{UserData: 7, Event: Clock{ID: ClockMonotonic, Timeout: 500, Precision: 1}})
	if err != nil {
		t.Fatal(err)
	}
	g.Assert(t, "subscription_clock", dump(clock[:]))

	write, err := Encode(Subscription{UserData: 0xdeadbeef, Event: Write{Fd: 3}})
	if err != nil {
		t.Fatal(err)
	}
	g.Assert(t, "subscription_fd_write", dump(write[:]))

	ev := Event{
		UserData:    9,
		Type:        EventTypeFdRead,
		FdReadwrite: EventFdReadwrite{NBytes: 512, Flags: EventFdReadwriteHangup},
	}.Encode()
	g.Assert(t, "event_fd_read", dump(ev[:]))
}
