package wire

import "fmt"

// Userdata is an opaque tag echoed back in the matching event.
type Userdata uint64

// Timestamp is a duration or point in time in nanoseconds.
type Timestamp uint64

// Fd is a guest file descriptor handle.
type Fd uint32

// EventType is the subscription discriminant.
type EventType uint8

const (
	EventTypeClock EventType = iota
	EventTypeFdRead
	EventTypeFdWrite
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	return t <= EventTypeFdWrite
}

func (t EventType) String() string {
	switch t {
	case EventTypeClock:
		return "clock"
	case EventTypeFdRead:
		return "fd_read"
	case EventTypeFdWrite:
		return "fd_write"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// ClockID selects the clock a clock subscription waits on.
type ClockID uint32

const (
	ClockRealtime ClockID = iota
	ClockMonotonic
	ClockProcessCPUTime
	ClockThreadCPUTime
)

func (c ClockID) String() string {
	switch c {
	case ClockRealtime:
		return "realtime"
	case ClockMonotonic:
		return "monotonic"
	case ClockProcessCPUTime:
		return "process_cputime"
	case ClockThreadCPUTime:
		return "thread_cputime"
	default:
		return fmt.Sprintf("clock(%d)", uint32(c))
	}
}

// SubclockFlags modify a clock subscription.
type SubclockFlags uint16

// SubclockAbstime makes Timeout an absolute time instead of a duration.
const SubclockAbstime SubclockFlags = 1 << 0

// EventRWFlags annotate fd readiness events.
type EventRWFlags uint16

// EventFdReadwriteHangup reports that the peer closed the descriptor.
const EventFdReadwriteHangup EventRWFlags = 1 << 0

// Errno is a WASI error number as reported in events.
type Errno uint16

const (
	ErrnoSuccess Errno = 0
	ErrnoBadf    Errno = 8
	ErrnoFault   Errno = 21
	ErrnoIntr    Errno = 27
	ErrnoInval   Errno = 28
	ErrnoIo      Errno = 29
	ErrnoNotsup  Errno = 58
)

// SubscriptionClock is the payload of a clock subscription.
type SubscriptionClock struct {
	ID        ClockID
	Timeout   Timestamp
	Precision Timestamp
	Flags     SubclockFlags
}

// SubscriptionFdReadwrite is the payload of fd_read and fd_write
// subscriptions. The direction lives in the tag, not here.
type SubscriptionFdReadwrite struct {
	Fd Fd
}

// EventFdReadwrite is the fd readiness detail of an event.
type EventFdReadwrite struct {
	NBytes uint64
	Flags  EventRWFlags
}
