package host

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/effector"
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/wire"
)

// DefaultPollInterval is how often fd readiness is rechecked while a poll
// waits.
const DefaultPollInterval = 10 * time.Millisecond

// FdReadiness is the state of one descriptor.
type FdReadiness struct {
	NBytes uint64
	Flags  wire.EventRWFlags
	Error  wire.Errno
	Ready  bool
}

// FdPoller reports descriptor readiness without blocking.
type FdPoller interface {
	Readiness(ctx context.Context, fd wire.Fd, write bool) FdReadiness
}

// Recorder stores a completed poll. *effector.Effector implements it.
type Recorder interface {
	SavePoll(ctx context.Context, id wasmjournal.ThreadID, subs []wire.Subscription, ready []uint32, events []wire.Event) error
}

type threadKey struct{}

// WithThreadID tags ctx with the guest thread making host calls.
func WithThreadID(ctx context.Context, id wasmjournal.ThreadID) context.Context {
	return context.WithValue(ctx, threadKey{}, id)
}

// ThreadIDFrom returns the thread tagged by WithThreadID, or 0 for the
// main thread.
func ThreadIDFrom(ctx context.Context) wasmjournal.ThreadID {
	id, _ := ctx.Value(threadKey{}).(wasmjournal.ThreadID)
	return id
}

// Option configures a PollHost.
type Option func(*PollHost)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(h *PollHost) { h.clock = c }
}

// WithFdPoller sets the descriptor readiness source. Without one, fd
// subscriptions complete at once with ENOTSUP.
func WithFdPoller(p FdPoller) Option {
	return func(h *PollHost) { h.fds = p }
}

// WithReplay answers polls from q while it holds entries.
func WithReplay(q *effector.PollQueue) Option {
	return func(h *PollHost) { h.replay = q }
}

// WithPollInterval sets how often fd readiness is rechecked.
func WithPollInterval(d time.Duration) Option {
	return func(h *PollHost) { h.interval = d }
}

// PollHost serves poll_oneoff.
type PollHost struct {
	rec      Recorder
	clock    Clock
	fds      FdPoller
	replay   *effector.PollQueue
	interval time.Duration
}

// New creates a PollHost that records live polls through rec. rec may be
// nil when nothing should be recorded.
func New(rec Recorder, opts ...Option) *PollHost {
	h := &PollHost{rec: rec, interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(h)
	}
	if h.clock == nil {
		h.clock = NewSystemClock()
	}
	if h.interval <= 0 {
		h.interval = DefaultPollInterval
	}
	return h
}

// PollOneoff reads n subscriptions at in, waits until at least one fires
// and writes the events to out and their count to neventsPtr.
func (h *PollHost) PollOneoff(ctx context.Context, mem wasmjournal.Memory, in, out, n, neventsPtr uint32) wire.Errno {
	if mem == nil {
		return wire.ErrnoFault
	}
	if n == 0 {
		return wire.ErrnoInval
	}
	raws, err := wire.ReadSubscriptions(mem, in, n)
	if err != nil {
		Logger().Debug("poll_oneoff: read subscriptions", zap.Error(err))
		return errnoFor(err)
	}
	subs, err := wire.DecodeAll(raws)
	if err != nil {
		Logger().Debug("poll_oneoff: decode subscriptions", zap.Error(err))
		return wire.ErrnoInval
	}

	id := ThreadIDFrom(ctx)
	var events []wire.Event
	if recorded, ok := h.nextRecorded(id); ok {
		events, err = replayed(recorded, raws)
		if err != nil {
			Logger().Error("poll_oneoff: replay diverged",
				zap.Uint32("thread", uint32(id)),
				zap.Error(err))
			return wire.ErrnoInval
		}
	} else {
		var ready []uint32
		ready, events, err = h.wait(ctx, subs)
		if err != nil {
			return waitErrno(err)
		}
		if h.rec != nil {
			if err := h.rec.SavePoll(ctx, id, subs, ready, events); err != nil {
				Logger().Warn("poll_oneoff: record failed",
					zap.Uint32("thread", uint32(id)),
					zap.Error(err))
				return wire.ErrnoIo
			}
		}
	}

	encoded := make([]wire.RawEvent, len(events))
	for i, ev := range events {
		encoded[i] = ev.Encode()
	}
	if err := wire.WriteEvents(mem, out, encoded); err != nil {
		return wire.ErrnoFault
	}
	if err := mem.WriteU32(neventsPtr, uint32(len(events))); err != nil {
		return wire.ErrnoFault
	}
	return wire.ErrnoSuccess
}

func (h *PollHost) nextRecorded(id wasmjournal.ThreadID) (*journal.PollOneoff, bool) {
	if h.replay == nil {
		return nil, false
	}
	return h.replay.Pop(id)
}

func replayed(recorded *journal.PollOneoff, raws []wire.RawSubscription) ([]wire.Event, error) {
	want, err := recorded.Digest()
	if err != nil {
		return nil, err
	}
	if got := journal.DigestRaw(raws); got != want {
		return nil, errors.InvalidData(errors.PhaseHost, []string{"poll_oneoff", "subscriptions"},
			"subscriptions differ from the recorded poll")
	}
	return recorded.Events, nil
}

func errnoFor(err error) wire.Errno {
	if errors.Is(err, &errors.Error{Kind: errors.KindOutOfBounds}) {
		return wire.ErrnoFault
	}
	return wire.ErrnoInval
}

// waitErrno maps a wait failure to the errno returned to the guest.
func waitErrno(err error) wire.Errno {
	if errors.Is(err, &errors.Error{Kind: errors.KindCanceled}) {
		return wire.ErrnoIntr
	}
	return wire.ErrnoInval
}

// saturate converts a nanosecond count to a Duration, clamping at the
// largest Duration. Guests pass the all-ones timeout to wait forever.
func saturate(ns wire.Timestamp) time.Duration {
	if ns > math.MaxInt64 {
		return math.MaxInt64
	}
	return time.Duration(ns)
}

// pending is a clock subscription still waiting to fire.
type pending struct {
	index     int
	remaining time.Duration
}

// wait evaluates subs until at least one fires. Clock deadlines are fixed
// when the poll starts; fd subscriptions are rechecked every interval.
func (h *PollHost) wait(ctx context.Context, subs []wire.Subscription) ([]uint32, []wire.Event, error) {
	var (
		ready   []uint32
		events  []wire.Event
		clocks  []pending
		fdIndex []int
	)
	fire := func(i int, ev wire.Event) {
		ready = append(ready, uint32(i))
		events = append(events, ev)
	}

	for i, sub := range subs {
		switch ev := sub.Event.(type) {
		case wire.Clock:
			now, ok := h.clock.Now(ev.ID)
			if !ok {
				e := wire.EventFor(sub)
				e.Error = wire.ErrnoInval
				fire(i, e)
				continue
			}
			remaining := saturate(ev.Timeout)
			if ev.Flags&wire.SubclockAbstime != 0 {
				remaining = 0
				if ev.Timeout > now {
					remaining = saturate(ev.Timeout - now)
				}
			}
			clocks = append(clocks, pending{index: i, remaining: remaining})
		case wire.Read, wire.Write:
			if h.fds == nil {
				e := wire.EventFor(sub)
				e.Error = wire.ErrnoNotsup
				fire(i, e)
				continue
			}
			fdIndex = append(fdIndex, i)
		}
	}

	start, _ := h.clock.Now(wire.ClockMonotonic)
	for {
		for _, i := range fdIndex {
			sub := subs[i]
			var r FdReadiness
			switch ev := sub.Event.(type) {
			case wire.Read:
				r = h.fds.Readiness(ctx, ev.Fd, false)
			case wire.Write:
				r = h.fds.Readiness(ctx, ev.Fd, true)
			}
			if r.Ready || r.Error != wire.ErrnoSuccess {
				e := wire.EventFor(sub)
				e.Error = r.Error
				e.FdReadwrite = wire.EventFdReadwrite{NBytes: r.NBytes, Flags: r.Flags}
				fire(i, e)
			}
		}

		now, _ := h.clock.Now(wire.ClockMonotonic)
		elapsed := time.Duration(now - start)
		next := time.Duration(-1)
		for _, c := range clocks {
			if c.remaining <= elapsed {
				fire(c.index, wire.EventFor(subs[c.index]))
				continue
			}
			if left := c.remaining - elapsed; next < 0 || left < next {
				next = left
			}
		}
		if len(events) > 0 {
			return ready, events, nil
		}

		if len(fdIndex) > 0 && (next < 0 || next > h.interval) {
			next = h.interval
		}
		if next < 0 {
			// Nothing can ever fire.
			return nil, nil, errors.InvalidInput(errors.PhaseHost, "no subscription can complete")
		}
		if err := h.clock.Sleep(ctx, next); err != nil {
			return nil, nil, errors.Canceled(errors.PhaseHost, err)
		}
	}
}
