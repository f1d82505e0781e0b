package effector

import (
	"context"
	"iter"

	"go.uber.org/zap"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/thread"
)

// ApplyThreadState recreates a spawned thread from its snapshot.
//
// A main thread snapshot fails with errors.ErrUnsupportedRestore and no
// thread is created. The entry point is narrowed to width first; one that
// does not fit fails with errors.ErrAddressOverflow. Spawner errors are
// returned with their cause chain intact.
func (e *Effector) ApplyThreadState(
	ctx context.Context,
	id wasmjournal.ThreadID,
	memoryStack, callStack, storeData []byte,
	start wasmjournal.StartType,
	layout wasmjournal.MemoryLayout,
	width wasmjournal.AddressWidth,
) (thread.Handle, error) {
	if start.IsMain() {
		return 0, errors.UnsupportedRestore("main thread snapshots are restored by reattachment, not by spawning")
	}
	if !width.Valid() {
		return 0, errors.New(errors.PhaseReplay, errors.KindInvalidInput).
			Path("thread", "width").
			Value(uint8(width)).
			Detail("unknown address width %d", uint8(width)).
			Build()
	}
	entry, ok := width.Narrow(start.EntryPoint)
	if !ok {
		return 0, errors.AddressOverflow(start.EntryPoint, uint8(width))
	}
	if e.threads == nil {
		return 0, errors.Spawn("effector has no spawner", nil)
	}

	h, err := e.threads.SpawnWithContext(ctx, thread.SpawnRequest{
		ID:          id,
		EntryPoint:  entry,
		CallStack:   callStack,
		MemoryStack: memoryStack,
		StoreData:   storeData,
		Layout:      layout,
		Width:       width,
	})
	if err != nil {
		if !errors.Is(err, errors.ErrSpawn) {
			err = errors.Spawn("spawn thread", err)
		}
		return 0, err
	}
	Logger().Debug("thread state applied",
		zap.Uint32("id", uint32(id)),
		zap.Uint64("entry_point", entry),
		zap.Stringer("width", width),
		zap.Uint32("handle", uint32(h)))
	return h, nil
}

// Outcome is what replay did with one entry.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Replayed is the record of one consumed entry.
type Replayed struct {
	Err     error
	Entry   journal.Entry
	Index   int
	Handle  thread.Handle
	Outcome Outcome
}

// ReplayReport summarizes a replay pass.
type ReplayReport struct {
	Entries   []Replayed
	Succeeded int
	Failed    int
	Discarded int
}

func (r *ReplayReport) add(rep Replayed) {
	r.Entries = append(r.Entries, rep)
	switch rep.Outcome {
	case OutcomeSuccess:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	case OutcomeDiscarded:
		r.Discarded++
	}
}

// Replay consumes entries once, in order, on the calling goroutine.
// Thread snapshots are applied, exits are forwarded to the spawner when
// it is a Terminator, and polls are queued for the poll host.
//
// Replay stops at the first failed entry and returns its error together
// with the report so far, unless WithContinueOnError was given. A
// sequence error always stops the pass.
func (e *Effector) Replay(ctx context.Context, entries iter.Seq2[journal.Entry, error]) (*ReplayReport, error) {
	report := &ReplayReport{}
	i := 0
	for entry, err := range entries {
		if err != nil {
			report.add(Replayed{Index: i, Outcome: OutcomeFailed, Err: err})
			return report, err
		}
		if err := ctx.Err(); err != nil {
			return report, errors.Canceled(errors.PhaseReplay, err)
		}

		rep := e.replayOne(ctx, i, entry)
		report.add(rep)
		e.metrics.recordReplay(ctx, entry.Type(), rep.Outcome)
		if rep.Outcome == OutcomeFailed {
			Logger().Warn("replay entry failed",
				zap.Int("index", i),
				zap.Stringer("type", entry.Type()),
				zap.Error(rep.Err))
			if !e.continueOnError {
				return report, rep.Err
			}
		}
		i++
	}
	Logger().Info("replay finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("discarded", report.Discarded))
	return report, nil
}

func (e *Effector) replayOne(ctx context.Context, i int, entry journal.Entry) Replayed {
	rep := Replayed{Index: i, Entry: entry}
	fail := func(err error) Replayed {
		rep.Outcome = OutcomeFailed
		rep.Err = err
		return rep
	}

	switch en := entry.(type) {
	case *journal.SetThread:
		if en.Start.IsMain() {
			rep.Outcome = OutcomeDiscarded
			if e.reattacher != nil {
				if err := e.reattacher.ReattachMainThread(ctx, en); err != nil {
					return fail(err)
				}
			}
			return rep
		}
		h, err := e.ApplyThreadState(ctx, en.ID, en.MemoryStack, en.CallStack, en.StoreData, en.Start, en.Layout, en.Width)
		if err != nil {
			return fail(err)
		}
		rep.Handle = h

	case *journal.CloseThread:
		term, ok := e.threads.(Terminator)
		if !ok {
			rep.Outcome = OutcomeDiscarded
			return rep
		}
		if err := term.Terminate(en.ID, en.ExitCode); err != nil {
			return fail(err)
		}

	case *journal.PollOneoff:
		e.polls.Push(en)

	default:
		return fail(errors.InvalidInput(errors.PhaseReplay, "unknown entry type "+entry.Type().String()))
	}
	rep.Outcome = OutcomeSuccess
	return rep
}
