package effector

import (
	"context"

	"go.uber.org/zap"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/wire"
)

func (e *Effector) append(ctx context.Context, entry journal.Entry) error {
	if e.log == nil {
		return errors.InvalidInput(errors.PhaseCapture, "effector has no journal")
	}
	if err := e.log.Append(ctx, entry); err != nil {
		return err
	}
	e.metrics.recordCapture(ctx, entry.Type())
	return nil
}

// SaveThreadState records a snapshot of thread id. It does not touch
// guest state; the only side effect is one journal append, whose error
// is returned as is. The buffers belong to the journal afterwards.
func (e *Effector) SaveThreadState(
	ctx context.Context,
	id wasmjournal.ThreadID,
	memoryStack, callStack, storeData []byte,
	start wasmjournal.StartType,
	layout wasmjournal.MemoryLayout,
	width wasmjournal.AddressWidth,
) error {
	err := e.append(ctx, &journal.SetThread{
		ID:          id,
		CallStack:   callStack,
		MemoryStack: memoryStack,
		StoreData:   storeData,
		Start:       start,
		Layout:      layout,
		Width:       width,
	})
	if err != nil {
		return err
	}
	Logger().Debug("thread state saved",
		zap.Uint32("id", uint32(id)),
		zap.Stringer("start", start),
		zap.Int("call_stack", len(callStack)),
		zap.Int("memory_stack", len(memoryStack)),
		zap.Int("store_data", len(storeData)))
	return nil
}

// SaveThreadExit records that thread id exited with code.
func (e *Effector) SaveThreadExit(ctx context.Context, id wasmjournal.ThreadID, code uint32) error {
	if err := e.append(ctx, &journal.CloseThread{ID: id, ExitCode: code}); err != nil {
		return err
	}
	Logger().Debug("thread exit saved", zap.Uint32("id", uint32(id)), zap.Uint32("code", code))
	return nil
}

// SavePoll records one poll made by thread: its subscriptions and the
// events returned for the subscriptions at the ready indexes.
func (e *Effector) SavePoll(
	ctx context.Context,
	id wasmjournal.ThreadID,
	subs []wire.Subscription,
	ready []uint32,
	events []wire.Event,
) error {
	if len(ready) != len(events) {
		return errors.InvalidInput(errors.PhaseCapture, "ready indexes and events differ in length")
	}
	for _, idx := range ready {
		if int(idx) >= len(subs) {
			return errors.OutOfBounds(errors.PhaseCapture, []string{"ready"}, int(idx), len(subs))
		}
	}
	if err := e.append(ctx, &journal.PollOneoff{
		Thread:        id,
		Subscriptions: subs,
		Ready:         ready,
		Events:        events,
	}); err != nil {
		return err
	}
	Logger().Debug("poll saved",
		zap.Uint32("thread", uint32(id)),
		zap.Int("subscriptions", len(subs)),
		zap.Int("ready", len(ready)))
	return nil
}
