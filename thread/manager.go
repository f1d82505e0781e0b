package thread

import (
	"context"

	"go.uber.org/zap"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
)

// Manager creates and terminates threads. It is the spawner used during
// replay.
type Manager struct {
	table    *Table
	launcher Launcher
}

// NewManager creates a Manager that starts threads with launcher.
func NewManager(launcher Launcher) *Manager {
	return &Manager{table: NewTable(), launcher: launcher}
}

// Table returns the live thread table.
func (m *Manager) Table() *Table {
	return m.table
}

// SpawnWithContext reserves a handle for req.ID and launches the thread.
// The thread's context inherits values from ctx but not its
// cancellation. If the launcher fails the reservation is released and
// the launcher's error is returned as the cause of an errors.ErrSpawn.
func (m *Manager) SpawnWithContext(ctx context.Context, req SpawnRequest) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Canceled(errors.PhaseSpawn, err)
	}
	if m.launcher == nil {
		return 0, errors.Spawn("no launcher configured", nil)
	}

	th := newThread(ctx, req)
	h, err := m.table.Reserve(req.ID, th)
	if err != nil {
		th.cancel()
		return 0, errors.Spawn("reserve thread", err)
	}

	if err := m.launcher.Launch(th.Context(), th, req); err != nil {
		m.table.Release(h)
		th.cancel()
		Logger().Debug("thread launch failed",
			zap.Uint32("id", uint32(req.ID)),
			zap.Error(err))
		return 0, errors.Spawn("launch thread", err)
	}

	th.setRunning()
	m.table.notify(Event{Type: EventStarted, Handle: h, ID: req.ID, Thread: th})
	Logger().Debug("thread started",
		zap.Uint32("id", uint32(req.ID)),
		zap.Uint32("handle", uint32(h)),
		zap.Uint64("entry_point", req.EntryPoint),
		zap.Stringer("width", req.Width))
	return h, nil
}

// Terminate marks the thread exited with code and releases its handle.
func (m *Manager) Terminate(id wasmjournal.ThreadID, code uint32) error {
	h, th, ok := m.table.Lookup(id)
	if !ok {
		return errors.New(errors.PhaseSpawn, errors.KindNotFound).
			Path("thread", "id").
			Value(uint32(id)).
			Detail("thread %d is not live", id).
			Build()
	}
	if th.exit(code) {
		m.table.notify(Event{Type: EventExited, Handle: h, ID: id, Thread: th})
	}
	m.table.Release(h)
	Logger().Debug("thread exited",
		zap.Uint32("id", uint32(id)),
		zap.Uint32("code", code))
	return nil
}

// Close terminates every live thread with exit code 0 and closes the
// table.
func (m *Manager) Close() error {
	var ids []wasmjournal.ThreadID
	m.table.Each(func(_ Handle, th *Thread) bool {
		ids = append(ids, th.ID)
		return true
	})
	for _, id := range ids {
		_ = m.Terminate(id, 0)
	}
	return m.table.Close()
}
