package thread

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/engine"
	"github.com/wippyai/wasm-journal/errors"
)

// Asyncify data region defaults.
const (
	DefaultDataAddr uint32 = 16
	DefaultDataSize uint32 = 1024

	dataHeader = 8
)

// RewindConfig places the asyncify data region.
type RewindConfig struct {
	DataAddr uint32
	DataSize uint32
}

func (c RewindConfig) withDefaults() RewindConfig {
	if c.DataAddr == 0 {
		c.DataAddr = DefaultDataAddr
	}
	if c.DataSize == 0 {
		c.DataSize = DefaultDataSize
	}
	return c
}

// Rewinder restores and captures thread stacks in guest memory.
type Rewinder struct {
	memory      wasmjournal.Memory
	startRewind api.Function
	stopUnwind  api.Function
	dataAddr    uint32
	dataSize    uint32
}

// NewRewinder binds a Rewinder to an instantiated module. The asyncify
// exports are optional; without asyncify_start_rewind, Restore only
// writes memory.
func NewRewinder(mod api.Module, cfg RewindConfig) (*Rewinder, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.InvalidInput(errors.PhaseSpawn, "module has no memory")
	}
	r := NewMemoryRewinder(engine.NewMemory(mem), cfg)
	r.startRewind = mod.ExportedFunction("asyncify_start_rewind")
	r.stopUnwind = mod.ExportedFunction("asyncify_stop_unwind")
	return r, nil
}

// NewMemoryRewinder works on a bare memory with no guest code attached.
func NewMemoryRewinder(mem wasmjournal.Memory, cfg RewindConfig) *Rewinder {
	cfg = cfg.withDefaults()
	return &Rewinder{memory: mem, dataAddr: cfg.DataAddr, dataSize: cfg.DataSize}
}

// CanRewind reports whether the module exports asyncify_start_rewind.
func (r *Rewinder) CanRewind() bool {
	return r.startRewind != nil
}

// Restore writes req's stacks into memory and, when the module supports
// it, starts the asyncify rewind. Nothing is written if either stack
// does not fit its region.
func (r *Rewinder) Restore(ctx context.Context, req SpawnRequest) error {
	callLen := uint32(len(req.CallStack))
	if uint64(len(req.CallStack)) > uint64(r.dataSize) {
		return errors.OutOfBounds(errors.PhaseSpawn, []string{"call_stack"}, len(req.CallStack), int(r.dataSize))
	}
	memBase, err := memoryStackBase(req.Layout, len(req.MemoryStack))
	if err != nil {
		return err
	}

	start := r.dataAddr + dataHeader
	if sz, ok := r.memory.(wasmjournal.MemorySizer); ok {
		size := uint64(sz.Size())
		if uint64(start)+uint64(r.dataSize) > size || req.Layout.StackUpper > size {
			return errors.OutOfBounds(errors.PhaseSpawn, []string{"memory"}, int(max(uint64(start)+uint64(r.dataSize), req.Layout.StackUpper)), int(size))
		}
	}
	if err := r.memory.WriteU32(r.dataAddr, start+callLen); err != nil {
		return errors.Wrap(errors.PhaseSpawn, errors.KindOutOfBounds, err, "write asyncify pointer")
	}
	if err := r.memory.WriteU32(r.dataAddr+4, start+r.dataSize); err != nil {
		return errors.Wrap(errors.PhaseSpawn, errors.KindOutOfBounds, err, "write asyncify end")
	}
	if err := r.memory.Write(start, req.CallStack); err != nil {
		return errors.Wrap(errors.PhaseSpawn, errors.KindOutOfBounds, err, "write call stack")
	}
	if err := r.memory.Write(memBase, req.MemoryStack); err != nil {
		return errors.Wrap(errors.PhaseSpawn, errors.KindOutOfBounds, err, "write memory stack")
	}

	if r.startRewind != nil {
		if _, err := r.startRewind.Call(ctx, uint64(r.dataAddr)); err != nil {
			return errors.Spawn("asyncify_start_rewind", err)
		}
	}
	return nil
}

// memoryStackBase returns where a memory stack of n bytes starts so that
// it ends at StackUpper.
func memoryStackBase(l wasmjournal.MemoryLayout, n int) (uint32, error) {
	size := uint64(n)
	if size > l.StackUpper || l.StackUpper-size < l.StackLower {
		return 0, errors.New(errors.PhaseSpawn, errors.KindOutOfBounds).
			Path("memory_stack").
			Detail("%d bytes do not fit stack [0x%x, 0x%x)", n, l.StackLower, l.StackUpper).
			Build()
	}
	if l.StackUpper > 0xFFFF_FFFF {
		return 0, errors.AddressOverflow(l.StackUpper, 32)
	}
	return uint32(l.StackUpper - size), nil
}

// CaptureCallStack returns the unwind data written since the region was
// initialized, after the guest unwound. It stops the unwind when the
// module supports it.
func (r *Rewinder) CaptureCallStack(ctx context.Context) ([]byte, error) {
	if r.stopUnwind != nil {
		if _, err := r.stopUnwind.Call(ctx); err != nil {
			return nil, errors.Wrap(errors.PhaseCapture, errors.KindInvalidData, err, "asyncify_stop_unwind")
		}
	}
	ptr, err := r.memory.ReadU32(r.dataAddr)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCapture, errors.KindOutOfBounds, err, "read asyncify pointer")
	}
	start := r.dataAddr + dataHeader
	if ptr < start || ptr-start > r.dataSize {
		return nil, errors.InvalidData(errors.PhaseCapture, []string{"asyncify", "pointer"}, "pointer outside data region")
	}
	data, err := r.memory.Read(start, ptr-start)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCapture, errors.KindOutOfBounds, err, "read call stack")
	}
	return data, nil
}

// CaptureMemoryStack returns the live shadow stack [sp, StackUpper).
func (r *Rewinder) CaptureMemoryStack(l wasmjournal.MemoryLayout, sp uint64) ([]byte, error) {
	if sp < l.StackLower || sp > l.StackUpper {
		return nil, errors.New(errors.PhaseCapture, errors.KindOutOfBounds).
			Path("stack_pointer").
			Value(sp).
			Detail("stack pointer 0x%x outside [0x%x, 0x%x]", sp, l.StackLower, l.StackUpper).
			Build()
	}
	if l.StackUpper > 0xFFFF_FFFF {
		return nil, errors.AddressOverflow(l.StackUpper, 32)
	}
	data, err := r.memory.Read(uint32(sp), uint32(l.StackUpper-sp))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCapture, errors.KindOutOfBounds, err, "read memory stack")
	}
	return data, nil
}

// Launcher returns a Launcher that restores each thread's stacks through
// r and then runs start, if non-nil.
func (r *Rewinder) Launcher(start func(ctx context.Context, t *Thread) error) Launcher {
	return LauncherFunc(func(ctx context.Context, t *Thread, req SpawnRequest) error {
		if err := r.Restore(ctx, req); err != nil {
			return err
		}
		if start == nil {
			return nil
		}
		return start(ctx, t)
	})
}
