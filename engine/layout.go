package engine

import (
	"github.com/tetratelabs/wazero/api"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
)

// Linker-defined globals.
const (
	GlobalStackPointer = "__stack_pointer"
	GlobalHeapBase     = "__heap_base"
	GlobalDataEnd      = "__data_end"
)

func exportedGlobal(mod api.Module, name string) (uint64, bool) {
	g := mod.ExportedGlobal(name)
	if g == nil {
		return 0, false
	}
	v := g.Get()
	if g.Type() == api.ValueTypeI32 {
		v = uint64(uint32(v))
	}
	return v, true
}

// StackLayout returns the main stack region of mod. The top of the stack
// is __heap_base, or the current __stack_pointer when __heap_base is not
// exported. The bottom is top-stackSize, or __data_end when stackSize is
// zero.
func StackLayout(mod api.Module, stackSize uint64) (wasmjournal.MemoryLayout, error) {
	upper, ok := exportedGlobal(mod, GlobalHeapBase)
	if !ok {
		if upper, ok = exportedGlobal(mod, GlobalStackPointer); !ok {
			return wasmjournal.MemoryLayout{}, errors.NotFound(errors.PhaseCapture, "global", GlobalHeapBase)
		}
	}

	var lower uint64
	switch {
	case stackSize > 0:
		if stackSize > upper {
			return wasmjournal.MemoryLayout{}, errors.New(errors.PhaseCapture, errors.KindOutOfBounds).
				Path("stack_size").
				Value(stackSize).
				Detail("stack size 0x%x exceeds stack top 0x%x", stackSize, upper).
				Build()
		}
		lower = upper - stackSize
	default:
		dataEnd, ok := exportedGlobal(mod, GlobalDataEnd)
		if !ok {
			return wasmjournal.MemoryLayout{}, errors.NotFound(errors.PhaseCapture, "global", GlobalDataEnd)
		}
		if dataEnd > upper {
			return wasmjournal.MemoryLayout{}, errors.InvalidData(errors.PhaseCapture, []string{GlobalDataEnd}, "data end above stack top")
		}
		lower = dataEnd
	}

	return wasmjournal.MemoryLayout{
		StackUpper: upper,
		StackLower: lower,
		StackSize:  upper - lower,
	}, nil
}

// StackPointer returns the current value of __stack_pointer.
func StackPointer(mod api.Module) (uint64, error) {
	sp, ok := exportedGlobal(mod, GlobalStackPointer)
	if !ok {
		return 0, errors.NotFound(errors.PhaseCapture, "global", GlobalStackPointer)
	}
	return sp, nil
}
