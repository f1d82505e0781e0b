package host

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-journal/engine"
)

// ModuleName is the WASI preview1 import module.
const ModuleName = "wasi_snapshot_preview1"

// Instantiate exports h's poll_oneoff as a host module named moduleName,
// or ModuleName when empty. Other preview1 functions are not provided.
func Instantiate(ctx context.Context, rt wazero.Runtime, moduleName string, h *PollHost) (api.Module, error) {
	if moduleName == "" {
		moduleName = ModuleName
	}
	i32 := api.ValueTypeI32
	return rt.NewHostModuleBuilder(moduleName).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(h.pollOneoff),
			[]api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}).
		WithParameterNames("in", "out", "nsubscriptions", "result.nevents").
		Export("poll_oneoff").
		Instantiate(ctx)
}

func (h *PollHost) pollOneoff(ctx context.Context, mod api.Module, stack []uint64) {
	// Memory() hides a missing memory behind a non-nil interface; the
	// preview1 ABI requires it exported as "memory".
	mem := mod.ExportedMemory("memory")
	if mem == nil {
		stack[0] = uint64(h.PollOneoff(ctx, nil, 0, 0, 0, 0))
		return
	}
	errno := h.PollOneoff(ctx, engine.NewMemory(mem),
		api.DecodeU32(stack[0]), api.DecodeU32(stack[1]),
		api.DecodeU32(stack[2]), api.DecodeU32(stack[3]))
	stack[0] = uint64(errno)
}
