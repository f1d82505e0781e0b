// Package engine configures the wazero runtime guests run on during
// capture and replay, and exposes the guest state the journal records.
//
// # Determinism
//
// Replay must reproduce the guest's results bit for bit, so the runtime
// is configured from a Config that is recorded alongside the journal.
// EnableNaNCanonicalization is on by default. wazero already produces
// canonical NaNs on every platform, so the flag selects no extra code
// path there, but a Config with it off is still accepted and kept so a
// journal records what the capture side asked for.
//
// # Stack Layout
//
// StackLayout derives a thread's MemoryLayout from the globals wasm-ld
// exports:
//
//	__data_end       end of static data, floor of the stack
//	__heap_base      start of the heap, top of the stack
//	__stack_pointer  current stack pointer (mutable)
//
// # Known Limitations
//
// Memory64: wazero (v1.10.1) does not implement the Memory64 proposal, so
// guests run here are always wasm32. Journals may still carry wasm64
// snapshots produced elsewhere; they are restored through the thread
// package without going through this runtime.
package engine
