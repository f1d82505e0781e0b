// Package wasmjournal is the deterministic-journal layer of a WebAssembly host.
//
// The journal records the nondeterministic interactions between a running
// guest and its host (thread lifecycle, I/O-readiness waits, timers) as an
// ordered log of typed entries, and replays that log to rebuild guest state
// after a restart, a migration or a time-travel debug session.
//
// # Architecture Overview
//
//	wasmjournal/        Root package with guest Memory, thread and address-width types
//	├── wire/           Fixed-layout subscription/event records and their tagged views
//	├── journal/        Entry catalogue, entry codec and the serialized append point
//	├── storage/        Record storage: memory, file, SQLite, Redis Streams
//	├── effector/       Capture (Save*) and replay (Apply*, Replay) of guest state
//	├── thread/         Thread table, spawn-with-context and asyncify rewind
//	├── engine/         wazero runtime configuration and stack-layout discovery
//	├── host/           poll_oneoff host function recording subscriptions
//	├── config/         Configuration for journal tooling
//	├── errors/         Structured error types
//	└── cmd/journal/    CLI: inspect, verify, tail, browse, export, replay
//
// # Quick Start
//
// Record a spawned thread and replay it later:
//
//	log, err := journal.New(storage.NewMemory())
//	eff, err := effector.New(log, thread.NewManager(launcher))
//
//	err = eff.SaveThreadState(ctx, id, memStack, callStack, store,
//	    wasmjournal.Spawned(entry), layout, wasmjournal.Width32)
//
//	report, err := eff.Replay(ctx, log.Entries(ctx))
//
// # Determinism
//
// Every byte that crosses the guest/host boundary and ends up in the journal
// is normalized first: padding and inactive union members are zero, so two
// hosts built with different compilers produce identical records.
//
// # Thread Safety
//
// journal.Log serializes appends from any number of goroutines. Replay is
// single-threaded and must finish before the restored guest resumes.
package wasmjournal
