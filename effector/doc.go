// Package effector translates live guest execution state to journal
// entries and back.
//
// The capture path (SaveThreadState, SaveThreadExit, SavePoll) only
// records: it builds one entry and appends it, and never touches guest
// state. The replay path (ApplyThreadState, Replay) consumes entries in
// order and recreates threads through a Spawner.
//
// A snapshot of the main thread can be recorded but is never replayed as
// a spawn. ApplyThreadState rejects it with errors.ErrUnsupportedRestore;
// Replay reports it as discarded and hands it to a MainThreadReattacher
// when one is configured.
package effector
