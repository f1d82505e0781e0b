// Package host implements the WASI preview1 poll_oneoff host function on
// top of the journal.
//
// In live mode the host evaluates clock and fd subscriptions, records the
// poll through a Recorder and writes the events back to the guest. While
// a replay queue holds entries for the calling thread, the host answers
// from the journal instead: it checks that the guest asked the same
// question and writes the recorded events without waiting. Once the
// queue is drained the host goes live.
package host
