// Package journal defines the entries of a deterministic execution journal
// and the serialized append point they are written through.
//
// A journal is an append-only sequence of entries. Capture appends them as
// the guest runs; replay reads them back, in insertion order, to rebuild
// the guest's threads and answer its polls with the same results.
//
// # Entries
//
//	SetThread    (1)  thread snapshot: stacks, store data, start, layout
//	CloseThread  (2)  thread exit with its code
//	PollOneoff   (3)  one poll_oneoff call and the subscriptions that fired
//
// # Record format
//
// Each entry is one record: a little-endian u16 entry type followed by a
// body of LEB128 integers and length-prefixed buffers. Subscriptions are
// stored in their normalized 48-byte wire form, events in their 32-byte
// form. A record is handed to storage in a single call, so a reader sees
// either the whole entry or none of it.
package journal
