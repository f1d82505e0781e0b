// Package thread manages the guest threads a journal replay recreates.
//
// Manager creates threads from recorded snapshots. Creation is
// all-or-nothing: a handle is reserved in the Table, the Launcher runs,
// and on any launcher failure the reservation is released so no
// half-created thread is ever visible.
//
// Rewinder moves a snapshot's stacks into guest memory using the
// asyncify protocol:
//
//	dataAddr+0   current pointer into the unwind data (u32)
//	dataAddr+4   end of the unwind data region (u32)
//	dataAddr+8   unwind data, CallStack bytes
//
// The memory stack is written just below Layout.StackUpper, where the
// shadow stack grows down from.
package thread
