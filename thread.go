package wasmjournal

import "fmt"

// ThreadID identifies a guest thread. The main thread is conventionally 0.
type ThreadID uint32

// AddressWidth is the pointer width of a guest memory, in bits.
type AddressWidth uint8

const (
	Width32 AddressWidth = 32
	Width64 AddressWidth = 64
)

// Valid reports whether w is 32 or 64.
func (w AddressWidth) Valid() bool {
	return w == Width32 || w == Width64
}

// Is64 reports whether w is the memory64 width.
func (w AddressWidth) Is64() bool {
	return w == Width64
}

// Narrow converts an address stored in its widest form to w.
// ok is false when significant bits would be lost.
func (w AddressWidth) Narrow(addr uint64) (narrowed uint64, ok bool) {
	switch w {
	case Width32:
		if addr > 0xFFFF_FFFF {
			return 0, false
		}
		return addr, true
	case Width64:
		return addr, true
	default:
		return 0, false
	}
}

func (w AddressWidth) String() string {
	switch w {
	case Width32:
		return "wasm32"
	case Width64:
		return "wasm64"
	default:
		return fmt.Sprintf("width(%d)", uint8(w))
	}
}

// StartKind distinguishes the main thread from spawned threads.
type StartKind uint8

const (
	StartMainThread StartKind = iota
	StartSpawned
)

// StartType describes how a thread was started. EntryPoint is only
// meaningful for spawned threads and is always stored as 64 bits.
type StartType struct {
	Kind       StartKind
	EntryPoint uint64
}

// MainThread returns the start type of the distinguished main thread.
func MainThread() StartType {
	return StartType{Kind: StartMainThread}
}

// Spawned returns the start type of a thread created by thread-spawn
// with the given guest entry point.
func Spawned(entryPoint uint64) StartType {
	return StartType{Kind: StartSpawned, EntryPoint: entryPoint}
}

// IsMain reports whether s is the main thread.
func (s StartType) IsMain() bool {
	return s.Kind == StartMainThread
}

func (s StartType) String() string {
	if s.Kind == StartMainThread {
		return "main"
	}
	return fmt.Sprintf("spawn(0x%x)", s.EntryPoint)
}

// MemoryLayout locates a thread's shadow stack in linear memory.
// The stack grows down from StackUpper towards StackLower.
type MemoryLayout struct {
	StackUpper uint64
	StackLower uint64
	GuardSize  uint64
	StackSize  uint64
}

// Contains reports whether addr lies within the stack region.
func (l MemoryLayout) Contains(addr uint64) bool {
	return addr >= l.StackLower && addr <= l.StackUpper
}
