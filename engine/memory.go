package engine

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	wasmjournal "github.com/wippyai/wasm-journal"
)

// Memory adapts a wazero memory to the journal's Memory interface.
type Memory struct {
	mem api.Memory
}

var (
	_ wasmjournal.Memory      = (*Memory)(nil)
	_ wasmjournal.MemorySizer = (*Memory)(nil)
)

// NewMemory wraps mem.
func NewMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

func outOfRange(offset, length uint32, size uint32) error {
	return fmt.Errorf("memory: range [%d, %d) out of bounds (size %d)", offset, uint64(offset)+uint64(length), size)
}

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	view, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, outOfRange(offset, length, m.mem.Size())
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return outOfRange(offset, uint32(len(data)), m.mem.Size())
	}
	return nil
}

func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, outOfRange(offset, 2, m.mem.Size())
	}
	return v, nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, outOfRange(offset, 4, m.mem.Size())
	}
	return v, nil
}

func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, outOfRange(offset, 8, m.mem.Size())
	}
	return v, nil
}

func (m *Memory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return outOfRange(offset, 2, m.mem.Size())
	}
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return outOfRange(offset, 4, m.mem.Size())
	}
	return nil
}

func (m *Memory) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return outOfRange(offset, 8, m.mem.Size())
	}
	return nil
}
