package storage

import (
	"context"
	"iter"
	"sync"

	"github.com/wippyai/wasm-journal/errors"
)

// Backend is a durable, ordered sequence of opaque records.
type Backend interface {
	// Append persists record as a single unit.
	Append(ctx context.Context, record []byte) error
	// Records yields all records in append order. The returned sequence
	// may be ranged over more than once.
	Records(ctx context.Context) iter.Seq2[[]byte, error]
	// Close releases the backend. Appends after Close fail.
	Close() error
}

// Memory keeps records in process memory.
type Memory struct {
	mu      sync.RWMutex
	records [][]byte
	closed  bool
}

var _ Backend = (*Memory)(nil)

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Canceled(errors.PhaseStorage, err)
	}
	rec := make([]byte, len(record))
	copy(rec, record)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.Closed(errors.PhaseStorage, "memory backend")
	}
	m.records = append(m.records, rec)
	return nil
}

// Records yields the records present when iteration starts.
func (m *Memory) Records(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		m.mu.RLock()
		snapshot := m.records[:len(m.records):len(m.records)]
		m.mu.RUnlock()

		for _, rec := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(nil, errors.Canceled(errors.PhaseStorage, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
