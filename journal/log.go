package journal

import (
	"context"
	"iter"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-journal/errors"
)

// Store is the durable sequence a Log writes through. Append must persist
// the record whole or not at all; Records yields records in append order.
type Store interface {
	Append(ctx context.Context, record []byte) error
	Records(ctx context.Context) iter.Seq2[[]byte, error]
}

// Appender accepts journal entries.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}

// Option configures a Log.
type Option func(*options)

type options struct {
	meter metric.Meter
}

// WithMeter sets the meter the Log's instruments are created from. The
// global meter provider is used otherwise.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// Log is the single logical append point of a journal. Appends from any
// number of goroutines are serialized; each entry reaches storage as one
// record.
type Log struct {
	store   Store
	metrics *metrics

	mu     sync.Mutex
	frozen bool
	count  uint64
}

var _ Appender = (*Log)(nil)

// New creates a Log over store.
func New(store Store, opts ...Option) (*Log, error) {
	if store == nil {
		return nil, errors.InvalidInput(errors.PhaseStorage, "nil store")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	m, err := newMetrics(o.meter)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStorage, errors.KindInvalidInput, err, "create journal metrics")
	}
	return &Log{store: store, metrics: m}, nil
}

// Append encodes e and writes it to storage. Cancellation is observed
// before the write; once the record is handed to storage the write runs
// to completion. Storage failures are returned as errors.ErrStorageIO and
// are not retried.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if e == nil {
		return errors.InvalidInput(errors.PhaseCapture, "nil entry")
	}
	typ := e.Type()

	data, err := MarshalEntry(e)
	if err != nil {
		l.metrics.recordError(ctx, typ, "encode")
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		l.metrics.recordError(ctx, typ, "frozen")
		return errors.Closed(errors.PhaseCapture, "journal")
	}
	if err := ctx.Err(); err != nil {
		l.metrics.recordError(ctx, typ, "canceled")
		return errors.Canceled(errors.PhaseCapture, err)
	}

	start := time.Now()
	if err := l.store.Append(context.WithoutCancel(ctx), data); err != nil {
		l.metrics.recordError(ctx, typ, "storage")
		Logger().Warn("journal append failed",
			zap.Stringer("type", typ),
			zap.Int("bytes", len(data)),
			zap.Error(err))
		if errors.Is(err, errors.ErrStorageIO) {
			return err
		}
		return errors.StorageIO("append", err)
	}
	took := time.Since(start)

	l.count++
	l.metrics.recordAppend(ctx, typ, len(data), took)
	Logger().Debug("journal append",
		zap.Stringer("type", typ),
		zap.Uint64("seq", l.count),
		zap.Int("bytes", len(data)),
		zap.Duration("took", took))
	return nil
}

// Len returns the number of entries appended through l.
func (l *Log) Len() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Freeze closes l to further appends. Iteration is unaffected.
func (l *Log) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (l *Log) Frozen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen
}

// Entries returns the stored entries in insertion order. The sequence is
// lazy and may be ranged over more than once.
func (l *Log) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return Decode(l.store.Records(ctx))
}

// Decode adapts a sequence of records into a sequence of entries. A
// record that fails to decode is yielded as an error with its index in
// the error path; iteration stops after it.
func Decode(records iter.Seq2[[]byte, error]) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		i := 0
		for rec, err := range records {
			if err != nil {
				if !errors.Is(err, errors.ErrStorageIO) {
					err = errors.StorageIO("read", err)
				}
				yield(nil, err)
				return
			}
			e, err := UnmarshalEntry(rec)
			if err != nil {
				yield(nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
					Path("journal", strconv.Itoa(i)).
					Value(i).
					Cause(err).
					Build())
				return
			}
			if !yield(e, nil) {
				return
			}
			i++
		}
	}
}
