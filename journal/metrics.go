package journal

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/wippyai/wasm-journal/journal"

type metrics struct {
	appends  metric.Int64Counter
	bytes    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &metrics{}
	var err error

	m.appends, err = meter.Int64Counter("journal.appends",
		metric.WithDescription("Entries appended to the journal"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	m.bytes, err = meter.Int64Counter("journal.append.bytes",
		metric.WithDescription("Encoded bytes appended to the journal"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	m.errors, err = meter.Int64Counter("journal.append.errors",
		metric.WithDescription("Appends rejected or failed by storage"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram("journal.append.duration",
		metric.WithDescription("Time spent in storage per append"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recordAppend(ctx context.Context, typ EntryType, size int, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("entry.type", typ.String()))
	m.appends.Add(ctx, 1, attrs)
	m.bytes.Add(ctx, int64(size), attrs)
	m.duration.Record(ctx, took.Seconds(), attrs)
}

func (m *metrics) recordError(ctx context.Context, typ EntryType, reason string) {
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entry.type", typ.String()),
		attribute.String("reason", reason),
	))
}
