package effector

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wippyai/wasm-journal/journal"
)

const instrumentationName = "github.com/wippyai/wasm-journal/effector"

type metrics struct {
	captures metric.Int64Counter
	replayed metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &metrics{}
	var err error

	m.captures, err = meter.Int64Counter("effector.captures",
		metric.WithDescription("Entries recorded by the capture path"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	m.replayed, err = meter.Int64Counter("effector.replayed",
		metric.WithDescription("Entries consumed by replay, by outcome"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) recordCapture(ctx context.Context, typ journal.EntryType) {
	m.captures.Add(ctx, 1, metric.WithAttributes(attribute.String("entry.type", typ.String())))
}

func (m *metrics) recordReplay(ctx context.Context, typ journal.EntryType, outcome Outcome) {
	m.replayed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entry.type", typ.String()),
		attribute.String("outcome", outcome.String()),
	))
}
