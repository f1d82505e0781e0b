package effector

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	wasmjournal "github.com/wippyai/wasm-journal"
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/thread"
)

// Spawner creates threads during replay. thread.Manager implements it.
type Spawner interface {
	SpawnWithContext(ctx context.Context, req thread.SpawnRequest) (thread.Handle, error)
}

// Terminator is implemented by spawners that can end a replayed thread.
// Replay uses it for CloseThread entries.
type Terminator interface {
	Terminate(id wasmjournal.ThreadID, code uint32) error
}

// MainThreadReattacher restores the main thread from its snapshot. It is
// a separate procedure from spawning and is only called by Replay.
type MainThreadReattacher interface {
	ReattachMainThread(ctx context.Context, snap *journal.SetThread) error
}

// Option configures an Effector.
type Option func(*Effector)

// WithContinueOnError makes Replay record failed entries and keep going
// instead of stopping at the first failure.
func WithContinueOnError() Option {
	return func(e *Effector) { e.continueOnError = true }
}

// WithReattacher routes main thread snapshots seen by Replay to r.
func WithReattacher(r MainThreadReattacher) Option {
	return func(e *Effector) { e.reattacher = r }
}

// WithPollQueue sets the queue Replay pushes poll entries to. A fresh
// queue is created otherwise.
func WithPollQueue(q *PollQueue) Option {
	return func(e *Effector) { e.polls = q }
}

// WithMeter sets the meter for replay and capture instruments.
func WithMeter(m metric.Meter) Option {
	return func(e *Effector) { e.meter = m }
}

// Effector records thread and poll state to a journal and reconstructs
// it on replay.
type Effector struct {
	log     journal.Appender
	threads Spawner

	reattacher      MainThreadReattacher
	polls           *PollQueue
	continueOnError bool

	meter   metric.Meter
	metrics *metrics
}

// New creates an Effector. log may be nil for a replay-only effector and
// threads may be nil for a capture-only one.
func New(log journal.Appender, threads Spawner, opts ...Option) (*Effector, error) {
	e := &Effector{log: log, threads: threads}
	for _, opt := range opts {
		opt(e)
	}
	if e.polls == nil {
		e.polls = NewPollQueue()
	}
	m, err := newMetrics(e.meter)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCapture, errors.KindInvalidInput, err, "create effector metrics")
	}
	e.metrics = m
	return e, nil
}

// Polls returns the queue of poll entries collected by Replay.
func (e *Effector) Polls() *PollQueue {
	return e.polls
}
