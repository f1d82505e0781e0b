package effector

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	wasmjournal "github.com/wippyai/wasm-journal"
	jerrors "github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/thread"
	"github.com/wippyai/wasm-journal/wire"
)

type reattacher struct {
	snaps []*journal.SetThread
	err   error
}

func (r *reattacher) ReattachMainThread(_ context.Context, s *journal.SetThread) error {
	r.snaps = append(r.snaps, s)
	return r.err
}

// recordSession captures a short session: a main thread snapshot, a
// spawned thread, one poll, and the spawned thread's exit.
func recordSession(t *testing.T, e *Effector) {
	t.Helper()
	ctx := context.Background()
	if err := e.SaveThreadState(ctx, 0, []byte{1}, []byte{2}, nil, wasmjournal.MainThread(), testLayout, wasmjournal.Width32); err != nil {
		t.Fatal(err)
	}
	if err := e.SaveThreadState(ctx, 1, []byte{3}, []byte{4}, []byte{5}, wasmjournal.Spawned(0x40), testLayout, wasmjournal.Width32); err != nil {
		t.Fatal(err)
	}
	sub := wire.Subscription{UserData: 1, Event: wire.Clock{ID: wire.ClockMonotonic, Timeout: 500, Precision: 1}}
	if err := e.SavePoll(ctx, 1, []wire.Subscription{sub}, []uint32{0}, []wire.Event{wire.EventFor(sub)}); err != nil {
		t.Fatal(err)
	}
	if err := e.SaveThreadExit(ctx, 1, 3); err != nil {
		t.Fatal(err)
	}
}

func TestReplaySession(t *testing.T) {
	log := newLog(t)
	recordSession(t, newEffector(t, log, nil))
	log.Freeze()

	launcher := &recordingLauncher{}
	m := thread.NewManager(launcher)
	ra := &reattacher{}
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	e := newEffector(t, nil, m, WithReattacher(ra), WithMeter(meter))

	report, err := e.Replay(context.Background(), log.Entries(context.Background()))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if report.Succeeded != 3 || report.Discarded != 1 || report.Failed != 0 {
		t.Errorf("report: %+v", report)
	}
	want := []Outcome{OutcomeDiscarded, OutcomeSuccess, OutcomeSuccess, OutcomeSuccess}
	for i, rep := range report.Entries {
		if rep.Index != i || rep.Outcome != want[i] {
			t.Errorf("entry %d: index %d outcome %s", i, rep.Index, rep.Outcome)
		}
	}
	if report.Entries[1].Handle == 0 {
		t.Error("spawned entry has no handle")
	}
	if len(ra.snaps) != 1 || ra.snaps[0].ID != 0 {
		t.Error("main thread snapshot not handed to reattacher")
	}
	if len(launcher.reqs) != 1 || launcher.reqs[0].EntryPoint != 0x40 {
		t.Errorf("launched: %+v", launcher.reqs)
	}
	if m.Table().Len() != 0 {
		t.Error("exited thread still live")
	}
	p, ok := e.Polls().Pop(1)
	if !ok || len(p.Events) != 1 || p.Events[0].UserData != 1 {
		t.Errorf("poll not queued: %+v", p)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "effector.replayed" {
				continue
			}
			for _, dp := range md.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 4 {
		t.Errorf("effector.replayed = %d, want 4", total)
	}
}

func TestReplayStopsOnFirstError(t *testing.T) {
	log := newLog(t)
	recordSession(t, newEffector(t, log, nil))

	cause := errors.New("boom")
	m := thread.NewManager(&recordingLauncher{err: cause})
	e := newEffector(t, nil, m)

	report, err := e.Replay(context.Background(), log.Entries(context.Background()))
	if !errors.Is(err, cause) {
		t.Fatalf("got %v", err)
	}
	if len(report.Entries) != 2 || report.Failed != 1 {
		t.Errorf("report: %+v", report)
	}
	if e.Polls().Len() != 0 {
		t.Error("entries after the failure were consumed")
	}
}

func TestReplayContinueOnError(t *testing.T) {
	log := newLog(t)
	recordSession(t, newEffector(t, log, nil))

	m := thread.NewManager(&recordingLauncher{err: errors.New("boom")})
	e := newEffector(t, nil, m, WithContinueOnError())

	report, err := e.Replay(context.Background(), log.Entries(context.Background()))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	// The spawn fails, so the exit finds no live thread.
	if report.Failed != 2 || report.Succeeded != 1 || report.Discarded != 1 {
		t.Errorf("report: %+v", report)
	}
	if !errors.Is(report.Entries[3].Err, &jerrors.Error{Kind: jerrors.KindNotFound}) {
		t.Errorf("exit error: %v", report.Entries[3].Err)
	}
}

func TestReplayWithoutTerminator(t *testing.T) {
	e := newEffector(t, nil, spawnerFunc(func(context.Context, thread.SpawnRequest) (thread.Handle, error) {
		return 1, nil
	}))
	seq := func(yield func(journal.Entry, error) bool) {
		yield(&journal.CloseThread{ID: 1}, nil)
	}
	report, err := e.Replay(context.Background(), seq)
	if err != nil {
		t.Fatal(err)
	}
	if report.Discarded != 1 {
		t.Errorf("report: %+v", report)
	}
}

func TestReplaySequenceError(t *testing.T) {
	bad := jerrors.InvalidData(jerrors.PhaseDecode, []string{"journal", "1"}, "truncated")
	seq := func(yield func(journal.Entry, error) bool) {
		if !yield(&journal.PollOneoff{Thread: 1}, nil) {
			return
		}
		yield(nil, bad)
	}
	e := newEffector(t, nil, nil, WithContinueOnError())
	report, err := e.Replay(context.Background(), seq)
	if !errors.Is(err, bad) {
		t.Fatalf("got %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("report: %+v", report)
	}
}

func TestReplayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq := func(yield func(journal.Entry, error) bool) {
		yield(&journal.PollOneoff{}, nil)
	}
	e := newEffector(t, nil, nil)
	report, err := e.Replay(ctx, seq)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
	if len(report.Entries) != 0 || e.Polls().Len() != 0 {
		t.Error("entry consumed after cancellation")
	}
}

func TestReattacherError(t *testing.T) {
	ra := &reattacher{err: errors.New("no main instance")}
	e := newEffector(t, nil, nil, WithReattacher(ra))
	seq := func(yield func(journal.Entry, error) bool) {
		yield(&journal.SetThread{Start: wasmjournal.MainThread(), Width: wasmjournal.Width32}, nil)
	}
	report, err := e.Replay(context.Background(), seq)
	if !errors.Is(err, ra.err) || report.Failed != 1 {
		t.Errorf("got %v, report %+v", err, report)
	}
}
