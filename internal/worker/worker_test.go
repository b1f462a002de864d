package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/hn-harvester/internal/hn"
	"github.com/JakeFAU/hn-harvester/internal/progress"
	"github.com/JakeFAU/hn-harvester/internal/queue/memory"
)

func TestWorkerDrainsQueueInReverseOrder(t *testing.T) {
	t.Parallel()

	queue := memory.NewStack([]hn.ID{1, 2, 3})
	items := newFakeItems()
	reporter := &fakeReporter{}
	emitter := &recordingEmitter{}
	w := New(5, queue, items, reporter, emitter, fakeClock{}, Config{Site: "hn.test", RunID: [16]byte{1}}, nil)

	out := w.Run(context.Background())

	require.Equal(t, StateTerminatedNormal, out.State)
	require.Equal(t, 5, out.WorkerID)
	require.Equal(t, 3, out.Succeeded)
	require.NoError(t, out.LastErr)
	require.Equal(t, []hn.ID{3, 2, 1}, reporter.resultIDs())
	require.Empty(t, reporter.diagnostics)
	for _, line := range reporter.results {
		require.Equal(t, 5, line.workerID)
	}

	stages := emitter.stages()
	require.Equal(t, []progress.Stage{
		progress.StageFetchDone,
		progress.StageFetchDone,
		progress.StageFetchDone,
		progress.StageWorkerExit,
	}, stages)
	for _, evt := range emitter.events {
		require.NoError(t, evt.Validate())
	}
	require.Equal(t, "terminated_normal", emitter.events[3].Outcome)
}

func TestWorkerEmptyQueueTerminatesNormally(t *testing.T) {
	t.Parallel()

	items := newFakeItems()
	w := New(1, memory.NewStack(nil), items, &fakeReporter{}, nil, fakeClock{}, Config{}, zap.NewNop())

	out := w.Run(context.Background())

	require.Equal(t, Outcome{WorkerID: 1, State: StateTerminatedNormal}, out)
	require.Zero(t, items.callCount())
}

func TestWorkerMalformedItemWritesDiagnosticAndStops(t *testing.T) {
	t.Parallel()

	queue := memory.NewStack([]hn.ID{10, 11, 12})
	items := newFakeItems()
	items.errs[11] = fmt.Errorf("item 11: %w: missing \"title\"", hn.ErrMalformed)
	reporter := &fakeReporter{}
	w := New(2, queue, items, reporter, nil, fakeClock{}, Config{Site: "hn.test"}, nil)

	out := w.Run(context.Background())

	require.Equal(t, StateTerminatedError, out.State)
	require.Equal(t, 1, out.Succeeded)
	require.Equal(t, 1, out.Malformed)
	require.Zero(t, out.TransportFailed)
	require.ErrorIs(t, out.LastErr, hn.ErrMalformed)
	require.Equal(t, []hn.ID{12}, reporter.resultIDs())
	require.Len(t, reporter.diagnostics, 1)
	require.Equal(t, hn.ID(11), reporter.diagnostics[0].id)
	require.Equal(t, 1, queue.Len(), "remaining id stays queued for other workers")
}

func TestWorkerTransportFailureLogsWithoutDiagnostic(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	queue := memory.NewStack([]hn.ID{3})
	items := newFakeItems()
	items.errs[3] = fmt.Errorf("fetch item 3: %w: %w", hn.ErrTransport, context.DeadlineExceeded)
	reporter := &fakeReporter{}
	emitter := &recordingEmitter{}
	w := New(3, queue, items, reporter, emitter, fakeClock{}, Config{Site: "hn.test", RunID: [16]byte{9}}, zap.New(core))

	out := w.Run(context.Background())

	require.Equal(t, StateTerminatedError, out.State)
	require.Equal(t, 1, out.TransportFailed)
	require.ErrorIs(t, out.LastErr, hn.ErrTransport)
	require.Empty(t, reporter.results)
	require.Empty(t, reporter.diagnostics)
	require.Zero(t, queue.Len())

	entries := logs.FilterMessage("item fetch failed").All()
	require.Len(t, entries, 1)
	require.EqualValues(t, 3, entries[0].ContextMap()["worker_id"])

	require.Equal(t, []progress.Stage{progress.StageFetchError, progress.StageWorkerExit}, emitter.stages())
	require.Equal(t, "transport", emitter.events[0].Outcome)
	require.Equal(t, uint64(3), emitter.events[0].ItemID)
}

func TestWorkerReportFailureEndsRun(t *testing.T) {
	t.Parallel()

	queue := memory.NewStack([]hn.ID{1, 2})
	reporter := &fakeReporter{err: errors.New("broken pipe")}
	w := New(1, queue, newFakeItems(), reporter, nil, fakeClock{}, Config{}, nil)

	out := w.Run(context.Background())

	require.Equal(t, StateTerminatedError, out.State)
	require.Zero(t, out.Succeeded)
	require.EqualError(t, out.LastErr, "broken pipe")
	require.Equal(t, 1, queue.Len())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	cases := map[State]string{
		StateRunning:          "running",
		StateDraining:         "draining",
		StateTerminatedNormal: "terminated_normal",
		StateTerminatedError:  "terminated_error",
		State(42):             "unknown",
	}
	for state, want := range cases {
		require.Equal(t, want, state.String())
	}
}

type fakeItems struct {
	mu    sync.Mutex
	errs  map[hn.ID]error
	calls int
}

func newFakeItems() *fakeItems {
	return &fakeItems{errs: map[hn.ID]error{}}
}

func (f *fakeItems) FetchItem(_ context.Context, id hn.ID) (hn.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[id]; ok {
		return hn.FetchResult{}, err
	}
	return hn.FetchResult{ID: id, Title: fmt.Sprintf("story %d", id)}, nil
}

func (f *fakeItems) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type reportedLine struct {
	id       hn.ID
	title    string
	cause    error
	workerID int
}

type fakeReporter struct {
	mu          sync.Mutex
	err         error
	results     []reportedLine
	diagnostics []reportedLine
}

func (r *fakeReporter) Result(res hn.FetchResult, workerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.results = append(r.results, reportedLine{id: res.ID, title: res.Title, workerID: workerID})
	return nil
}

func (r *fakeReporter) Diagnostic(id hn.ID, cause error, workerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagnostics = append(r.diagnostics, reportedLine{id: id, cause: cause, workerID: workerID})
	return nil
}

func (r *fakeReporter) resultIDs() []hn.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]hn.ID, 0, len(r.results))
	for _, line := range r.results {
		ids = append(ids, line.id)
	}
	return ids
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *recordingEmitter) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *recordingEmitter) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

type fakeClock struct{}

func (fakeClock) Now() time.Time {
	return time.Unix(1_700_000_000, 0).UTC()
}
