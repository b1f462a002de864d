// Package worker implements the pop, fetch and report loop run by each pool member.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hn-harvester/internal/hn"
	"github.com/JakeFAU/hn-harvester/internal/metrics"
	"github.com/JakeFAU/hn-harvester/internal/progress"
)

// State tracks where a Worker is in its lifecycle.
type State int

// Worker lifecycle states.
const (
	StateRunning State = iota
	StateDraining
	StateTerminatedNormal
	StateTerminatedError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminatedNormal:
		return "terminated_normal"
	case StateTerminatedError:
		return "terminated_error"
	default:
		return "unknown"
	}
}

// Config carries per-run labels attached to events.
type Config struct {
	Site  string
	RunID [16]byte
}

// Outcome summarizes one Worker's run once it reaches a terminal state.
type Outcome struct {
	WorkerID        int
	State           State
	Succeeded       int
	Malformed       int
	TransportFailed int
	LastErr         error
}

// Worker pops identifiers from a shared queue and reports each fetched item.
// A Worker is single-use; Run must be called at most once.
type Worker struct {
	id       int
	queue    hn.Queue
	items    hn.ItemSource
	reporter hn.Reporter
	emitter  progress.Emitter
	clock    hn.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. id is the 1-based index printed on result lines.
func New(
	id int,
	queue hn.Queue,
	items hn.ItemSource,
	reporter hn.Reporter,
	emitter progress.Emitter,
	clock hn.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if emitter == nil {
		emitter = progress.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:       id,
		queue:    queue,
		items:    items,
		reporter: reporter,
		emitter:  emitter,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(zap.Int("worker_id", id)),
	}
}

// ID returns the worker's 1-based index.
func (w *Worker) ID() int {
	return w.id
}

// Run loops until the queue is empty or an item fails. A failed item ends
// this Worker only; the identifier it held is not returned to the queue.
func (w *Worker) Run(ctx context.Context) Outcome {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	started := w.clock.Now()
	out := Outcome{WorkerID: w.id, State: StateRunning}
	for out.State == StateRunning {
		id, found := w.queue.Pop()
		if !found {
			out.State = StateDraining
			w.logger.Debug("queue drained", zap.Stringer("state", out.State))
			out.State = StateTerminatedNormal
			break
		}
		w.process(ctx, id, &out)
	}

	metrics.ObserveWorkerTermination(out.State.String())
	w.emit(progress.Event{
		Stage:   progress.StageWorkerExit,
		Outcome: out.State.String(),
		Dur:     nonNegative(w.clock.Now().Sub(started)),
	})
	w.logger.Debug("worker exited",
		zap.Stringer("state", out.State),
		zap.Int("succeeded", out.Succeeded),
	)
	return out
}

func (w *Worker) process(ctx context.Context, id hn.ID, out *Outcome) {
	start := w.clock.Now()
	res, err := w.items.FetchItem(ctx, id)
	dur := nonNegative(w.clock.Now().Sub(start))

	switch {
	case err == nil:
		metrics.ObserveItem(metrics.OutcomeSuccess, dur)
		w.emitFetch(progress.StageFetchDone, id, metrics.OutcomeSuccess, dur, "")
		if werr := w.reporter.Result(res, w.id); werr != nil {
			w.logger.Error("report result failed", zap.Stringer("item_id", id), zap.Error(werr))
			out.LastErr = werr
			out.State = StateTerminatedError
			return
		}
		out.Succeeded++
	case errors.Is(err, hn.ErrMalformed):
		out.Malformed++
		out.LastErr = err
		out.State = StateTerminatedError
		metrics.ObserveItem(metrics.OutcomeMalformed, dur)
		w.emitFetch(progress.StageFetchError, id, metrics.OutcomeMalformed, dur, err.Error())
		if werr := w.reporter.Diagnostic(id, err, w.id); werr != nil {
			w.logger.Error("report diagnostic failed", zap.Stringer("item_id", id), zap.Error(werr))
		}
	default:
		out.TransportFailed++
		out.LastErr = err
		out.State = StateTerminatedError
		metrics.ObserveItem(metrics.OutcomeTransport, dur)
		w.emitFetch(progress.StageFetchError, id, metrics.OutcomeTransport, dur, err.Error())
		w.logger.Warn("item fetch failed", zap.Stringer("item_id", id), zap.Error(err))
	}
}

func (w *Worker) emitFetch(stage progress.Stage, id hn.ID, outcome string, dur time.Duration, note string) {
	w.emit(progress.Event{
		Stage:   stage,
		Site:    w.cfg.Site,
		ItemID:  uint64(id),
		Outcome: outcome,
		Dur:     dur,
		Note:    note,
	})
}

func (w *Worker) emit(evt progress.Event) {
	evt.RunID = w.cfg.RunID
	evt.TS = w.clock.Now()
	evt.WorkerID = w.id
	w.emitter.Emit(evt)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
