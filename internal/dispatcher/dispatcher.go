// Package dispatcher runs a fixed pool of workers over a shared queue and
// joins them all before returning.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/hn-harvester/internal/worker"
)

// ErrWorkersFailed reports that at least one worker ended on a failed item.
var ErrWorkersFailed = errors.New("workers failed")

// Backlog reports how many identifiers remain unclaimed.
type Backlog interface {
	Len() int
}

// Summary aggregates worker outcomes for a completed pool run.
type Summary struct {
	Workers          int
	Succeeded        int
	Malformed        int
	TransportFailed  int
	TerminatedNormal int
	TerminatedError  int
	// Unclaimed counts identifiers still queued after every worker exited.
	Unclaimed int
	Outcomes  []worker.Outcome
}

// Failed returns the number of identifiers lost to item failures.
func (s Summary) Failed() int {
	return s.Malformed + s.TransportFailed
}

// Err returns ErrWorkersFailed, wrapped with counts, when any item failed.
func (s Summary) Err() error {
	if s.Failed() == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d malformed, %d transport", ErrWorkersFailed, s.Malformed, s.TransportFailed)
}

// Dispatcher fans queue work out to a pool of workers.
type Dispatcher struct {
	queue   Backlog
	workers []*worker.Worker
}

// New creates a Dispatcher. queue may be nil when the caller does not track backlog.
func New(queue Backlog, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts every worker and blocks until all of them have terminated,
// normally or not. One worker's failure never stops the others.
func (d *Dispatcher) Run(ctx context.Context) Summary {
	outcomes := make([]worker.Outcome, len(d.workers))
	var wg sync.WaitGroup
	for i, w := range d.workers {
		wg.Add(1)
		go func(slot int, wk *worker.Worker) {
			defer wg.Done()
			outcomes[slot] = wk.Run(ctx)
		}(i, w)
	}
	wg.Wait()
	return d.summarize(outcomes)
}

func (d *Dispatcher) summarize(outcomes []worker.Outcome) Summary {
	sum := Summary{Workers: len(outcomes), Outcomes: outcomes}
	for _, out := range outcomes {
		sum.Succeeded += out.Succeeded
		sum.Malformed += out.Malformed
		sum.TransportFailed += out.TransportFailed
		switch out.State {
		case worker.StateTerminatedNormal:
			sum.TerminatedNormal++
		case worker.StateTerminatedError:
			sum.TerminatedError++
		}
	}
	if d.queue != nil {
		sum.Unclaimed = d.queue.Len()
	}
	return sum
}
