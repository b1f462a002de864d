package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/hn-harvester/internal/progress"
)

// PrometheusSink exports run-level progress via Prometheus: runs started and
// completed, run wall time, fetch completions per site and outcome, and
// worker exits per terminal state.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsRunning   prometheus.Gauge
	runRuntime    prometheus.Histogram
	runListing    prometheus.Histogram

	fetchEvents   *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	workerExits   *prometheus.CounterVec
	workerLife    prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_runs_started_total",
			Help: "Total harvest runs that have started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvester_runs_completed_total",
			Help: "Total harvest runs whose pool has joined.",
		}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_runs_running",
			Help: "Current number of running harvest runs.",
		}),
		runRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_runtime_seconds",
			Help:    "Wall time per completed harvest run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		runListing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_run_listing_ids",
			Help:    "Identifiers listed per harvest run.",
			Buckets: []float64{0, 10, 50, 100, 250, 500, 1000},
		}),
		fetchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_fetch_events_total",
			Help: "Item fetch completions partitioned by site and outcome.",
		}, []string{"site", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvester_fetch_event_duration_seconds",
			Help:    "Item fetch duration partitioned by site and outcome.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"site", "outcome"}),
		workerExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_worker_exits_total",
			Help: "Worker exits partitioned by terminal state.",
		}, []string{"state"}),
		workerLife: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_worker_lifetime_seconds",
			Help:    "Time from worker start to terminal state.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.runListing,
		s.fetchEvents,
		s.fetchDuration,
		s.workerExits,
		s.workerLife,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.runsRunning.Inc()
		s.runListing.Observe(float64(evt.Count))
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		s.runsRunning.Dec()
		if evt.Dur > 0 {
			s.runRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchDone, progress.StageFetchError:
		s.fetchEvents.WithLabelValues(evt.Site, evt.Outcome).Inc()
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(evt.Site, evt.Outcome).Observe(evt.Dur.Seconds())
		}
	case progress.StageWorkerExit:
		s.workerExits.WithLabelValues(evt.Outcome).Inc()
		if evt.Dur > 0 {
			s.workerLife.Observe(evt.Dur.Seconds())
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
