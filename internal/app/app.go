// Package app initializes and holds long-lived services for one harvest run:
// the logger, the progress hub and the optional metrics listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	googleuuid "github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/hn-harvester/internal/api"
	"github.com/JakeFAU/hn-harvester/internal/clock/system"
	"github.com/JakeFAU/hn-harvester/internal/config"
	"github.com/JakeFAU/hn-harvester/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/hn-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/hn-harvester/internal/hnapi"
	"github.com/JakeFAU/hn-harvester/internal/id/uuid"
	"github.com/JakeFAU/hn-harvester/internal/logging"
	"github.com/JakeFAU/hn-harvester/internal/metrics"
	"github.com/JakeFAU/hn-harvester/internal/progress"
	"github.com/JakeFAU/hn-harvester/internal/progress/sinks"
	"github.com/JakeFAU/hn-harvester/internal/queue/memory"
	"github.com/JakeFAU/hn-harvester/internal/report"
	"github.com/JakeFAU/hn-harvester/internal/worker"
)

const shutdownTimeout = 5 * time.Second

// App holds the shared services of a single harvest run. It is built once by
// the root command and closed after the run returns.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	hub      *progress.Hub
	clock    system.Clock
	ids      uuid.Generator
	runID    googleuuid.UUID
	out      io.Writer
	errOut   io.Writer
	registry prometheus.Registerer

	server   *http.Server
	listener net.Listener

	mu      sync.Mutex
	phase   string
	listed  int
	workers int
	stack   *memory.Stack

	closeOnce sync.Once
}

// Option customizes App construction.
type Option func(*App)

// WithOutput redirects result lines to out and diagnostics to errOut.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithLogger supplies a logger instead of building one from config.
func WithLogger(logger *zap.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithRegisterer registers progress collectors against reg instead of the
// default Prometheus registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) {
		a.registry = reg
	}
}

// New builds the App. It fails fast if the logger, the progress sinks or the
// metrics listener cannot be initialized.
func New(_ context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		clock:  system.New(),
		ids:    uuid.New(),
		out:    os.Stdout,
		errOut: os.Stderr,
		phase:  api.PhaseStarting,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		logger, err := logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}

	runID, err := a.ids.NewRunID()
	if err != nil {
		return nil, err
	}
	a.runID = runID
	a.logger = a.logger.With(zap.String("run_id", runID.String()))

	metrics.Init()
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("init progress sinks: %w", err)
	}
	progressSinks := []progress.Sink{promSink}
	if cfg.Progress.LogEvents {
		progressSinks = append(progressSinks, sinks.NewLogSink(a.logger.Named("progress")))
	}
	a.hub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress")}, progressSinks...)

	if cfg.Metrics.Addr != "" {
		if err := a.startServer(cfg.Metrics.Addr); err != nil {
			a.closeHub()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) startServer(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	apiServer := api.NewServer(a, a.ids, a.logger.Named("api"))
	a.listener = ln
	a.server = &http.Server{
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// RunID returns the identifier attached to this run's progress events.
func (a *App) RunID() googleuuid.UUID {
	return a.runID
}

// MetricsAddr returns the bound metrics listener address, or "" when disabled.
func (a *App) MetricsAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// RunStatus implements api.StatusProvider.
func (a *App) RunStatus() api.RunStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := api.RunStatus{
		RunID:   a.runID.String(),
		Phase:   a.phase,
		Listed:  a.listed,
		Workers: a.workers,
	}
	if a.stack != nil {
		status.Remaining = a.stack.Len()
	}
	return status
}

func (a *App) setPhase(phase string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.phase = phase
}

// Harvest fetches the listing once, loads the stack and runs the worker pool
// until every worker has terminated. A listing failure aborts before any
// worker starts. Item failures never abort the run; they are counted in the
// Summary and, when pool.fail_on_error is set, turned into the returned error.
func (a *App) Harvest(ctx context.Context) (dispatcher.Summary, error) {
	started := a.clock.Now()
	fetcherCfg := collyfetcher.Config{
		UserAgent:          a.cfg.HTTP.UserAgent,
		Timeout:            a.cfg.Timeout(),
		InsecureSkipVerify: a.cfg.HTTP.InsecureSkipVerify,
	}
	clientCfg := hnapi.Config{
		ListingURL:  a.cfg.Listing.URL,
		ItemBaseURL: a.cfg.Item.BaseURL,
		ItemSuffix:  a.cfg.Item.Suffix,
	}
	if a.cfg.HTTP.InsecureSkipVerify {
		a.logger.Warn("TLS certificate verification disabled")
	}

	a.setPhase(api.PhaseListing)
	listingFetcher := collyfetcher.New(fetcherCfg)
	ids, err := hnapi.NewClient(listingFetcher, clientCfg).ListIDs(ctx)
	listingFetcher.Close()
	if err != nil {
		a.setPhase(api.PhaseFailed)
		return dispatcher.Summary{}, fmt.Errorf("list identifiers: %w", err)
	}
	metrics.SetListingSize(len(ids))
	a.logger.Info("listing fetched", zap.Int("ids", len(ids)), zap.String("url", a.cfg.Listing.URL))

	stack := memory.NewStack(ids)
	sink := report.NewSink(a.out, a.errOut)
	site := metrics.SanitizeSite(a.cfg.Item.BaseURL)
	runID := progress.UUIDToBytes(a.runID)
	workerLogger := a.logger.Named("worker")

	workers := make([]*worker.Worker, 0, a.cfg.Pool.Size)
	fetchers := make([]*collyfetcher.Fetcher, 0, a.cfg.Pool.Size)
	defer func() {
		for _, f := range fetchers {
			f.Close()
		}
	}()
	for i := 1; i <= a.cfg.Pool.Size; i++ {
		f := collyfetcher.New(fetcherCfg)
		fetchers = append(fetchers, f)
		workers = append(workers, worker.New(
			i,
			stack,
			hnapi.NewClient(f, clientCfg),
			sink,
			a.hub,
			a.clock,
			worker.Config{Site: site, RunID: runID},
			workerLogger,
		))
	}

	a.mu.Lock()
	a.listed = len(ids)
	a.workers = len(workers)
	a.stack = stack
	a.phase = api.PhaseRunning
	a.mu.Unlock()

	a.hub.Emit(progress.Event{RunID: runID, TS: a.clock.Now(), Stage: progress.StageRunStart, Count: len(ids)})
	summary := dispatcher.New(stack, workers).Run(ctx)
	elapsed := a.clock.Since(started)
	a.hub.Emit(progress.Event{
		RunID: runID,
		TS:    a.clock.Now(),
		Stage: progress.StageRunDone,
		Count: summary.Succeeded,
		Dur:   elapsed,
	})
	a.setPhase(api.PhaseDone)

	a.logger.Info("harvest finished",
		zap.Int("listed", len(ids)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("malformed", summary.Malformed),
		zap.Int("transport_failed", summary.TransportFailed),
		zap.Int("unclaimed", summary.Unclaimed),
		zap.Duration("elapsed", elapsed),
	)
	if a.cfg.Pool.FailOnError {
		return summary, summary.Err()
	}
	return summary, nil
}

// Close stops the metrics listener, drains the progress hub and flushes the
// logger. Safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
			cancel()
		}
		a.closeHub()
		// Sync on a terminal stderr returns EINVAL on some platforms.
		_ = a.logger.Sync()
	})
}

func (a *App) closeHub() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}
}
