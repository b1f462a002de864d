// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that workers and the pool use to report harvest progress. Events
// are batched on a background goroutine and fanned out to pluggable sinks such
// as structured logs or Prometheus collectors.
package progress
