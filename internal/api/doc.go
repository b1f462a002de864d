// Package api hosts the optional HTTP listener exposed while a harvest runs.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for a JSON snapshot of the current run.
package api
