// Package api hosts the operator HTTP server that runs beside a crawl.
// Routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/run for the run ID and counts of the crawl in progress.
package api
