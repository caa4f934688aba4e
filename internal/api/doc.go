// Package api hosts the HTTP server, middleware, and REST handlers of the
// crawl service. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawls to submit a run, GET /v1/crawls/{run_id} to read it.
//   - GET /v1/profile for the accumulated method timings.
package api
