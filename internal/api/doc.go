// Package api hosts the HTTP server, middleware, and handlers that expose a
// running monitor. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/state for the monitor status and the rendered page.
//   - POST /v1/next-step to activate the next-step control.
package api
