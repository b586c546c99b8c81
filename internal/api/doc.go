// Package api hosts the HTTP server, middleware, and handlers for the quiz
// solver. Notable routes:
//   - GET / for a service banner.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /quiz_endpoint to run one quiz chain synchronously.
package api
