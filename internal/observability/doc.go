// Package observability provides structured logging and Prometheus metrics
// for the orchestrator service.
package observability
