// Package server holds the gateway's shared runtime state: the server
// context wiring tool handlers to the orchestrator, the dedicated Prometheus
// metrics listener, and the health check endpoints.
package server
