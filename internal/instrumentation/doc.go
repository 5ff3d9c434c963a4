// Package instrumentation provides OpenTelemetry metrics, tracing and audit
// logging for the assistant.
//
// A single Provider owns the meter and tracer providers and is configured
// through environment variables (see Config). Metrics cover orchestration
// runs, agent reasoning loops, tool bridge invocations, mailbox provider
// operations and model backend calls. The audit logger records every
// agent-initiated mailbox action with cardinality- and PII-aware attribute
// sets.
package instrumentation
