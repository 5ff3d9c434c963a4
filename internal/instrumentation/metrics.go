package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrKind      = "kind"
	attrStatus    = "status"
	attrRole      = "role"
	attrTool      = "tool"
	attrOperation = "operation"
	attrErrKind   = "err_kind"
	attrRequester = "requester"
)

// Metrics provides methods for recording observability metrics. The zero
// value is a no-op recorder.
type Metrics struct {
	// Orchestration metrics
	orchestrationsTotal   metric.Int64Counter
	orchestrationDuration metric.Float64Histogram
	activeRuns            metric.Int64UpDownCounter

	// Agent metrics
	agentTurnsTotal metric.Int64Counter
	agentDuration   metric.Float64Histogram

	// Tool bridge metrics
	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	// Mailbox provider metrics
	providerOperationsTotal   metric.Int64Counter
	providerOperationDuration metric.Float64Histogram

	// Model backend metrics
	modelCallsTotal   metric.Int64Counter
	modelCallDuration metric.Float64Histogram

	// detailedLabels controls whether high-cardinality labels are included
	detailedLabels bool
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{
		detailedLabels: detailedLabels,
	}

	var err error

	m.orchestrationsTotal, err = meter.Int64Counter(
		"orchestrations_total",
		metric.WithDescription("Total number of orchestration runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrations_total counter: %w", err)
	}

	m.orchestrationDuration, err = meter.Float64Histogram(
		"orchestration_duration_seconds",
		metric.WithDescription("End-to-end orchestration run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 120.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestration_duration_seconds histogram: %w", err)
	}

	m.activeRuns, err = meter.Int64UpDownCounter(
		"active_runs",
		metric.WithDescription("Number of orchestration runs currently in flight"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_runs gauge: %w", err)
	}

	m.agentTurnsTotal, err = meter.Int64Counter(
		"agent_turns_total",
		metric.WithDescription("Total number of agent reasoning turns"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_turns_total counter: %w", err)
	}

	m.agentDuration, err = meter.Float64Histogram(
		"agent_duration_seconds",
		metric.WithDescription("Per-agent reasoning loop duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_duration_seconds histogram: %w", err)
	}

	m.toolInvocationsTotal, err = meter.Int64Counter(
		"tool_invocations_total",
		metric.WithDescription("Total number of tool bridge invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_invocations_total counter: %w", err)
	}

	m.toolDuration, err = meter.Float64Histogram(
		"tool_duration_seconds",
		metric.WithDescription("Tool bridge invocation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool_duration_seconds histogram: %w", err)
	}

	m.providerOperationsTotal, err = meter.Int64Counter(
		"provider_operations_total",
		metric.WithDescription("Total number of mailbox provider operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_operations_total counter: %w", err)
	}

	m.providerOperationDuration, err = meter.Float64Histogram(
		"provider_operation_duration_seconds",
		metric.WithDescription("Mailbox provider operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider_operation_duration_seconds histogram: %w", err)
	}

	m.modelCallsTotal, err = meter.Int64Counter(
		"model_calls_total",
		metric.WithDescription("Total number of model backend calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model_calls_total counter: %w", err)
	}

	m.modelCallDuration, err = meter.Float64Histogram(
		"model_call_duration_seconds",
		metric.WithDescription("Model backend call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0, 90.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model_call_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordOrchestration records a completed orchestration run with its request
// kind, terminal status and duration.
func (m *Metrics) RecordOrchestration(ctx context.Context, kind, status string, duration time.Duration) {
	if m.orchestrationsTotal == nil || m.orchestrationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	}

	m.orchestrationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.orchestrationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordAgentRun records one agent's reasoning loop with the role, the number
// of turns consumed, the result status and the duration.
func (m *Metrics) RecordAgentRun(ctx context.Context, role, status string, turns int, duration time.Duration) {
	if m.agentTurnsTotal == nil || m.agentDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrRole, role),
		attribute.String(attrStatus, status),
	}

	m.agentTurnsTotal.Add(ctx, int64(turns), metric.WithAttributes(attrs...))
	m.agentDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordToolInvocation records a tool bridge invocation. errKind is empty for
// successful invocations.
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool, status, errKind string, duration time.Duration) {
	if m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, tool),
		attribute.String(attrStatus, status),
	}
	if errKind != "" {
		attrs = append(attrs, attribute.String(attrErrKind, errKind))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordProviderOperation records a mailbox provider operation
// (list, get, send, modify) with status and duration.
func (m *Metrics) RecordProviderOperation(ctx context.Context, operation, status string, duration time.Duration) {
	if m.providerOperationsTotal == nil || m.providerOperationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.providerOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.providerOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordModelCall records a model backend call with status and duration.
func (m *Metrics) RecordModelCall(ctx context.Context, status string, duration time.Duration) {
	if m.modelCallsTotal == nil || m.modelCallDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrStatus, status),
	}

	m.modelCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.modelCallDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// IncrementActiveRuns increments the in-flight run counter.
func (m *Metrics) IncrementActiveRuns(ctx context.Context) {
	if m.activeRuns == nil {
		return // Instrumentation not initialized
	}
	m.activeRuns.Add(ctx, 1)
}

// DecrementActiveRuns decrements the in-flight run counter.
func (m *Metrics) DecrementActiveRuns(ctx context.Context) {
	if m.activeRuns == nil {
		return // Instrumentation not initialized
	}
	m.activeRuns.Add(ctx, -1)
}

// RecordOrchestrationWithRequester records a completed orchestration run
// including the requester identity. The requester label is only attached when
// detailedLabels is enabled.
func (m *Metrics) RecordOrchestrationWithRequester(ctx context.Context, kind, status, requester string, duration time.Duration) {
	if m.orchestrationsTotal == nil || m.orchestrationDuration == nil {
		return // Instrumentation not initialized
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrKind, kind),
		attribute.String(attrStatus, status),
	}
	if m.detailedLabels && requester != "" {
		attrs = append(attrs, attribute.String(attrRequester, requester))
	}

	m.orchestrationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.orchestrationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
