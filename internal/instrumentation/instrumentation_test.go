package instrumentation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestDefaultConfigEnvOverrides(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "jared-test")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", ExporterStdout)
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("AUDIT_LOGGING_INCLUDE_PII", "true")

	cfg := DefaultConfig()
	assert.Equal(t, "jared-test", cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ExporterStdout, cfg.MetricsExporter)
	assert.Equal(t, 0.5, cfg.TraceSamplingRate)
	assert.True(t, cfg.AuditLogging.IncludePII)
}

func TestDefaultConfigBadValuesFallBack(t *testing.T) {
	t.Setenv("INSTRUMENTATION_ENABLED", "not-a-bool")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "not-a-float")

	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 0.1, cfg.TraceSamplingRate)
}

func TestDisabledProviderIsNoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	require.NotNil(t, p.Metrics())

	// Recording on a no-op provider must not panic.
	p.Metrics().RecordOrchestration(context.Background(), "ReadFilter", StatusSuccess, time.Second)
	p.Metrics().IncrementActiveRuns(context.Background())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestZeroValueMetricsIsNoop(t *testing.T) {
	var m Metrics
	m.RecordOrchestration(context.Background(), "Draft", StatusError, time.Second)
	m.RecordAgentRun(context.Background(), "reader", StatusSuccess, 3, time.Second)
	m.RecordToolInvocation(context.Background(), "search", StatusError, "rate_limited", time.Millisecond)
	m.RecordProviderOperation(context.Background(), "send", StatusSuccess, time.Millisecond)
	m.RecordModelCall(context.Background(), StatusSuccess, time.Second)
	m.DecrementActiveRuns(context.Background())
}

func TestMetricsRecordAndCollect(t *testing.T) {
	ctx := context.Background()
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	m, err := NewMetrics(mp.Meter("test"), false)
	require.NoError(t, err)

	m.RecordOrchestration(ctx, "ReadFilter", StatusSuccess, 2*time.Second)
	m.RecordToolInvocation(ctx, "fetch", StatusError, "not_found", 50*time.Millisecond)
	m.RecordAgentRun(ctx, "reader", StatusSuccess, 4, time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics[0].Metrics {
		names[sm.Name] = true
	}
	assert.True(t, names["orchestrations_total"])
	assert.True(t, names["orchestration_duration_seconds"])
	assert.True(t, names["tool_invocations_total"])
	assert.True(t, names["agent_turns_total"])
}

func TestAuditLoggerRedactsRecipientByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	al := NewAuditLogger(logger)
	ti := NewToolInvocation("send").
		WithAgent("drafter-1a2b3c4d", "req-1").
		WithTarget("T1", "alice@example.com").
		WithReadOnly(false).
		CompleteSuccess()
	al.LogToolInvocation(ti)

	out := buf.String()
	assert.Contains(t, out, "tool_executed")
	assert.Contains(t, out, "example.com")
	assert.NotContains(t, out, "alice@example.com")
}

func TestAuditLoggerIncludesPIIWhenConfigured(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true, IncludePII: true})
	ti := NewToolInvocation("send").
		WithTarget("T1", "alice@example.com").
		Complete(false, "invalid_recipient", "rejected")
	al.LogToolInvocation(ti)

	out := buf.String()
	assert.Contains(t, out, "tool_failed")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "invalid_recipient")
}

func TestAuditLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	al := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})
	al.LogToolInvocation(NewToolInvocation("search").CompleteSuccess())
	assert.Empty(t, buf.String())
}

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithKind("AnalyzeConversation").
		WithAgent("analyzer").
		WithTool("fetch").
		WithThread("T1").
		WithReadOnly(true).
		Build()
	assert.Len(t, attrs, 5)

	// Empty thread and request values are skipped.
	attrs = NewSpanAttributeBuilder().WithThread("").WithRequest("").Build()
	assert.Empty(t, attrs)
}
