package server

import (
	"context"
	"sync"

	"github.com/jaredassist/jared/internal/instrumentation"
	"github.com/jaredassist/jared/internal/orchestrator"
	"github.com/jaredassist/jared/internal/outbox"
)

// ServerContext holds the shared state of the MCP gateway: the orchestrator
// every tool call funnels into, plus the observability plumbing.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	orch   *orchestrator.Orchestrator
	outbox *outbox.Store

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context around an orchestrator.
func NewServerContext(ctx context.Context, orch *orchestrator.Orchestrator) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		orch:   orch,
	}
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Orchestrator returns the request orchestrator.
func (sc *ServerContext) Orchestrator() *orchestrator.Orchestrator {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.orch
}

// SetOutbox attaches the pending-draft store.
func (sc *ServerContext) SetOutbox(ob *outbox.Store) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.outbox = ob
}

// Outbox returns the pending-draft store, nil when not configured.
func (sc *ServerContext) Outbox() *outbox.Store {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.outbox
}

// SetMetrics attaches the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger attaches the audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.audit = al
}

// AuditLogger returns the audit logger, nil when not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context. Closing the outbox last keeps send
// confirmations recordable until in-flight requests drain.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()

	if sc.outbox != nil {
		return sc.outbox.Close()
	}
	return nil
}
