// Package bridge mediates agent tool calls to the mail provider.
//
// The bridge is the only path from model-driven reasoning to provider side
// effects. It validates arguments against each tool's schema, enforces
// per-run quotas, retries read-only calls once on transient failures, and
// deduplicates sends by idempotency token. Out-of-subset calls never reach
// it; the agent layer rejects those as contract violations.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jaredassist/jared/internal/logging"
	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/state"
)

// ToolCall is one agent-requested tool invocation.
type ToolCall struct {
	Tool    string
	Args    map[string]any
	AgentID string
}

// Error kinds folded back into agent context as observations.
const (
	ErrKindInvalidArgs         = "invalid_arguments"
	ErrKindUnknownTool         = "unknown_tool"
	ErrKindQuotaExceeded       = "quota_exceeded"
	ErrKindProviderUnavailable = "provider_unavailable"
	ErrKindRateLimited         = "rate_limited"
	ErrKindNotFound            = "not_found"
	ErrKindInvalidRecipient    = "invalid_recipient"
)

// ToolResult is the outcome of one tool invocation. On failure ErrKind holds
// a stable kind the agent can fold into its context as an observation.
type ToolResult struct {
	OK      bool
	Payload any
	ErrKind string
	Detail  string
}

func failure(kind, detail string) ToolResult {
	return ToolResult{ErrKind: kind, Detail: detail}
}

// Quotas caps per-run tool invocations. Zero values fall back to defaults.
type Quotas struct {
	Search int
	Fetch  int
	Send   int
	Label  int
}

// DefaultQuotas bounds cost and latency per orchestration run.
func DefaultQuotas() Quotas {
	return Quotas{Search: 10, Fetch: 25, Send: 2, Label: 10}
}

func (q Quotas) forTool(tool string) int {
	switch tool {
	case ToolSearch:
		return q.Search
	case ToolFetch:
		return q.Fetch
	case ToolSend:
		return q.Send
	case ToolLabel:
		return q.Label
	}
	return 0
}

// Bridge executes validated tool calls against the mail provider for one
// orchestration run.
type Bridge struct {
	provider mailbox.Provider
	store    *state.Store
	logger   *slog.Logger

	mu        sync.Mutex
	remaining map[string]int
	sentByTok map[string]string
}

// New creates a bridge scoped to one run. The store receives hydrated
// threads as a side effect of thread fetches so later agents in the same run
// see them.
func New(provider mailbox.Provider, store *state.Store, quotas Quotas, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultQuotas()
	remaining := make(map[string]int, len(toolSpecs))
	for name := range toolSpecs {
		n := quotas.forTool(name)
		if n <= 0 {
			n = defaults.forTool(name)
		}
		remaining[name] = n
	}
	return &Bridge{
		provider:  provider,
		store:     store,
		logger:    logger,
		remaining: remaining,
		sentByTok: make(map[string]string),
	}
}

// consumeQuota decrements the remaining budget for a tool, reporting whether
// the call may proceed.
func (b *Bridge) consumeQuota(tool string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining[tool] <= 0 {
		return false
	}
	b.remaining[tool]--
	return true
}

// Invoke validates and executes one tool call.
func (b *Bridge) Invoke(ctx context.Context, call ToolCall) ToolResult {
	logger := logging.WithOperation(b.logger, "bridge.invoke")

	spec, ok := toolSpecs[call.Tool]
	if !ok {
		return failure(ErrKindUnknownTool, "no such tool: "+call.Tool)
	}
	if err := validateArgs(spec, call.Args); err != nil {
		return failure(ErrKindInvalidArgs, err.Error())
	}
	if !b.consumeQuota(call.Tool) {
		logger.Warn("tool quota exhausted", logging.Tool(call.Tool), logging.Agent(call.AgentID))
		return failure(ErrKindQuotaExceeded, "per-run quota exhausted for "+call.Tool)
	}

	var result ToolResult
	switch call.Tool {
	case ToolSearch:
		result = b.search(ctx, call.Args)
	case ToolFetch:
		result = b.fetch(ctx, call.Args)
	case ToolSend:
		result = b.send(ctx, call.Args)
	case ToolLabel:
		result = b.label(ctx, call.Args)
	}

	if !result.OK {
		logger.Warn("tool call failed",
			logging.Tool(call.Tool),
			logging.Agent(call.AgentID),
			slog.String("err_kind", result.ErrKind))
	} else {
		logger.Debug("tool call succeeded", logging.Tool(call.Tool), logging.Agent(call.AgentID))
	}
	return result
}

// withRetryOnce runs fn, retrying exactly once when the failure is transient.
// Only read-only and label calls go through here; send is never auto-retried
// because an ambiguous outcome could mean duplicate delivery.
func withRetryOnce(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !mailbox.IsTransient(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return fn()
}

func errKindFor(err error) string {
	switch {
	case errors.Is(err, mailbox.ErrRateLimited):
		return ErrKindRateLimited
	case errors.Is(err, mailbox.ErrNotFound):
		return ErrKindNotFound
	case errors.Is(err, mailbox.ErrInvalidRecipient):
		return ErrKindInvalidRecipient
	default:
		return ErrKindProviderUnavailable
	}
}

func (b *Bridge) search(ctx context.Context, args map[string]any) ToolResult {
	query := args["query"].(string)
	max := int64(10)
	if v, ok := args["max"].(float64); ok && v > 0 {
		max = int64(v)
	}

	var refs []mailbox.MessageRef
	err := withRetryOnce(ctx, func() error {
		var err error
		refs, err = b.provider.ListMessages(ctx, query, max)
		return err
	})
	if err != nil {
		return failure(errKindFor(err), err.Error())
	}
	return ToolResult{OK: true, Payload: refs}
}

func (b *Bridge) fetch(ctx context.Context, args map[string]any) ToolResult {
	threadID, _ := args["threadId"].(string)
	messageID, _ := args["messageId"].(string)
	if threadID == "" && messageID == "" {
		return failure(ErrKindInvalidArgs, "fetch requires messageId or threadId")
	}

	if threadID != "" {
		var th *mailbox.Thread
		err := withRetryOnce(ctx, func() error {
			var err error
			th, err = mailbox.HydrateThread(ctx, b.provider, threadID)
			return err
		})
		if err != nil {
			return failure(errKindFor(err), err.Error())
		}
		if b.store != nil {
			b.store.Put(th)
		}
		return ToolResult{OK: true, Payload: th.Snapshot()}
	}

	var msg *mailbox.Message
	err := withRetryOnce(ctx, func() error {
		var err error
		msg, err = b.provider.GetMessage(ctx, messageID)
		return err
	})
	if err != nil {
		return failure(errKindFor(err), err.Error())
	}
	return ToolResult{OK: true, Payload: msg}
}

func (b *Bridge) send(ctx context.Context, args map[string]any) ToolResult {
	token := args["idempotencyToken"].(string)

	b.mu.Lock()
	if id, ok := b.sentByTok[token]; ok {
		b.mu.Unlock()
		// Deduplicated: the prior result is returned, the provider is
		// not called again.
		return ToolResult{OK: true, Payload: id}
	}
	b.mu.Unlock()

	to, _ := toStringSlice(args["to"])
	draft := &mailbox.Draft{
		To:      to,
		Subject: args["subject"].(string),
		Body:    args["body"].(string),
	}
	if tid, ok := args["threadId"].(string); ok {
		draft.ThreadID = tid
	}

	// A dispatched send is never cancelled: mail delivery cannot be
	// undone, so the call runs detached from the caller's cancellation.
	id, err := b.provider.SendMessage(context.WithoutCancel(ctx), draft, token)
	if err != nil {
		return failure(errKindFor(err), err.Error())
	}

	b.mu.Lock()
	b.sentByTok[token] = id
	b.mu.Unlock()
	return ToolResult{OK: true, Payload: id}
}

func (b *Bridge) label(ctx context.Context, args map[string]any) ToolResult {
	messageID := args["messageId"].(string)
	add, _ := toStringSlice(args["add"])
	remove, _ := toStringSlice(args["remove"])
	if len(add) == 0 && len(remove) == 0 {
		return failure(ErrKindInvalidArgs, "label requires add or remove")
	}

	err := withRetryOnce(ctx, func() error {
		return b.provider.ModifyLabels(ctx, messageID, add, remove)
	})
	if err != nil {
		return failure(errKindFor(err), err.Error())
	}
	return ToolResult{OK: true, Payload: "ok"}
}
