package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/mailbox/mailboxtest"
	"github.com/jaredassist/jared/internal/state"
)

func newBridge(stub *mailboxtest.Stub, quotas Quotas) (*Bridge, *state.Store) {
	st := state.NewStore("run-1")
	return New(stub, st, quotas, nil), st
}

func TestInvokeUnknownTool(t *testing.T) {
	b, _ := newBridge(mailboxtest.NewStub(), Quotas{})
	res := b.Invoke(context.Background(), ToolCall{Tool: "archive", AgentID: "reader-1"})
	assert.False(t, res.OK)
	assert.Equal(t, ErrKindUnknownTool, res.ErrKind)
}

func TestInvokeValidatesArgs(t *testing.T) {
	b, _ := newBridge(mailboxtest.NewStub(), Quotas{})

	tests := []struct {
		name string
		call ToolCall
	}{
		{"search missing query", ToolCall{Tool: ToolSearch, Args: map[string]any{}}},
		{"search wrong type", ToolCall{Tool: ToolSearch, Args: map[string]any{"query": 7}}},
		{"search unknown arg", ToolCall{Tool: ToolSearch, Args: map[string]any{"query": "x", "bogus": true}}},
		{"send missing token", ToolCall{Tool: ToolSend, Args: map[string]any{
			"to": []any{"a@example.com"}, "subject": "s", "body": "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.Invoke(context.Background(), tt.call)
			assert.False(t, res.OK)
			assert.Equal(t, ErrKindInvalidArgs, res.ErrKind)
		})
	}
}

func TestSearchRetriesOnceOnTransient(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.AddMessage(mailbox.Message{ID: "m1", ThreadID: "T1", Timestamp: time.Now()})
	stub.FailListTimes = 1

	b, _ := newBridge(stub, Quotas{})
	res := b.Invoke(context.Background(), ToolCall{
		Tool: ToolSearch,
		Args: map[string]any{"query": "in:inbox"},
	})
	require.True(t, res.OK, "expected retry to recover: %s", res.Detail)
	assert.Equal(t, 2, stub.ListCalls())
}

func TestSearchSurfacesAfterRetryExhausted(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.FailListTimes = 2

	b, _ := newBridge(stub, Quotas{})
	res := b.Invoke(context.Background(), ToolCall{
		Tool: ToolSearch,
		Args: map[string]any{"query": "in:inbox"},
	})
	assert.False(t, res.OK)
	assert.Equal(t, ErrKindProviderUnavailable, res.ErrKind)
	assert.Equal(t, 2, stub.ListCalls())
}

func TestQuotaExceeded(t *testing.T) {
	stub := mailboxtest.NewStub()
	b, _ := newBridge(stub, Quotas{Search: 1})

	first := b.Invoke(context.Background(), ToolCall{Tool: ToolSearch, Args: map[string]any{"query": "a"}})
	assert.True(t, first.OK)

	second := b.Invoke(context.Background(), ToolCall{Tool: ToolSearch, Args: map[string]any{"query": "b"}})
	assert.False(t, second.OK)
	assert.Equal(t, ErrKindQuotaExceeded, second.ErrKind)
	assert.Equal(t, 1, stub.ListCalls(), "quota rejection must not reach the provider")
}

func TestSendDeduplicatesByToken(t *testing.T) {
	stub := mailboxtest.NewStub()
	b, _ := newBridge(stub, Quotas{})

	args := map[string]any{
		"to":               []any{"alice@example.com"},
		"subject":          "hello",
		"body":             "hi",
		"idempotencyToken": "tok-1",
	}
	first := b.Invoke(context.Background(), ToolCall{Tool: ToolSend, Args: args})
	require.True(t, first.OK)

	second := b.Invoke(context.Background(), ToolCall{Tool: ToolSend, Args: args})
	require.True(t, second.OK)
	assert.Equal(t, first.Payload, second.Payload, "second send must return the cached id")
	assert.Equal(t, 1, stub.SendCalls(), "exactly one delivery for one token")
}

func TestSendNotRetriedOnTransient(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.FailSendTimes = 1

	b, _ := newBridge(stub, Quotas{})
	res := b.Invoke(context.Background(), ToolCall{Tool: ToolSend, Args: map[string]any{
		"to":               []any{"alice@example.com"},
		"subject":          "hello",
		"body":             "hi",
		"idempotencyToken": "tok-1",
	}})
	assert.False(t, res.OK)
	assert.Equal(t, ErrKindProviderUnavailable, res.ErrKind)
	assert.Equal(t, 1, stub.SendCalls(), "send must not be auto-retried")
}

func TestSendInvalidRecipient(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.FailSendTimes = 1
	stub.FailErr = mailbox.ErrInvalidRecipient

	b, _ := newBridge(stub, Quotas{})
	res := b.Invoke(context.Background(), ToolCall{Tool: ToolSend, Args: map[string]any{
		"to":               []any{"not-an-address"},
		"subject":          "hello",
		"body":             "hi",
		"idempotencyToken": "tok-2",
	}})
	assert.False(t, res.OK)
	assert.Equal(t, ErrKindInvalidRecipient, res.ErrKind)
}

func TestFetchThreadStoresHydration(t *testing.T) {
	stub := mailboxtest.NewStub()
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	stub.AddMessage(mailbox.Message{ID: "m1", ThreadID: "T1", Timestamp: base})
	stub.AddMessage(mailbox.Message{ID: "m2", ThreadID: "T1", Timestamp: base.Add(time.Hour)})

	b, st := newBridge(stub, Quotas{})
	res := b.Invoke(context.Background(), ToolCall{
		Tool: ToolFetch,
		Args: map[string]any{"threadId": "T1"},
	})
	require.True(t, res.OK, res.Detail)

	th, ok := st.Get("T1")
	require.True(t, ok, "hydrated thread must land in run state")
	assert.Equal(t, 2, th.Len())
}

func TestLabelRequiresChange(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.AddMessage(mailbox.Message{ID: "m1", ThreadID: "T1", Timestamp: time.Now()})

	b, _ := newBridge(stub, Quotas{})
	res := b.Invoke(context.Background(), ToolCall{
		Tool: ToolLabel,
		Args: map[string]any{"messageId": "m1"},
	})
	assert.False(t, res.OK)
	assert.Equal(t, ErrKindInvalidArgs, res.ErrKind)
	assert.Zero(t, stub.LabelCalls())
}

func TestDefsCoversSubset(t *testing.T) {
	defs := Defs([]string{ToolSearch, ToolFetch})
	require.Len(t, defs, 2)
	assert.Equal(t, ToolSearch, defs[0].Name)
	params, ok := defs[0].Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, params, "query")
}
