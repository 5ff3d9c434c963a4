package assistant

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredassist/jared/internal/llm/llmtest"
	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/mailbox/mailboxtest"
	"github.com/jaredassist/jared/internal/orchestrator"
	"github.com/jaredassist/jared/internal/outbox"
	"github.com/jaredassist/jared/internal/server"
)

func newTestContext(t *testing.T, stub *mailboxtest.Stub, script *llmtest.Script) *server.ServerContext {
	t.Helper()
	ob, err := outbox.OpenInMemory()
	require.NoError(t, err)
	orch := orchestrator.New(stub, script, orchestrator.Options{
		Outbox:               ob,
		RetryInitialInterval: time.Millisecond,
	})
	sc := server.NewServerContext(context.Background(), orch)
	sc.SetOutbox(ob)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandleReadFilter(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.AddMessage(mailbox.Message{
		ID:       "T1-m1",
		ThreadID: "T1",
		From:     "alice@example.com",
		Subject:  "standup",
	})
	script := llmtest.NewScript(
		llmtest.ToolCall("search", map[string]any{"query": "from:alice@example.com"}),
		llmtest.Final(`{"summaries":[{"id":"T1-m1","from":"alice@example.com","subject":"standup","snippet":"","summary":"a"}]}`),
	)
	sc := newTestContext(t, stub, script)

	result, err := handleReadFilter(context.Background(), callRequest("assistant_read_filter", map[string]interface{}{
		"query":      "from:alice@example.com",
		"maxResults": float64(5),
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var res orchestrator.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &res))
	assert.Equal(t, orchestrator.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.RequestID)
}

func TestHandleReadFilterRequiresQuery(t *testing.T) {
	script := llmtest.NewScript(llmtest.Final(`{}`))
	sc := newTestContext(t, mailboxtest.NewStub(), script)

	result, err := handleReadFilter(context.Background(), callRequest("assistant_read_filter", map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Zero(t, script.Calls(), "argument validation happens before orchestration")
}

func TestHandleDraftRequiresInstruction(t *testing.T) {
	sc := newTestContext(t, mailboxtest.NewStub(), llmtest.NewScript(llmtest.Final(`{}`)))

	result, err := handleDraft(context.Background(), callRequest("assistant_draft", map[string]interface{}{
		"to": "bob@example.com",
	}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDraftThenConfirmSendOverTools(t *testing.T) {
	stub := mailboxtest.NewStub()
	script := llmtest.NewScript(
		llmtest.Final(`{"draft":{"to":["bob@example.com"],"subject":"hi","body":"hello"}}`),
	)
	sc := newTestContext(t, stub, script)
	ctx := context.Background()

	result, err := handleDraft(ctx, callRequest("assistant_draft", map[string]interface{}{
		"instruction": "say hello",
		"to":          "bob@example.com",
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Zero(t, stub.SendCalls(), "drafting never sends")

	var res struct {
		Status  string `json:"status"`
		Payload struct {
			IdempotencyToken string `json:"idempotencyToken"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &res))
	require.Equal(t, orchestrator.StatusCompleted, res.Status)
	require.NotEmpty(t, res.Payload.IdempotencyToken)

	confirm, err := handleSendDraft(ctx, callRequest("assistant_send_draft", map[string]interface{}{
		"idempotencyToken": res.Payload.IdempotencyToken,
	}), sc)
	require.NoError(t, err)
	require.False(t, confirm.IsError)
	assert.Equal(t, 1, stub.SendCalls())
}

func TestHandleSendDraftUnknownTokenIsToolError(t *testing.T) {
	sc := newTestContext(t, mailboxtest.NewStub(), llmtest.NewScript(llmtest.Final(`{}`)))

	result, err := handleSendDraft(context.Background(), callRequest("assistant_send_draft", map[string]interface{}{
		"idempotencyToken": "no-such-token",
	}), sc)
	require.NoError(t, err, "failed runs surface as tool errors, not protocol errors")
	require.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), orchestrator.FailInvalidRequest)
}

func TestHandleAnalyzeRequiresThread(t *testing.T) {
	sc := newTestContext(t, mailboxtest.NewStub(), llmtest.NewScript(llmtest.Final(`{}`)))

	result, err := handleAnalyze(context.Background(), callRequest("assistant_analyze_thread", map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestInstrumentedHandlerWithoutInstrumentation(t *testing.T) {
	sc := newTestContext(t, mailboxtest.NewStub(), llmtest.NewScript(llmtest.Final(`{}`)))

	called := false
	handler := InstrumentedToolHandler("assistant_read_filter", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			called = true
			return mcp.NewToolResultText("ok"), nil
		})

	result, err := handler(context.Background(), callRequest("assistant_read_filter", nil))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resultText(t, result))
}
