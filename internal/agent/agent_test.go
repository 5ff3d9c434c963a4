package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredassist/jared/internal/bridge"
	"github.com/jaredassist/jared/internal/llm/llmtest"
	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/mailbox/mailboxtest"
	"github.com/jaredassist/jared/internal/state"
)

func newTestAgent(role Role, script *llmtest.Script, stub *mailboxtest.Stub) (*Agent, *state.Store) {
	st := state.NewStore("run-1")
	br := bridge.New(stub, st, bridge.Quotas{}, nil)
	return New(role, script, br, st, nil), st
}

func validReaderFinal() llmtest.Step {
	return llmtest.Final(`{"summaries":[{"id":"m1","from":"boss@example.com","subject":"s","snippet":"x","summary":"y"}]}`)
}

func TestRunSearchThenFinal(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.AddMessage(mailbox.Message{ID: "m1", ThreadID: "T1", From: "boss@example.com", Timestamp: time.Now()})

	script := llmtest.NewScript(
		llmtest.ToolCall("search", map[string]any{"query": "from:boss@example.com"}),
		validReaderFinal(),
	)
	a, st := newTestAgent(ReaderRole(), script, stub)

	final, err := a.Run(context.Background(), "find mail from the boss", nil)
	require.NoError(t, err)

	var out ReadResult
	require.NoError(t, json.Unmarshal(final, &out))
	assert.Len(t, out.Summaries, 1)

	turns := st.Turns(a.ID())
	require.Len(t, turns, 2)
	assert.Equal(t, "search", turns[0].Tool)
	assert.NotEmpty(t, turns[0].Observation)
	assert.NotNil(t, turns[1].Final)
}

func TestRunAbortsAtTurnBudget(t *testing.T) {
	stub := mailboxtest.NewStub()
	// A model that always wants another tool call must be forced to abort
	// after exactly MaxTurns model calls.
	script := llmtest.NewScript(
		llmtest.ToolCall("search", map[string]any{"query": "in:inbox"}),
	)
	role := ReaderRole()
	role.MaxTurns = 3
	a, _ := newTestAgent(role, script, stub)

	_, err := a.Run(context.Background(), "loop forever", nil)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, script.Calls())
}

func TestRunRejectsForbiddenToolBeforeProvider(t *testing.T) {
	stub := mailboxtest.NewStub()
	script := llmtest.NewScript(
		llmtest.ToolCall("send", map[string]any{
			"to": []any{"a@example.com"}, "subject": "s", "body": "b",
			"idempotencyToken": "tok",
		}),
	)
	a, _ := newTestAgent(DrafterRole(), script, stub)

	_, err := a.Run(context.Background(), "send this mail", nil)
	assert.ErrorIs(t, err, ErrForbiddenTool)
	assert.Zero(t, stub.SendCalls(), "provider send must never be reached")
}

func TestRunCorrectiveRetryOnBadSchema(t *testing.T) {
	stub := mailboxtest.NewStub()
	script := llmtest.NewScript(
		llmtest.Final(`{"wrong":"shape"}`),
		validReaderFinal(),
	)
	a, _ := newTestAgent(ReaderRole(), script, stub)

	final, err := a.Run(context.Background(), "read", nil)
	require.NoError(t, err)
	assert.Contains(t, string(final), "summaries")
	assert.Equal(t, 2, script.Calls(), "exactly one corrective retry")
}

func TestRunAbortsAfterSecondBadSchema(t *testing.T) {
	stub := mailboxtest.NewStub()
	script := llmtest.NewScript(llmtest.Final(`{"wrong":"shape"}`))
	a, _ := newTestAgent(ReaderRole(), script, stub)

	_, err := a.Run(context.Background(), "read", nil)
	assert.ErrorIs(t, err, ErrBadOutput)
	assert.Equal(t, 2, script.Calls())
}

func TestRunToolErrorFoldedAsObservation(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.FailGetTimes = 2 // exhaust the bridge's single retry

	script := llmtest.NewScript(
		llmtest.ToolCall("fetch", map[string]any{"messageId": "m1"}),
		validReaderFinal(),
	)
	a, st := newTestAgent(ReaderRole(), script, stub)

	_, err := a.Run(context.Background(), "fetch m1", nil)
	require.NoError(t, err, "tool failure is local recovery, not agent failure")

	turns := st.Turns(a.ID())
	require.NotEmpty(t, turns)
	assert.Contains(t, turns[0].Observation, "provider_unavailable")
}

func TestRunCancelledAtTurnBoundary(t *testing.T) {
	stub := mailboxtest.NewStub()
	script := llmtest.NewScript(
		llmtest.ToolCall("search", map[string]any{"query": "in:inbox"}),
	)
	a, _ := newTestAgent(ReaderRole(), script, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Run(ctx, "read", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, script.Calls(), "no model call after cancellation")
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role    Role
		tool    string
		allowed bool
	}{
		{ReaderRole(), bridge.ToolSearch, true},
		{ReaderRole(), bridge.ToolSend, false},
		{DrafterRole(), bridge.ToolFetch, true},
		{DrafterRole(), bridge.ToolSend, false},
		{AnalyzerRole(), bridge.ToolFetch, true},
		{AnalyzerRole(), bridge.ToolLabel, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.role.Allows(tt.tool),
			"%s / %s", tt.role.Name, tt.tool)
	}
}
