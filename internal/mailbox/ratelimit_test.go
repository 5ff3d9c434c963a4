package mailbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredassist/jared/internal/mailbox"
	"github.com/jaredassist/jared/internal/mailbox/mailboxtest"
)

func TestRateLimitedPreservesResults(t *testing.T) {
	stub := mailboxtest.NewStub()
	stub.AddMessage(mailbox.Message{
		ID:       "m1",
		ThreadID: "T1",
		From:     "alice@example.com",
		Subject:  "standup",
	})
	limited := mailbox.NewRateLimited(stub)
	ctx := context.Background()

	refs, err := limited.ListMessages(ctx, "in:inbox", 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	msg, err := limited.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", msg.From)
	assert.Equal(t, 1, stub.ListCalls())
}

func TestRateLimitedHonorsCancellation(t *testing.T) {
	stub := mailboxtest.NewStub()
	limited := mailbox.NewRateLimited(stub)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	cancel()

	_, err := limited.ListMessages(ctx, "in:inbox", 10)
	require.Error(t, err)
	assert.Zero(t, stub.ListCalls(), "cancelled waits never reach the provider")
}
