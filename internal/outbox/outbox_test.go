package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredassist/jared/internal/mailbox"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDraft() mailbox.Draft {
	return mailbox.Draft{
		To:       []string{"alice@example.com", "bob@example.com"},
		Cc:       []string{"carol@example.com"},
		Subject:  "Re: meeting",
		Body:     "Works for me.",
		ThreadID: "T1",
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SavePending(ctx, PendingDraft{
		Token:     "tok-1",
		RequestID: "req-1",
		Draft:     sampleDraft(),
	})
	require.NoError(t, err)

	p, err := s.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", p.RequestID)
	assert.Equal(t, sampleDraft(), p.Draft)
	assert.False(t, p.Sent())
	assert.False(t, p.CreatedAt.IsZero())
}

func TestGetUnknownToken(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRequiresToken(t *testing.T) {
	s := newTestStore(t)
	err := s.SavePending(context.Background(), PendingDraft{Draft: sampleDraft()})
	assert.Error(t, err)
}

func TestDuplicateTokenRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := PendingDraft{Token: "tok-1", RequestID: "req-1", Draft: sampleDraft()}
	require.NoError(t, s.SavePending(ctx, p))
	assert.Error(t, s.SavePending(ctx, p), "token is minted once per draft")
}

func TestMarkSent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePending(ctx, PendingDraft{
		Token: "tok-1", RequestID: "req-1", Draft: sampleDraft(),
	}))
	require.NoError(t, s.MarkSent(ctx, "tok-1", "msg-42"))

	p, err := s.Get(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, p.Sent())
	assert.Equal(t, "msg-42", p.SentMessageID)
	assert.False(t, p.SentAt.IsZero())

	assert.ErrorIs(t, s.MarkSent(ctx, "missing", "msg-1"), ErrNotFound)
}

func TestListPendingExcludesSent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, s.SavePending(ctx, PendingDraft{
		Token: "tok-old", RequestID: "req-1", Draft: sampleDraft(), CreatedAt: old,
	}))
	require.NoError(t, s.SavePending(ctx, PendingDraft{
		Token: "tok-new", RequestID: "req-2", Draft: sampleDraft(),
	}))
	require.NoError(t, s.SavePending(ctx, PendingDraft{
		Token: "tok-sent", RequestID: "req-3", Draft: sampleDraft(),
	}))
	require.NoError(t, s.MarkSent(ctx, "tok-sent", "msg-1"))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "tok-new", pending[0].Token, "newest first")
	assert.Equal(t, "tok-old", pending[1].Token)
	assert.Equal(t, 2, s.PendingCount(ctx))
}
