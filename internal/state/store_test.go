package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jaredassist/jared/internal/mailbox"
)

func TestStorePutGet(t *testing.T) {
	s := NewStore("run-1")

	_, ok := s.Get("T1")
	assert.False(t, ok)

	th := mailbox.NewThread("T1")
	th.Add(mailbox.Message{ID: "m1", ThreadID: "T1", Timestamp: time.Now()})
	s.Put(th)

	got, ok := s.Get("T1")
	assert.True(t, ok)
	assert.Equal(t, 1, got.Len())
}

func TestStoreAppendTurn(t *testing.T) {
	s := NewStore("run-1")
	s.AppendTurn("reader-1", Turn{Role: "reader", Tool: "search"})
	s.AppendTurn("reader-1", Turn{Role: "reader", Tool: "fetch"})

	turns := s.Turns("reader-1")
	assert.Len(t, turns, 2)
	assert.Equal(t, "search", turns[0].Tool)
	assert.False(t, turns[0].At.IsZero(), "At should be defaulted")
}

func TestStoreCloseDiscardsState(t *testing.T) {
	s := NewStore("run-1")
	s.Put(mailbox.NewThread("T1"))
	s.AppendTurn("a", Turn{Role: "reader"})

	s.Close()

	_, ok := s.Get("T1")
	assert.False(t, ok, "closed store must not serve threads")
	assert.Empty(t, s.Turns("a"))

	// Writes after close are dropped.
	s.Put(mailbox.NewThread("T2"))
	_, ok = s.Get("T2")
	assert.False(t, ok)
}
