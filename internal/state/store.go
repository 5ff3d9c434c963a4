// Package state holds conversation context for a single orchestration run.
//
// A Store is created per request and discarded when the run completes.
// Nothing here outlives the run, which is what guarantees one user's thread
// content never leaks into another run's context.
package state

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jaredassist/jared/internal/mailbox"
)

// Turn is one model-call/tool-call cycle recorded in an agent's reasoning
// trace. Either Tool is set (with Args and the folded-back Observation) or
// Final carries the agent's structured answer.
type Turn struct {
	Role        string
	Tool        string
	Args        map[string]any
	Observation string
	Final       json.RawMessage
	At          time.Time
}

// Store is the run-scoped conversation state: hydrated threads and per-agent
// reasoning traces. Safe for concurrent use; a run's router may hydrate
// threads from concurrent fetches even though agents themselves run
// sequentially per thread.
type Store struct {
	mu      sync.RWMutex
	runID   string
	threads map[string]*mailbox.Thread
	turns   map[string][]Turn
	closed  bool
}

// NewStore creates an empty store scoped to one run.
func NewStore(runID string) *Store {
	return &Store{
		runID:   runID,
		threads: make(map[string]*mailbox.Thread),
		turns:   make(map[string][]Turn),
	}
}

// RunID returns the owning run's identifier.
func (s *Store) RunID() string { return s.runID }

// Get returns the thread with the given id, or false if absent or the store
// is closed.
func (s *Store) Get(threadID string) (*mailbox.Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}
	th, ok := s.threads[threadID]
	return th, ok
}

// Put stores a hydrated thread.
func (s *Store) Put(th *mailbox.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.threads[th.ID] = th
}

// AppendTurn records one turn of an agent's reasoning trace.
func (s *Store) AppendTurn(agentID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	s.turns[agentID] = append(s.turns[agentID], turn)
}

// Turns returns a copy of the recorded trace for an agent.
func (s *Store) Turns(agentID string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns[agentID]))
	copy(out, s.turns[agentID])
	return out
}

// Close discards all state. The store rejects further reads and writes so a
// leaked reference cannot resurrect another run's context.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.threads = make(map[string]*mailbox.Thread)
	s.turns = make(map[string][]Turn)
}
