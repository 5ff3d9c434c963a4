package mailbox

import (
	"sort"
	"time"
)

// MessageRef is a lightweight reference to a message returned by search.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Message is an immutable snapshot of a mail message fetched from the
// provider. Callers must not mutate a Message after it has been stored in a
// Thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	From      string    `json:"from"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Snippet   string    `json:"snippet"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Labels    []string  `json:"labels"`
}

// Draft is a proposed outgoing message. A Draft is never sent by an agent;
// sending happens through an explicit confirmation step.
type Draft struct {
	To       []string `json:"to"`
	Cc       []string `json:"cc,omitempty"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	ThreadID string   `json:"threadId,omitempty"`
}

// Thread is an ordered conversation of messages sharing a provider-assigned
// identifier. Messages are kept in chronological order; fetches append or
// replace by id, never reorder in place.
type Thread struct {
	ID           string
	Messages     []Message
	Participants map[string]struct{}
	Labels       map[string]struct{}
}

// NewThread creates an empty thread with the given id.
func NewThread(id string) *Thread {
	return &Thread{
		ID:           id,
		Participants: make(map[string]struct{}),
		Labels:       make(map[string]struct{}),
	}
}

// Add inserts or replaces a message snapshot, keeping chronological order.
// A message with a known id replaces the prior snapshot in place; a new id is
// inserted at its chronological position.
func (t *Thread) Add(msg Message) {
	for i := range t.Messages {
		if t.Messages[i].ID == msg.ID {
			t.Messages[i] = msg
			t.trackParticipants(msg)
			return
		}
	}
	idx := sort.Search(len(t.Messages), func(i int) bool {
		return t.Messages[i].Timestamp.After(msg.Timestamp)
	})
	t.Messages = append(t.Messages, Message{})
	copy(t.Messages[idx+1:], t.Messages[idx:])
	t.Messages[idx] = msg
	t.trackParticipants(msg)
	for _, l := range msg.Labels {
		t.Labels[l] = struct{}{}
	}
}

func (t *Thread) trackParticipants(msg Message) {
	if msg.From != "" {
		t.Participants[msg.From] = struct{}{}
	}
	for _, addr := range msg.To {
		t.Participants[addr] = struct{}{}
	}
}

// Len returns the number of messages in the thread.
func (t *Thread) Len() int { return len(t.Messages) }

// Snapshot returns a copy of the thread's messages. Agents receive snapshots,
// never the store's backing slice, so no two agents share a mutable view.
func (t *Thread) Snapshot() []Message {
	out := make([]Message, len(t.Messages))
	copy(out, t.Messages)
	return out
}
