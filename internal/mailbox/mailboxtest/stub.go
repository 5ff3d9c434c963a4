// Package mailboxtest provides an in-memory mail provider stub for tests.
package mailboxtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaredassist/jared/internal/mailbox"
)

// Stub is an in-memory mailbox.Provider with call counting and scriptable
// failures. All methods are safe for concurrent use.
type Stub struct {
	mu       sync.Mutex
	messages map[string]*mailbox.Message
	order    []string

	// FailListTimes makes the next N ListMessages calls fail with FailErr.
	FailListTimes int
	// FailGetTimes makes the next N GetMessage calls fail with FailErr.
	FailGetTimes int
	// FailSendTimes makes the next N SendMessage calls fail with FailErr.
	FailSendTimes int
	// FailErr is the error returned by scripted failures. Defaults to
	// mailbox.ErrUnavailable.
	FailErr error

	listCalls  int
	getCalls   int
	sendCalls  int
	labelCalls int

	sent []SentMessage
}

// SentMessage records one successful SendMessage call.
type SentMessage struct {
	ID    string
	Draft mailbox.Draft
	Token string
}

// NewStub creates an empty stub provider.
func NewStub() *Stub {
	return &Stub{messages: make(map[string]*mailbox.Message)}
}

// AddMessage seeds the stub with a message snapshot.
func (s *Stub) AddMessage(msg mailbox.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.ID]; !ok {
		s.order = append(s.order, msg.ID)
	}
	s.messages[msg.ID] = &msg
}

func (s *Stub) failErr() error {
	if s.FailErr != nil {
		return s.FailErr
	}
	return mailbox.ErrUnavailable
}

// ListMessages returns refs for seeded messages matching the query. Matching
// is deliberately loose: a thread-selection query (mailbox.ThreadQuery)
// selects by thread, anything else matches every seeded message, which is
// enough for tests that assert on counts and ordering.
func (s *Stub) ListMessages(_ context.Context, query string, max int64) ([]mailbox.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.FailListTimes > 0 {
		s.FailListTimes--
		return nil, s.failErr()
	}

	threadID, _ := mailbox.CutThreadQuery(query)

	var refs []mailbox.MessageRef
	for _, id := range s.order {
		msg := s.messages[id]
		if threadID != "" && msg.ThreadID != threadID {
			continue
		}
		refs = append(refs, mailbox.MessageRef{ID: msg.ID, ThreadID: msg.ThreadID})
		if max > 0 && int64(len(refs)) >= max {
			break
		}
	}
	return refs, nil
}

func (s *Stub) GetMessage(_ context.Context, id string) (*mailbox.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.FailGetTimes > 0 {
		s.FailGetTimes--
		return nil, s.failErr()
	}
	msg, ok := s.messages[id]
	if !ok {
		return nil, mailbox.ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *Stub) SendMessage(_ context.Context, draft *mailbox.Draft, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCalls++
	if s.FailSendTimes > 0 {
		s.FailSendTimes--
		return "", s.failErr()
	}
	id := fmt.Sprintf("sent-%d", len(s.sent)+1)
	s.sent = append(s.sent, SentMessage{ID: id, Draft: *draft, Token: token})
	return id, nil
}

func (s *Stub) ModifyLabels(_ context.Context, id string, add, remove []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labelCalls++
	msg, ok := s.messages[id]
	if !ok {
		return mailbox.ErrNotFound
	}
	labels := make([]string, 0, len(msg.Labels)+len(add))
	for _, l := range msg.Labels {
		removed := false
		for _, r := range remove {
			if l == r {
				removed = true
				break
			}
		}
		if !removed {
			labels = append(labels, l)
		}
	}
	labels = append(labels, add...)
	msg.Labels = labels
	return nil
}

// ListCalls returns the number of ListMessages calls observed.
func (s *Stub) ListCalls() int { s.mu.Lock(); defer s.mu.Unlock(); return s.listCalls }

// GetCalls returns the number of GetMessage calls observed.
func (s *Stub) GetCalls() int { s.mu.Lock(); defer s.mu.Unlock(); return s.getCalls }

// SendCalls returns the number of SendMessage calls observed.
func (s *Stub) SendCalls() int { s.mu.Lock(); defer s.mu.Unlock(); return s.sendCalls }

// LabelCalls returns the number of ModifyLabels calls observed.
func (s *Stub) LabelCalls() int { s.mu.Lock(); defer s.mu.Unlock(); return s.labelCalls }

// Sent returns a copy of all successfully sent messages.
func (s *Stub) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
