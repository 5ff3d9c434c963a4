package mailbox

import (
	"context"
	"errors"
	"strings"
)

// Provider errors. Implementations map their transport failures onto these so
// callers can classify without knowing the wire protocol.
var (
	// ErrUnavailable indicates a transient transport failure. Safe to retry.
	ErrUnavailable = errors.New("mail provider unavailable")

	// ErrRateLimited indicates the provider rejected the call due to quota.
	// Safe to retry after backoff.
	ErrRateLimited = errors.New("mail provider rate limited")

	// ErrNotFound indicates the referenced message or thread does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrInvalidRecipient indicates the provider rejected a recipient
	// address. Never retried.
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// Provider is the abstract mail transport the assistant operates against.
// Gmail is the production implementation; tests use the stub in
// the mailboxtest package.
//
// ListMessages and GetMessage are read-only. SendMessage and ModifyLabels
// mutate provider state; SendMessage takes an idempotency token so that
// ambiguous outcomes (e.g. a timeout after dispatch) can be re-entered
// without duplicate delivery.
type Provider interface {
	ListMessages(ctx context.Context, query string, max int64) ([]MessageRef, error)
	GetMessage(ctx context.Context, id string) (*Message, error)
	SendMessage(ctx context.Context, draft *Draft, idempotencyToken string) (string, error)
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
}

// IsTransient reports whether err represents a failure that may succeed on
// retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}

// threadQueryPrefix marks a ListMessages query that selects a whole thread by
// id rather than running a provider search. Mail search syntaxes have no
// thread operator, so implementations must intercept this form and use their
// thread-lookup API instead of passing it to search.
const threadQueryPrefix = "threadId:"

// ThreadQuery builds the query form that selects every message of a thread.
func ThreadQuery(threadID string) string {
	return threadQueryPrefix + threadID
}

// CutThreadQuery reports whether query is a thread selection and returns the
// thread id when it is.
func CutThreadQuery(query string) (string, bool) {
	return strings.CutPrefix(query, threadQueryPrefix)
}
