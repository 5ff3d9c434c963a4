package mailbox_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/jaredassist/jared/internal/mailbox"

	gmail "google.golang.org/api/gmail/v1"
)

// fakeGmail records the Gmail API paths a provider call touches and serves
// canned responses for the list and thread endpoints.
type fakeGmail struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeGmail) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path+"?"+r.URL.RawQuery)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(r.URL.Path, "/threads/"):
			w.Write([]byte(`{"id":"T1","messages":[
				{"id":"m1","threadId":"T1"},
				{"id":"m2","threadId":"T1"}]}`))
		case strings.HasSuffix(r.URL.Path, "/messages"):
			w.Write([]byte(`{"messages":[{"id":"m1","threadId":"T1"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func (f *fakeGmail) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.paths))
	copy(out, f.paths)
	return out
}

func newFakeProvider(t *testing.T) (*mailbox.GmailProvider, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	gsvc, err := gmail.NewService(ctx,
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	return mailbox.NewGmailProviderForService(gsvc), fake
}

func TestListMessagesThreadQueryUsesThreadsAPI(t *testing.T) {
	provider, fake := newFakeProvider(t)

	refs, err := provider.ListMessages(context.Background(), mailbox.ThreadQuery("T1"), 0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "m1", refs[0].ID)
	assert.Equal(t, "T1", refs[0].ThreadID)

	// Gmail search has no thread operator; the thread form must never reach
	// the q parameter.
	reqs := fake.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0], "/threads/T1")
	assert.NotContains(t, reqs[0], "threadId")
}

func TestListMessagesThreadQueryHonorsMax(t *testing.T) {
	provider, _ := newFakeProvider(t)

	refs, err := provider.ListMessages(context.Background(), mailbox.ThreadQuery("T1"), 1)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestListMessagesSearchQueryUsesSearchAPI(t *testing.T) {
	provider, fake := newFakeProvider(t)

	refs, err := provider.ListMessages(context.Background(), "from:alice@example.com", 10)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	reqs := fake.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0], "/messages?")
	assert.Contains(t, reqs[0], "q=from")
}

func TestThreadQueryRoundTrip(t *testing.T) {
	id, ok := mailbox.CutThreadQuery(mailbox.ThreadQuery("T42"))
	require.True(t, ok)
	assert.Equal(t, "T42", id)

	_, ok = mailbox.CutThreadQuery("from:alice@example.com")
	assert.False(t, ok)
}
