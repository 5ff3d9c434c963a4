package mailbox

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// hydrateConcurrency bounds parallel GetMessage calls during thread
// hydration. The provider rate limiter still applies underneath.
const hydrateConcurrency = 4

// HydrateThread fetches every message of a thread into a Thread value.
// Fetches run concurrently; ordering is restored by Thread.Add, which inserts
// chronologically.
func HydrateThread(ctx context.Context, p Provider, threadID string) (*Thread, error) {
	refs, err := p.ListMessages(ctx, ThreadQuery(threadID), 0)
	if err != nil {
		return nil, fmt.Errorf("listing thread %s: %w", threadID, err)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrNotFound)
	}

	msgs := make([]*Message, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i, ref := range refs {
		g.Go(func() error {
			msg, err := p.GetMessage(gctx, ref.ID)
			if err != nil {
				return fmt.Errorf("fetching message %s: %w", ref.ID, err)
			}
			msgs[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	thread := NewThread(threadID)
	for _, msg := range msgs {
		thread.Add(*msg)
	}
	return thread, nil
}
