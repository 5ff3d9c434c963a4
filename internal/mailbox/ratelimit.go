package mailbox

import (
	"context"

	"golang.org/x/time/rate"
)

// Gmail grants 250 quota units per user per second. Budget below the cap so
// bursts from concurrent hydration do not trip the server-side limiter.
const (
	quotaUnitsPerSecond = 250
	limiterPerSecond    = quotaUnitsPerSecond * 0.8
	limiterBurst        = quotaUnitsPerSecond
)

// RateLimited wraps a Provider with a client-side quota-unit rate limiter so
// the assistant stays under the provider's per-user quota instead of
// discovering it through 429 responses.
type RateLimited struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimited wraps provider with the default Gmail quota budget.
func NewRateLimited(provider Provider) *RateLimited {
	return &RateLimited{
		provider: provider,
		limiter:  rate.NewLimiter(limiterPerSecond, limiterBurst),
	}
}

func (r *RateLimited) ListMessages(ctx context.Context, query string, max int64) ([]MessageRef, error) {
	if err := r.limiter.WaitN(ctx, quotaUnitsPerList); err != nil {
		return nil, err
	}
	return r.provider.ListMessages(ctx, query, max)
}

func (r *RateLimited) GetMessage(ctx context.Context, id string) (*Message, error) {
	if err := r.limiter.WaitN(ctx, quotaUnitsPerGet); err != nil {
		return nil, err
	}
	return r.provider.GetMessage(ctx, id)
}

func (r *RateLimited) SendMessage(ctx context.Context, draft *Draft, idempotencyToken string) (string, error) {
	if err := r.limiter.WaitN(ctx, quotaUnitsPerSend); err != nil {
		return "", err
	}
	return r.provider.SendMessage(ctx, draft, idempotencyToken)
}

func (r *RateLimited) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	if err := r.limiter.WaitN(ctx, quotaUnitsPerModify); err != nil {
		return err
	}
	return r.provider.ModifyLabels(ctx, id, add, remove)
}
