package ratelimit

import "context"

// RateLimiter paces outbound delivery calls per provider path ("fcm",
// "webpush") so one large batch cannot hammer a provider.
type RateLimiter interface {
	Allow(ctx context.Context, path string) (bool, error)
	Wait(ctx context.Context, path string) error
}

// Noop passes every call through. Used when no Redis is configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }

func (Noop) Wait(context.Context, string) error { return nil }
