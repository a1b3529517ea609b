package domain

import (
	"context"
	"time"
)

// BookCache is a short-TTL read-through cache of order-book snapshots keyed
// by symbol, shared across route evaluations within one scan cycle. Entries
// expire by TTL only; there is no invalidation.
type BookCache interface {
	Get(ctx context.Context, symbol string) (OrderBookSnapshot, error)
	Set(ctx context.Context, symbol string, snap OrderBookSnapshot) error
}

// RateLimiter throttles calls against the exchange, which is the single
// serialization point shared by all concurrent route evaluations.
type RateLimiter interface {
	// Allow reports whether one more request fits the window right now,
	// counting it when it does.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request is admitted or the context ends.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}
