package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avolkov/triarb/internal/domain"
)

// BookCache stores whole order-book snapshots as JSON values with a short
// TTL. Several legs of different routes share the same symbol within one
// scan cycle; the cache collapses those into a single exchange fetch.
//
// Key schema: book:{symbol} -> JSON OrderBookSnapshot, expiring after TTL.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache with the given entry TTL.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &BookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookKey(symbol string) string { return "book:" + symbol }

// Get returns the cached snapshot, or domain.ErrNotFound on a miss or an
// expired entry.
func (bc *BookCache) Get(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	raw, err := bc.rdb.Get(ctx, bookKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get book %s: %w", symbol, err)
	}

	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: decode book %s: %w", symbol, err)
	}
	return snap, nil
}

// Set stores the snapshot, resetting its TTL.
func (bc *BookCache) Set(ctx context.Context, symbol string, snap domain.OrderBookSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode book %s: %w", symbol, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(symbol), raw, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", symbol, err)
	}
	return nil
}

var _ domain.BookCache = (*BookCache)(nil)
