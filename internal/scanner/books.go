package scanner

import (
	"context"

	"github.com/avolkov/triarb/internal/domain"
	"github.com/avolkov/triarb/internal/exchange"
)

// CachedBookSource is a read-through order-book source: snapshots come from
// the shared TTL cache when fresh and from the exchange otherwise. Routes
// that share a symbol within one scan cycle hit the exchange once.
type CachedBookSource struct {
	ex    exchange.Exchange
	cache domain.BookCache
}

// NewCachedBookSource creates a CachedBookSource. cache may be nil, in which
// case every call goes straight to the exchange.
func NewCachedBookSource(ex exchange.Exchange, cache domain.BookCache) *CachedBookSource {
	return &CachedBookSource{ex: ex, cache: cache}
}

// Book returns a snapshot for the symbol, consulting the cache first. Cache
// write failures are ignored: the snapshot is already in hand and the cache
// is an optimization only.
func (s *CachedBookSource) Book(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.Get(ctx, symbol); err == nil {
			return snap, nil
		}
		// Miss, expired, or degraded cache: fetch from the exchange.
	}

	snap, err := s.ex.FetchOrderBook(ctx, symbol)
	if err != nil {
		return domain.OrderBookSnapshot{}, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, symbol, snap)
	}
	return snap, nil
}

// Compile-time interface check.
var _ BookSource = (*CachedBookSource)(nil)
