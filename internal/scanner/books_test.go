package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/triarb/internal/domain"
)

// bookOnlyExchange satisfies exchange.Exchange for book-source tests; only
// FetchOrderBook is exercised.
type bookOnlyExchange struct {
	snaps   map[string]domain.OrderBookSnapshot
	fetches int
}

func (b *bookOnlyExchange) LoadMarkets(context.Context) (*domain.Market, error) {
	return nil, errors.New("not used")
}

func (b *bookOnlyExchange) FetchOrderBook(_ context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	b.fetches++
	snap, ok := b.snaps[symbol]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (b *bookOnlyExchange) FetchBalance(context.Context) (map[string]domain.Balance, error) {
	return nil, errors.New("not used")
}

func (b *bookOnlyExchange) CreateOrder(context.Context, string, domain.OrderSide, float64, float64) (string, error) {
	return "", errors.New("not used")
}

func (b *bookOnlyExchange) FetchOrder(context.Context, string, string) (domain.OrderFill, error) {
	return domain.OrderFill{}, errors.New("not used")
}

func (b *bookOnlyExchange) CancelOrder(context.Context, string, string) error {
	return errors.New("not used")
}

type memBookCache struct {
	snaps map[string]domain.OrderBookSnapshot
	sets  int
	err   error
}

func newMemBookCache() *memBookCache {
	return &memBookCache{snaps: make(map[string]domain.OrderBookSnapshot)}
}

func (m *memBookCache) Get(_ context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	if m.err != nil {
		return domain.OrderBookSnapshot{}, m.err
	}
	snap, ok := m.snaps[symbol]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (m *memBookCache) Set(_ context.Context, symbol string, snap domain.OrderBookSnapshot) error {
	m.sets++
	if m.err != nil {
		return m.err
	}
	m.snaps[symbol] = snap
	return nil
}

func btcBook() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Symbol: "BTC/USDT",
		Asks:   []domain.PriceLevel{{Price: 50000, Volume: 1}},
	}
}

func TestBookSourceCacheMissFetchesAndStores(t *testing.T) {
	ex := &bookOnlyExchange{snaps: map[string]domain.OrderBookSnapshot{"BTC/USDT": btcBook()}}
	cache := newMemBookCache()
	src := NewCachedBookSource(ex, cache)

	snap, err := src.Book(context.Background(), "BTC/USDT")

	require.NoError(t, err)
	assert.Equal(t, btcBook(), snap)
	assert.Equal(t, 1, ex.fetches)
	assert.Equal(t, 1, cache.sets)
}

func TestBookSourceCacheHitSkipsExchange(t *testing.T) {
	ex := &bookOnlyExchange{}
	cache := newMemBookCache()
	cache.snaps["BTC/USDT"] = btcBook()
	src := NewCachedBookSource(ex, cache)

	snap, err := src.Book(context.Background(), "BTC/USDT")

	require.NoError(t, err)
	assert.Equal(t, btcBook(), snap)
	assert.Zero(t, ex.fetches)
}

func TestBookSourceDegradedCacheFallsThrough(t *testing.T) {
	ex := &bookOnlyExchange{snaps: map[string]domain.OrderBookSnapshot{"BTC/USDT": btcBook()}}
	cache := newMemBookCache()
	cache.err = errors.New("connection refused")
	src := NewCachedBookSource(ex, cache)

	snap, err := src.Book(context.Background(), "BTC/USDT")

	// A broken cache degrades to direct fetches, never to an error.
	require.NoError(t, err)
	assert.Equal(t, btcBook(), snap)
	assert.Equal(t, 1, ex.fetches)
}

func TestBookSourceNilCache(t *testing.T) {
	ex := &bookOnlyExchange{snaps: map[string]domain.OrderBookSnapshot{"BTC/USDT": btcBook()}}
	src := NewCachedBookSource(ex, nil)

	_, err := src.Book(context.Background(), "BTC/USDT")
	require.NoError(t, err)

	_, err = src.Book(context.Background(), "ETH/USDT")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
