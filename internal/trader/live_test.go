package trader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkov/triarb/internal/domain"
)

// fakeExchange scripts order flow for the pipeline: every created order is
// assigned a sequential ID and resolves to the fill configured per symbol.
type fakeExchange struct {
	mu        sync.Mutex
	balances  map[string]domain.Balance
	books     map[string]domain.OrderBookSnapshot
	fills     map[string]domain.OrderFill // keyed by symbol
	createErr map[string]error

	nextID    int
	created   []domain.Order // symbol/side/amount/price as requested
	orders    map[string]string
	cancelled []string // order IDs, in cancellation order
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		balances:  map[string]domain.Balance{"USDT": {Asset: "USDT", Free: 1000}},
		books:     make(map[string]domain.OrderBookSnapshot),
		fills:     make(map[string]domain.OrderFill),
		createErr: make(map[string]error),
		orders:    make(map[string]string),
	}
}

func (f *fakeExchange) LoadMarkets(context.Context) (*domain.Market, error) {
	return nil, errors.New("not used")
}

func (f *fakeExchange) FetchBalance(context.Context) (map[string]domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances, nil
}

func (f *fakeExchange) FetchOrderBook(_ context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.books[symbol]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeExchange) CreateOrder(_ context.Context, symbol string, side domain.OrderSide, amount, price float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[symbol]; err != nil {
		return "", err
	}
	f.nextID++
	id := fmt.Sprintf("ord-%d", f.nextID)
	f.created = append(f.created, domain.Order{ExchangeID: id, Symbol: symbol, Side: side, Amount: amount, Price: price})
	f.orders[id] = symbol
	return id, nil
}

func (f *fakeExchange) FetchOrder(_ context.Context, _, symbol string) (domain.OrderFill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fill, ok := f.fills[symbol]
	if !ok {
		return domain.OrderFill{}, fmt.Errorf("no fill scripted for %s", symbol)
	}
	return fill, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, orderID, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	// A cancelled order stops filling.
	if fill, ok := f.fills[symbol]; ok && fill.Status == domain.OrderStatusOpen {
		fill.Status = domain.OrderStatusCancelled
		f.fills[symbol] = fill
	}
	return nil
}

// willFill scripts a complete immediate fill for the symbol: whatever amount
// the pipeline requests comes back filled at the given price.
func (f *fakeExchange) willFill(symbol string, amount, price float64) {
	f.fills[symbol] = domain.OrderFill{Status: domain.OrderStatusFilled, Filled: amount, AvgFillPrice: price}
}

func testMarket() *domain.Market {
	return domain.NewMarket(map[string]domain.Symbol{
		"BTC/USDT": {Name: "BTC/USDT", Base: "BTC", Quote: "USDT"},
		"ETH/BTC":  {Name: "ETH/BTC", Base: "ETH", Quote: "BTC"},
		"ETH/USDT": {Name: "ETH/USDT", Base: "ETH", Quote: "USDT"},
	})
}

func testEval() domain.RouteEvaluation {
	return domain.RouteEvaluation{
		Route: domain.Route{Anchor: "USDT", Mid1: "BTC", Mid2: "ETH"},
		Legs: [3]domain.Leg{
			{Symbol: "BTC/USDT", Side: domain.OrderSideBuy},
			{Symbol: "ETH/BTC", Side: domain.OrderSideBuy},
			{Symbol: "ETH/USDT", Side: domain.OrderSideSell},
		},
		Notional:   100,
		Actionable: true,
	}
}

func testConfig() Config {
	return Config{
		CommissionRate: 0.001,
		SafetyFactor:   0.98,
		FillTimeout:    100 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingStore struct {
	mu      sync.Mutex
	results []domain.TradeResult
}

func (r *recordingStore) Insert(_ context.Context, res domain.TradeResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

func (r *recordingStore) ListBefore(context.Context, time.Time) ([]domain.TradeResult, error) {
	return nil, nil
}

func (r *recordingStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// seedHappyPath scripts deep books and full fills for all three legs and
// returns the expected final anchor amount.
func seedHappyPath(ex *fakeExchange) float64 {
	ex.books["BTC/USDT"] = domain.OrderBookSnapshot{Asks: []domain.PriceLevel{{Price: 100, Volume: 50}}}
	ex.books["ETH/BTC"] = domain.OrderBookSnapshot{Asks: []domain.PriceLevel{{Price: 0.05, Volume: 100000}}}
	ex.books["ETH/USDT"] = domain.OrderBookSnapshot{Bids: []domain.PriceLevel{{Price: 5.2, Volume: 1000}}}

	// Mirror the pipeline's sizing: buy amounts carry the safety factor,
	// fills return the requested amount, fees shave the received asset.
	btc := 100.0 / 100 * 0.98
	ex.willFill("BTC/USDT", btc, 100)
	btcHeld := btc * 0.999

	eth := btcHeld / 0.05 * 0.98
	ex.willFill("ETH/BTC", eth, 0.05)
	ethHeld := eth * 0.999

	ex.willFill("ETH/USDT", ethHeld, 5.2)
	return ethHeld * 5.2 * 0.999
}

func TestExecuteSettlesAllThreeLegs(t *testing.T) {
	ex := newFakeExchange()
	wantFinal := seedHappyPath(ex)
	store := &recordingStore{}

	live := NewLive(testConfig(), ex, testMarket(), store, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	require.True(t, result.Settled(), "state=%s err=%v", result.State, result.Err)
	require.Len(t, result.Legs, 3)
	assert.InDelta(t, wantFinal, result.FinalAmount, 1e-9)
	assert.InDelta(t, wantFinal-100, result.ProfitAbs, 1e-9)
	assert.InDelta(t, (wantFinal/100-1)*100, result.ProfitPercent, 1e-9)

	// Legs ran in route order against the scripted books.
	require.Len(t, ex.created, 3)
	assert.Equal(t, "BTC/USDT", ex.created[0].Symbol)
	assert.Equal(t, domain.OrderSideBuy, ex.created[0].Side)
	assert.Equal(t, "ETH/BTC", ex.created[1].Symbol)
	assert.Equal(t, "ETH/USDT", ex.created[2].Symbol)
	assert.Equal(t, domain.OrderSideSell, ex.created[2].Side)

	assert.Empty(t, ex.cancelled)
	require.Len(t, store.results, 1)
	assert.Equal(t, result.ID, store.results[0].ID)
}

func TestExecuteBuySizingUsesSafetyFactor(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)

	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	live.Execute(context.Background(), testEval())

	require.NotEmpty(t, ex.created)
	// 100 USDT at price 100 with safety 0.98 buys 0.98 BTC.
	assert.InDelta(t, 0.98, ex.created[0].Amount, 1e-9)
}

func TestExecuteInsufficientBalance(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	ex.balances["USDT"] = domain.Balance{Asset: "USDT", Free: 50}

	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.ErrorIs(t, result.Err, domain.ErrInsufficientBalance)
	assert.Empty(t, ex.created, "no order may be placed without balance")
}

func TestExecuteLeg2FailureCancelsLeg1(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	ex.createErr["ETH/BTC"] = errors.New("order rejected")

	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	require.Error(t, result.Err)

	// Leg 1's order received a cancellation attempt before the trade
	// reported failure.
	require.Len(t, ex.created, 1)
	assert.Equal(t, []string{ex.created[0].ExchangeID}, ex.cancelled)
}

func TestExecuteUnwindsNewestFirst(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	// Leg 3's order is placed but comes back cancelled with zero fill.
	ex.fills["ETH/USDT"] = domain.OrderFill{Status: domain.OrderStatusCancelled}

	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.ErrorIs(t, result.Err, domain.ErrZeroFill)

	require.Len(t, ex.created, 3)
	want := []string{ex.created[2].ExchangeID, ex.created[1].ExchangeID, ex.created[0].ExchangeID}
	assert.Equal(t, want, ex.cancelled)
}

func TestExecutePartialFillIsFailure(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	ex.fills["BTC/USDT"] = domain.OrderFill{Status: domain.OrderStatusCancelled, Filled: 0.4, AvgFillPrice: 100}

	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.ErrorIs(t, result.Err, domain.ErrPartialFill)
	assert.Empty(t, result.Legs)
}

func TestExecuteFillTimeoutCancels(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	// Leg 1 never fills; the fake flips it to cancelled once the pipeline
	// gives up and cancels.
	ex.fills["BTC/USDT"] = domain.OrderFill{Status: domain.OrderStatusOpen}

	cfg := testConfig()
	cfg.FillTimeout = 5 * time.Millisecond

	live := NewLive(cfg, ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.ErrorIs(t, result.Err, domain.ErrZeroFill)
	assert.NotEmpty(t, ex.cancelled)
}

func TestExecuteInsufficientDepth(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	ex.books["BTC/USDT"] = domain.OrderBookSnapshot{Asks: []domain.PriceLevel{{Price: 100, Volume: 0.0001}}}

	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.ErrorIs(t, result.Err, domain.ErrInsufficientDepth)
	assert.Empty(t, ex.created)
}

func TestExecuteMinNotionalRejected(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	market := domain.NewMarket(map[string]domain.Symbol{
		"BTC/USDT": {Name: "BTC/USDT", Base: "BTC", Quote: "USDT", MinNotional: 500},
		"ETH/BTC":  {Name: "ETH/BTC", Base: "ETH", Quote: "BTC"},
		"ETH/USDT": {Name: "ETH/USDT", Base: "ETH", Quote: "USDT"},
	})

	live := NewLive(testConfig(), ex, market, nil, nil, quietLogger())
	result := live.Execute(context.Background(), testEval())

	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.ErrorIs(t, result.Err, domain.ErrPriceConstraint)
	assert.Empty(t, ex.created)
}

func TestExecutePersistsFailedTrades(t *testing.T) {
	ex := newFakeExchange()
	seedHappyPath(ex)
	ex.createErr["BTC/USDT"] = errors.New("down for maintenance")
	store := &recordingStore{}

	live := NewLive(testConfig(), ex, testMarket(), store, nil, quietLogger())
	live.Execute(context.Background(), testEval())

	require.Len(t, store.results, 1)
	assert.Equal(t, domain.TradeStateFailed, store.results[0].State)
	assert.Error(t, store.results[0].Err)
}

func TestExecuteSurvivesCancelledParent(t *testing.T) {
	ex := newFakeExchange()
	wantFinal := seedHappyPath(ex)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A trade handed off before shutdown still runs to completion.
	live := NewLive(testConfig(), ex, testMarket(), nil, nil, quietLogger())
	result := live.Execute(ctx, testEval())

	require.True(t, result.Settled(), "state=%s err=%v", result.State, result.Err)
	assert.InDelta(t, wantFinal, result.FinalAmount, 1e-9)
}
