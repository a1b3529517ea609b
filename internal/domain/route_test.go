package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marketOf(names ...string) *Market {
	symbols := make(map[string]Symbol, len(names))
	for _, name := range names {
		var base, quote string
		for i := 0; i < len(name); i++ {
			if name[i] == '/' {
				base, quote = name[:i], name[i+1:]
			}
		}
		symbols[name] = Symbol{Name: name, Base: base, Quote: quote}
	}
	return NewMarket(symbols)
}

func TestRouteIDAndHash(t *testing.T) {
	r := Route{Anchor: "USDT", Mid1: "BTC", Mid2: "ETH"}

	assert.Equal(t, "USDT->BTC->ETH->USDT", r.ID())
	// Order matters: (A,B,C) and (A,C,B) are distinct routes.
	other := Route{Anchor: "USDT", Mid1: "ETH", Mid2: "BTC"}
	assert.NotEqual(t, r.Hash(), other.Hash())
	assert.Equal(t, r.Hash(), Route{Anchor: "USDT", Mid1: "BTC", Mid2: "ETH"}.Hash())
}

func TestRouteLegsStandardTriangle(t *testing.T) {
	m := marketOf("BTC/USDT", "ETH/BTC", "ETH/USDT")
	r := Route{Anchor: "USDT", Mid1: "BTC", Mid2: "ETH"}

	legs, ok := r.Legs(m)

	require.True(t, ok)
	assert.Equal(t, Leg{Symbol: "BTC/USDT", Side: OrderSideBuy}, legs[0])
	assert.Equal(t, Leg{Symbol: "ETH/BTC", Side: OrderSideBuy}, legs[1])
	assert.Equal(t, Leg{Symbol: "ETH/USDT", Side: OrderSideSell}, legs[2])
}

func TestRouteLegsReversedOrientation(t *testing.T) {
	// Every hop listed the other way round flips the side.
	m := marketOf("USDT/BTC", "BTC/ETH", "USDT/ETH")
	r := Route{Anchor: "USDT", Mid1: "BTC", Mid2: "ETH"}

	legs, ok := r.Legs(m)

	require.True(t, ok)
	assert.Equal(t, Leg{Symbol: "USDT/BTC", Side: OrderSideSell}, legs[0])
	assert.Equal(t, Leg{Symbol: "BTC/ETH", Side: OrderSideSell}, legs[1])
	assert.Equal(t, Leg{Symbol: "USDT/ETH", Side: OrderSideBuy}, legs[2])
}

func TestRouteLegsMissingHop(t *testing.T) {
	m := marketOf("BTC/USDT", "ETH/USDT")
	r := Route{Anchor: "USDT", Mid1: "BTC", Mid2: "ETH"}

	_, ok := r.Legs(m)
	assert.False(t, ok)
}

func TestBalanceAvailable(t *testing.T) {
	assert.Equal(t, 5.0, Balance{Free: 5, Total: 10}.Available())
	// Some account types only report Total.
	assert.Equal(t, 10.0, Balance{Total: 10}.Available())
}

func TestSnapshotSide(t *testing.T) {
	snap := OrderBookSnapshot{
		Asks: []PriceLevel{{Price: 101, Volume: 1}},
		Bids: []PriceLevel{{Price: 99, Volume: 1}},
	}

	assert.Equal(t, snap.Asks, snap.Side(OrderSideBuy))
	assert.Equal(t, snap.Bids, snap.Side(OrderSideSell))
}

func TestTradeResultSettled(t *testing.T) {
	assert.True(t, TradeResult{State: TradeStateSettled}.Settled())
	assert.False(t, TradeResult{State: TradeStateFailed}.Settled())
	assert.False(t, TradeResult{State: TradeStateLeg2}.Settled())
}
