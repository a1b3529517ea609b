package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/avolkov/triarb/internal/domain"
)

// orderbookDepth is the number of levels requested per side. Spot supports up
// to 200; deep books matter because pricing walks them level by level.
const orderbookDepth = "200"

// LoadMarkets fetches the spot instrument universe and returns it as a
// Market. Instruments not currently trading are skipped.
func (c *Client) LoadMarkets(ctx context.Context) (*domain.Market, error) {
	q := url.Values{}
	q.Set("category", c.category)

	result, err := c.doGet(ctx, "/v5/market/instruments-info", q, false)
	if err != nil {
		return nil, fmt.Errorf("bybit: load markets: %w", err)
	}

	var payload instrumentsResult
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("bybit: decode instruments: %w", err)
	}

	symbols := make(map[string]domain.Symbol, len(payload.List))
	for _, inst := range payload.List {
		if inst.Status != "Trading" {
			continue
		}
		s := inst.toSymbol()
		symbols[s.Name] = s
	}

	return domain.NewMarket(symbols), nil
}

// FetchOrderBook fetches a full depth snapshot for the symbol. The canonical
// "BASE/QUOTE" name is translated to the exchange's concatenated form.
func (c *Client) FetchOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", concatSymbol(symbol))
	q.Set("limit", orderbookDepth)

	result, err := c.doGet(ctx, "/v5/market/orderbook", q, false)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("bybit: fetch order book %s: %w", symbol, err)
	}

	var payload orderbookResult
	if err := json.Unmarshal(result, &payload); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("bybit: decode order book %s: %w", symbol, err)
	}

	snap := domain.OrderBookSnapshot{
		Symbol:    symbol,
		Asks:      toLevels(payload.Asks),
		Bids:      toLevels(payload.Bids),
		Timestamp: time.UnixMilli(payload.Ts),
	}
	return snap, nil
}

// toLevels converts [price, size] string pairs into price levels, dropping
// malformed entries.
func toLevels(raw [][2]string) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		price := parseFloat(pair[0])
		volume := parseFloat(pair[1])
		if price <= 0 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Volume: volume})
	}
	return levels
}

// concatSymbol converts "BTC/USDT" into the exchange form "BTCUSDT".
func concatSymbol(symbol string) string {
	out := make([]byte, 0, len(symbol))
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			continue
		}
		out = append(out, symbol[i])
	}
	return string(out)
}
