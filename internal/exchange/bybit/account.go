package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/avolkov/triarb/internal/domain"
)

// FetchBalance returns the unified account's per-coin balances. The unified
// account reports availableToWithdraw rather than a free field for some coin
// types; both are mapped onto Balance.Free, with wallet balance as Total.
func (c *Client) FetchBalance(ctx context.Context) (map[string]domain.Balance, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")

	result, err := c.doGet(ctx, "/v5/account/wallet-balance", q, true)
	if err != nil {
		return nil, fmt.Errorf("bybit: fetch balance: %w", err)
	}

	var payload balanceResult
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, fmt.Errorf("bybit: decode balance: %w", err)
	}

	balances := make(map[string]domain.Balance)
	for _, acct := range payload.List {
		for _, coin := range acct.Coin {
			free := parseFloat(coin.Free)
			if free == 0 {
				free = parseFloat(coin.AvailableToWithdraw)
			}
			balances[coin.Coin] = domain.Balance{
				Asset: coin.Coin,
				Free:  free,
				Total: parseFloat(coin.WalletBalance),
			}
		}
	}
	return balances, nil
}

// CreateOrder places a limit order and returns the exchange order ID.
func (c *Client) CreateOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, price float64) (string, error) {
	body := map[string]any{
		"category":  c.category,
		"symbol":    concatSymbol(symbol),
		"side":      orderSideParam(side),
		"orderType": "Limit",
		"qty":       strconv.FormatFloat(amount, 'f', -1, 64),
		"price":     strconv.FormatFloat(price, 'f', -1, 64),
	}

	result, err := c.doPost(ctx, "/v5/order/create", body)
	if err != nil {
		return "", fmt.Errorf("bybit: create order %s %s: %w", symbol, side, err)
	}

	var payload createOrderResult
	if err := json.Unmarshal(result, &payload); err != nil {
		return "", fmt.Errorf("bybit: decode create order: %w", err)
	}
	if payload.OrderID == "" {
		return "", fmt.Errorf("bybit: create order %s: empty order id", symbol)
	}
	return payload.OrderID, nil
}

// FetchOrder queries an order's fill status. Open orders live on the
// realtime endpoint; settled ones move to history, so both are consulted.
func (c *Client) FetchOrder(ctx context.Context, orderID, symbol string) (domain.OrderFill, error) {
	for _, path := range []string{"/v5/order/realtime", "/v5/order/history"} {
		q := url.Values{}
		q.Set("category", c.category)
		q.Set("symbol", concatSymbol(symbol))
		q.Set("orderId", orderID)

		result, err := c.doGet(ctx, path, q, true)
		if err != nil {
			return domain.OrderFill{}, fmt.Errorf("bybit: fetch order %s: %w", orderID, err)
		}

		var payload orderListResult
		if err := json.Unmarshal(result, &payload); err != nil {
			return domain.OrderFill{}, fmt.Errorf("bybit: decode order %s: %w", orderID, err)
		}
		for _, o := range payload.List {
			if o.OrderID == orderID {
				return o.toFill(), nil
			}
		}
	}
	return domain.OrderFill{}, fmt.Errorf("bybit: fetch order %s: %w", orderID, domain.ErrNotFound)
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) error {
	body := map[string]any{
		"category": c.category,
		"symbol":   concatSymbol(symbol),
		"orderId":  orderID,
	}

	if _, err := c.doPost(ctx, "/v5/order/cancel", body); err != nil {
		return fmt.Errorf("bybit: cancel order %s: %w", orderID, err)
	}
	return nil
}

func orderSideParam(side domain.OrderSide) string {
	if side == domain.OrderSideBuy {
		return "Buy"
	}
	return "Sell"
}
