// Package exchange defines the interface through which the scanner and trader
// talk to a spot exchange. Connectivity, authentication, and rate limiting
// live behind this boundary; the core treats it as a black box.
package exchange

import (
	"context"

	"github.com/avolkov/triarb/internal/domain"
)

// Exchange is the full set of calls the core consumes. Implementations must
// be safe for concurrent use: route evaluations fan out within a scan cycle.
type Exchange interface {
	// LoadMarkets returns the tradable symbol universe with per-symbol
	// trading constraints. Called once at startup.
	LoadMarkets(ctx context.Context) (*domain.Market, error)

	// FetchOrderBook returns a full depth snapshot for the symbol.
	FetchOrderBook(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error)

	// FetchBalance returns per-asset balances keyed by asset code.
	FetchBalance(ctx context.Context) (map[string]domain.Balance, error)

	// CreateOrder places a limit order and returns the exchange order ID.
	CreateOrder(ctx context.Context, symbol string, side domain.OrderSide, amount, price float64) (string, error)

	// FetchOrder queries the fill status of a previously placed order.
	FetchOrder(ctx context.Context, orderID, symbol string) (domain.OrderFill, error)

	// CancelOrder cancels an open order. Cancelling an already-filled or
	// already-cancelled order returns an error the caller may ignore.
	CancelOrder(ctx context.Context, orderID, symbol string) error
}
