// Package trader turns an accepted route evaluation into three sequential
// limit orders on the exchange, unwinding on any failure. The simulator
// variant reports what the live pipeline would have done without placing
// orders.
package trader

import (
	"context"
	"math"
	"time"

	"github.com/avolkov/triarb/internal/domain"
)

// Notifier delivers per-trade progress messages. Implementations log their
// own delivery failures.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the execution parameters shared by the live pipeline.
type Config struct {
	// CommissionRate is the flat per-leg taker fee applied to the received
	// asset on every fill.
	CommissionRate float64
	// SafetyFactor shrinks each leg's computed amount to leave headroom for
	// fees and rounding. Defaults to 0.98.
	SafetyFactor float64
	// FillTimeout bounds how long one leg may stay open before the order is
	// cancelled and the trade unwound.
	FillTimeout time.Duration
	// PollInterval is the pause between fill-status queries for an open leg.
	PollInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.SafetyFactor <= 0 || c.SafetyFactor > 1 {
		c.SafetyFactor = 0.98
	}
	if c.FillTimeout <= 0 {
		c.FillTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
}

// snapPrice aligns a limit price to the symbol's tick so the exchange does
// not reject it. Buys round up and sells round down, keeping the order
// marketable against the side it was priced from.
func snapPrice(price, tick float64, side domain.OrderSide) float64 {
	if tick <= 0 {
		return price
	}
	steps := price / tick
	if side == domain.OrderSideBuy {
		return math.Ceil(steps-1e-9) * tick
	}
	return math.Floor(steps+1e-9) * tick
}

// realized converts an exchange fill into the amount of the received asset
// after the taker fee. A buy receives base units, a sell receives quote
// units.
func realized(side domain.OrderSide, fill domain.OrderFill, commissionRate float64) float64 {
	if side == domain.OrderSideBuy {
		return fill.Filled * (1 - commissionRate)
	}
	return fill.Filled * fill.AvgFillPrice * (1 - commissionRate)
}
