package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the exchange-reported order lifecycle.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is one leg order for the duration of a single trade. It is owned
// exclusively by the execution pipeline and discarded once the trade settles
// or is unwound.
type Order struct {
	ExchangeID   string
	Symbol       string
	Side         OrderSide
	Price        float64 // requested limit price, snapped to the symbol tick
	Amount       float64 // requested amount in base units
	Filled       float64 // actual filled amount in base units
	AvgFillPrice float64 // actual average fill price
	Status       OrderStatus
	CreatedAt    time.Time
}

// OrderFill is the exchange's answer to a fill-status query.
type OrderFill struct {
	Status       OrderStatus
	Filled       float64
	AvgFillPrice float64
}

// TradeState is the execution pipeline's linear state machine for one trade.
type TradeState string

const (
	TradeStateSizing    TradeState = "sizing"
	TradeStateLeg1      TradeState = "leg_1"
	TradeStateLeg2      TradeState = "leg_2"
	TradeStateLeg3      TradeState = "leg_3"
	TradeStateSettled   TradeState = "settled"
	TradeStateUnwinding TradeState = "unwinding"
	TradeStateFailed    TradeState = "failed"
)

// TradeLeg records how one leg of an executed trade went.
type TradeLeg struct {
	Symbol       string    `json:"symbol"`
	Side         OrderSide `json:"side"`
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"`
	Filled       float64   `json:"filled"`
	AvgFillPrice float64   `json:"avg_fill_price"`
	OrderID      string    `json:"order_id"`
}

// TradeResult is the outcome of one run through the execution pipeline.
type TradeResult struct {
	ID            string
	RouteID       string
	State         TradeState
	Notional      float64 // anchor-asset amount committed at entry
	FinalAmount   float64 // anchor-asset amount after the third leg
	ProfitPercent float64
	ProfitAbs     float64
	Legs          []TradeLeg
	Err           error
	StartedAt     time.Time
	CompletedAt   time.Time
}

// Settled reports whether the trade completed all three legs.
func (t TradeResult) Settled() bool {
	return t.State == TradeStateSettled
}
