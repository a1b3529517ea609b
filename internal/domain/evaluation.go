package domain

import "time"

// LegQuote is the result of pricing one leg for a target notional against
// real order-book depth.
type LegQuote struct {
	// AvgPrice is the volume-weighted price the leg would fill at. It is
	// meaningless when Unfillable is set.
	AvgPrice float64
	// FilledNotional is the quote-currency value consumed walking the book,
	// equal to the target when the book covers it.
	FilledNotional float64
	// Liquidity is the total notional visible on the book side, uncapped by
	// the target, so sizing can scale up to the book's real capacity.
	Liquidity float64
	// Unfillable is set when the book cannot cover the target notional. No
	// partial-fill price is reported in that case.
	Unfillable bool
}

// RouteEvaluation is the per-cycle result of pricing all three legs of a
// route. It is ephemeral and never outlives one scan cycle.
type RouteEvaluation struct {
	Route         Route
	Legs          [3]Leg
	Quotes        [3]LegQuote
	Yield         float64 // net multiplicative yield across the three legs
	ProfitPercent float64
	MinLiquidity  float64
	Notional      float64 // trade notional derived from observed liquidity
	// Profitable is set once the profit and liquidity gates pass. The route
	// may still be held back by the debounce gate, so a profitable
	// evaluation is not necessarily actionable.
	Profitable    bool
	Actionable    bool
	Reason        string // why the evaluation was rejected, empty when actionable
	EvaluatedAt   time.Time
}

// RouteLogRecord is the structured record persisted for every accepted route,
// one row per evaluation.
type RouteLogRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	RouteID       string    `json:"route_id"`
	ProfitPercent float64   `json:"profit_percent"`
	Notional      float64   `json:"notional"`
	MinLiquidity  float64   `json:"min_liquidity"`
	Executed      bool      `json:"executed"`
}
