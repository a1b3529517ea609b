package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/avolkov/triarb/internal/domain"
)

// BookSource supplies order-book snapshots to the evaluator. In production
// this is the read-through TTL cache in front of the exchange; tests inject
// fakes.
type BookSource interface {
	Book(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error)
}

// EvaluatorConfig holds the gating and sizing parameters for route
// evaluation.
type EvaluatorConfig struct {
	// CommissionRate is the flat per-leg taker fee, e.g. 0.001 for 0.1%.
	CommissionRate float64
	// ScanNotional is the fixed quote-currency notional each leg is priced
	// at for the profitability check.
	ScanNotional float64
	// MinProfitPercent / MaxProfitPercent bound the accepted profit. The
	// upper bound filters out too-good-to-be-true readings from stale or
	// crossed books.
	MinProfitPercent float64
	MaxProfitPercent float64
	// MinLiquidity / MaxLiquidity bound the minimum-of-three-legs visible
	// liquidity.
	MinLiquidity float64
	MaxLiquidity float64
	// MinTradeVolume / MaxTradeVolume clamp the dynamically sized trade
	// notional.
	MinTradeVolume float64
	MaxTradeVolume float64
	// LiquiditySizingRatio scales the observed minimum liquidity down when
	// sizing the trade, so the order does not move the book past the
	// observed depth. Defaults to 0.9.
	LiquiditySizingRatio float64
}

// Evaluator prices all three legs of a route against real depth, applies
// fees, and gates the result by profit, liquidity, and debounce rules.
type Evaluator struct {
	cfg      EvaluatorConfig
	market   *domain.Market
	books    BookSource
	debounce *DebounceCache
	logger   *slog.Logger
	nowFn    func() time.Time
}

// NewEvaluator creates an Evaluator. The debounce cache is shared with the
// scan loop that owns it.
func NewEvaluator(cfg EvaluatorConfig, market *domain.Market, books BookSource, debounce *DebounceCache, logger *slog.Logger) *Evaluator {
	if cfg.LiquiditySizingRatio <= 0 {
		cfg.LiquiditySizingRatio = 0.9
	}
	return &Evaluator{
		cfg:      cfg,
		market:   market,
		books:    books,
		debounce: debounce,
		logger:   logger.With(slog.String("component", "evaluator")),
		nowFn:    time.Now,
	}
}

// SetNowFunc overrides the evaluator's clock. Tests only.
func (e *Evaluator) SetNowFunc(fn func() time.Time) {
	e.nowFn = fn
}

// Evaluate prices the route for this cycle. It never returns an error: every
// failure mode degrades to a not-actionable evaluation with a reason, so one
// bad route cannot abort the cycle for the others.
func (e *Evaluator) Evaluate(ctx context.Context, route domain.Route) domain.RouteEvaluation {
	eval := domain.RouteEvaluation{Route: route, EvaluatedAt: e.nowFn()}

	legs, ok := route.Legs(e.market)
	if !ok {
		eval.Reason = "missing symbol"
		return eval
	}
	eval.Legs = legs

	for i, leg := range legs {
		eval.Quotes[i] = e.quoteLeg(ctx, leg)
		if eval.Quotes[i].Unfillable {
			eval.Reason = "leg unfillable: " + leg.Symbol
			return eval
		}
	}

	yield := 1.0
	for i, leg := range legs {
		yield *= legYield(leg.Side, eval.Quotes[i].AvgPrice, e.cfg.CommissionRate)
	}
	eval.Yield = yield
	eval.ProfitPercent = (yield - 1) * 100

	if eval.ProfitPercent < e.cfg.MinProfitPercent || eval.ProfitPercent > e.cfg.MaxProfitPercent {
		eval.Reason = "profit out of range"
		return eval
	}

	minLiq := eval.Quotes[0].Liquidity
	for _, q := range eval.Quotes[1:] {
		if q.Liquidity < minLiq {
			minLiq = q.Liquidity
		}
	}
	eval.MinLiquidity = minLiq

	if minLiq < e.cfg.MinLiquidity || minLiq > e.cfg.MaxLiquidity {
		eval.Reason = "liquidity out of range"
		return eval
	}

	eval.Notional = clamp(minLiq*e.cfg.LiquiditySizingRatio, e.cfg.MinTradeVolume, e.cfg.MaxTradeVolume)
	eval.Profitable = true

	if !e.debounce.CheckAndUpdate(route.Hash(), eval.EvaluatedAt) {
		eval.Reason = "debounce hold"
		return eval
	}

	eval.Actionable = true
	return eval
}

// quoteLeg fetches the book and prices the leg for the scan notional. Any
// fetch error is translated into an unfillable quote with zero liquidity;
// transport failures on one symbol must not propagate.
func (e *Evaluator) quoteLeg(ctx context.Context, leg domain.Leg) domain.LegQuote {
	snap, err := e.books.Book(ctx, leg.Symbol)
	if err != nil {
		e.logger.Debug("order book fetch failed",
			slog.String("symbol", leg.Symbol),
			slog.String("error", err.Error()),
		)
		return domain.LegQuote{Unfillable: true}
	}
	return DepthAveragePrice(snap.Side(leg.Side), e.cfg.ScanNotional)
}

// legYield is the multiplicative effect of one leg on the running amount:
// 1/price when buying the numerator asset, price when selling it, with the
// taker fee applied once.
func legYield(side domain.OrderSide, price, commissionRate float64) float64 {
	y := price
	if side == domain.OrderSideBuy {
		y = 1 / price
	}
	return y * (1 - commissionRate)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
