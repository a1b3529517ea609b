package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/triarb/internal/domain"
	"github.com/avolkov/triarb/internal/exchange"
	"github.com/avolkov/triarb/internal/scanner"
)

// Live places real orders leg by leg. Each trade runs the linear state
// machine sizing -> leg_1 -> leg_2 -> leg_3 -> settled; any failure after an
// order has been placed diverts through unwinding to failed.
type Live struct {
	cfg      Config
	ex       exchange.Exchange
	market   *domain.Market
	trades   domain.TradeStore
	notifier Notifier
	logger   *slog.Logger
	nowFn    func() time.Time
}

var _ scanner.Trader = (*Live)(nil)

// NewLive creates the live pipeline. trades and notifier may be nil.
func NewLive(cfg Config, ex exchange.Exchange, market *domain.Market, trades domain.TradeStore, notifier Notifier, logger *slog.Logger) *Live {
	cfg.applyDefaults()
	return &Live{
		cfg:      cfg,
		ex:       ex,
		market:   market,
		trades:   trades,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "trader")),
		nowFn:    time.Now,
	}
}

// SetNowFunc overrides the pipeline's clock. Tests only.
func (l *Live) SetNowFunc(fn func() time.Time) {
	l.nowFn = fn
}

type placedOrder struct {
	orderID string
	symbol  string
}

// Execute runs one trade through the pipeline. A trade that has started is
// never abandoned mid-leg on shutdown: the parent context's cancellation is
// detached so every placed order is monitored to a terminal state.
func (l *Live) Execute(ctx context.Context, eval domain.RouteEvaluation) domain.TradeResult {
	ctx = context.WithoutCancel(ctx)

	result := domain.TradeResult{
		ID:        uuid.NewString(),
		RouteID:   eval.Route.ID(),
		State:     domain.TradeStateSizing,
		Notional:  eval.Notional,
		StartedAt: l.nowFn(),
	}
	l.logger.Info("trade started",
		slog.String("trade_id", result.ID),
		slog.String("route", result.RouteID),
		slog.Float64("notional", result.Notional),
	)

	balances, err := l.ex.FetchBalance(ctx)
	if err != nil {
		return l.fail(ctx, result, nil, fmt.Errorf("trader: fetch balance: %w", err))
	}
	avail := balances[eval.Route.Anchor].Available()
	if avail < eval.Notional {
		l.logger.Warn("insufficient balance",
			slog.String("asset", eval.Route.Anchor),
			slog.Float64("available", avail),
			slog.Float64("required", eval.Notional),
		)
		return l.fail(ctx, result, nil, fmt.Errorf("trader: %s balance %.2f below notional %.2f: %w",
			eval.Route.Anchor, avail, eval.Notional, domain.ErrInsufficientBalance))
	}

	// holding is the running amount of the asset currently held, starting
	// in the anchor and converted by every fill.
	holding := eval.Notional
	var placed []placedOrder

	legStates := [3]domain.TradeState{domain.TradeStateLeg1, domain.TradeStateLeg2, domain.TradeStateLeg3}
	for i, leg := range eval.Legs {
		result.State = legStates[i]

		order, fill, err := l.runLeg(ctx, leg, holding)
		if order.ExchangeID != "" {
			placed = append(placed, placedOrder{orderID: order.ExchangeID, symbol: order.Symbol})
		}
		if err != nil {
			return l.fail(ctx, result, placed, err)
		}

		holding = realized(leg.Side, fill, l.cfg.CommissionRate)
		result.Legs = append(result.Legs, domain.TradeLeg{
			Symbol:       order.Symbol,
			Side:         order.Side,
			Price:        order.Price,
			Amount:       order.Amount,
			Filled:       fill.Filled,
			AvgFillPrice: fill.AvgFillPrice,
			OrderID:      order.ExchangeID,
		})
		l.logger.Info("leg filled",
			slog.String("trade_id", result.ID),
			slog.Int("leg", i+1),
			slog.String("symbol", order.Symbol),
			slog.String("side", string(order.Side)),
			slog.Float64("filled", fill.Filled),
			slog.Float64("avg_price", fill.AvgFillPrice),
			slog.Float64("holding", holding),
		)
		l.notify(ctx, "trade_step", fmt.Sprintf("Leg %d/3 %s", i+1, result.RouteID), fmt.Sprintf(
			"%s %s: filled %.8f @ %.8f, holding %.8f",
			order.Side, order.Symbol, fill.Filled, fill.AvgFillPrice, holding,
		))
	}

	result.State = domain.TradeStateSettled
	result.FinalAmount = holding
	result.ProfitAbs = holding - result.Notional
	result.ProfitPercent = (holding/result.Notional - 1) * 100
	result.CompletedAt = l.nowFn()

	l.logger.Info("trade settled",
		slog.String("trade_id", result.ID),
		slog.Float64("final", result.FinalAmount),
		slog.Float64("profit_abs", result.ProfitAbs),
		slog.Float64("profit_percent", result.ProfitPercent),
	)
	l.persist(ctx, result)
	return result
}

// runLeg prices, sizes, places, and settles one leg. The returned order
// carries the exchange ID even on error so the caller can unwind it.
func (l *Live) runLeg(ctx context.Context, leg domain.Leg, holding float64) (domain.Order, domain.OrderFill, error) {
	var order domain.Order

	sym, ok := l.market.Symbol(leg.Symbol)
	if !ok {
		return order, domain.OrderFill{}, fmt.Errorf("trader: symbol %s: %w", leg.Symbol, domain.ErrNotFound)
	}

	snap, err := l.ex.FetchOrderBook(ctx, leg.Symbol)
	if err != nil {
		return order, domain.OrderFill{}, fmt.Errorf("trader: fetch book %s: %w", leg.Symbol, err)
	}
	levels := snap.Side(leg.Side)
	if len(levels) == 0 {
		return order, domain.OrderFill{}, fmt.Errorf("trader: empty book side %s: %w", leg.Symbol, domain.ErrInsufficientDepth)
	}

	// A buy spends the held quote amount directly; a sell's quote notional
	// is estimated from the top of the book.
	target := holding
	if leg.Side == domain.OrderSideSell {
		target = holding * levels[0].Price
	}
	quote := scanner.DepthAveragePrice(levels, target)
	if quote.Unfillable {
		return order, domain.OrderFill{}, fmt.Errorf("trader: depth for %.2f on %s: %w", target, leg.Symbol, domain.ErrInsufficientDepth)
	}

	price := snapPrice(quote.AvgPrice, sym.PriceTick, leg.Side)
	if price < sym.MinPrice {
		return order, domain.OrderFill{}, fmt.Errorf("trader: price %.8f below minimum %.8f on %s: %w",
			price, sym.MinPrice, leg.Symbol, domain.ErrPriceConstraint)
	}

	amount := holding
	if leg.Side == domain.OrderSideBuy {
		amount = holding / price * l.cfg.SafetyFactor
	}
	if amount < sym.MinAmount {
		amount = sym.MinAmount
	}
	if sym.MinNotional > 0 && amount*price < sym.MinNotional {
		return order, domain.OrderFill{}, fmt.Errorf("trader: notional %.8f below minimum %.8f on %s: %w",
			amount*price, sym.MinNotional, leg.Symbol, domain.ErrPriceConstraint)
	}

	orderID, err := l.ex.CreateOrder(ctx, leg.Symbol, leg.Side, amount, price)
	if err != nil {
		return order, domain.OrderFill{}, fmt.Errorf("trader: create order %s: %w", leg.Symbol, err)
	}
	order = domain.Order{
		ExchangeID: orderID,
		Symbol:     leg.Symbol,
		Side:       leg.Side,
		Price:      price,
		Amount:     amount,
		Status:     domain.OrderStatusOpen,
		CreatedAt:  l.nowFn(),
	}

	fill, err := l.awaitFill(ctx, orderID, leg.Symbol)
	if err != nil {
		return order, fill, err
	}
	switch {
	case fill.Status == domain.OrderStatusFilled:
		return order, fill, nil
	case fill.Filled <= 0:
		return order, fill, fmt.Errorf("trader: order %s on %s: %w", orderID, leg.Symbol, domain.ErrZeroFill)
	default:
		// A partially filled leg leaves the route in a mixed position the
		// remaining legs cannot price, so it counts as a failure.
		return order, fill, fmt.Errorf("trader: order %s on %s filled %.8f of %.8f: %w",
			orderID, leg.Symbol, fill.Filled, order.Amount, domain.ErrPartialFill)
	}
}

// awaitFill polls the order until it reaches a terminal status or the fill
// timeout expires, cancelling on timeout so the book never carries a stale
// order from a dead trade.
func (l *Live) awaitFill(ctx context.Context, orderID, symbol string) (domain.OrderFill, error) {
	deadline := l.nowFn().Add(l.cfg.FillTimeout)
	for {
		fill, err := l.ex.FetchOrder(ctx, orderID, symbol)
		if err != nil {
			return domain.OrderFill{}, fmt.Errorf("trader: fetch order %s: %w", orderID, err)
		}
		switch fill.Status {
		case domain.OrderStatusFilled, domain.OrderStatusCancelled, domain.OrderStatusRejected:
			return fill, nil
		}
		if !l.nowFn().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return domain.OrderFill{}, ctx.Err()
		case <-time.After(l.cfg.PollInterval):
		}
	}

	if err := l.ex.CancelOrder(ctx, orderID, symbol); err != nil {
		l.logger.Warn("cancel after timeout failed",
			slog.String("order_id", orderID),
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
	}
	fill, err := l.ex.FetchOrder(ctx, orderID, symbol)
	if err != nil {
		return domain.OrderFill{}, fmt.Errorf("trader: fetch order %s after cancel: %w", orderID, err)
	}
	return fill, nil
}

// fail unwinds any placed orders and finalizes the result as failed.
func (l *Live) fail(ctx context.Context, result domain.TradeResult, placed []placedOrder, err error) domain.TradeResult {
	if len(placed) > 0 {
		result.State = domain.TradeStateUnwinding
		l.unwind(ctx, placed)
	}
	result.State = domain.TradeStateFailed
	result.Err = err
	result.CompletedAt = l.nowFn()

	l.logger.Error("trade failed",
		slog.String("trade_id", result.ID),
		slog.String("route", result.RouteID),
		slog.String("error", err.Error()),
	)
	l.persist(ctx, result)
	return result
}

// unwind cancels every placed order, newest first. Cancel errors are
// expected for already-filled legs and are only logged.
func (l *Live) unwind(ctx context.Context, placed []placedOrder) {
	for i := len(placed) - 1; i >= 0; i-- {
		p := placed[i]
		if err := l.ex.CancelOrder(ctx, p.orderID, p.symbol); err != nil {
			l.logger.Warn("unwind cancel failed",
				slog.String("order_id", p.orderID),
				slog.String("symbol", p.symbol),
				slog.String("error", err.Error()),
			)
		}
	}
}

// persist writes the trade record. Store failures do not alter the result.
func (l *Live) persist(ctx context.Context, result domain.TradeResult) {
	if l.trades == nil {
		return
	}
	if err := l.trades.Insert(ctx, result); err != nil {
		l.logger.Warn("trade store insert failed",
			slog.String("trade_id", result.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Live) notify(ctx context.Context, event, title, message string) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, event, title, message); err != nil {
		l.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
