package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/triarb/internal/domain"
	"github.com/avolkov/triarb/internal/scanner"
)

// Simulator settles trades on paper at the evaluation's quoted prices. No
// exchange calls are made, which makes it the default trader for the
// scan-only mode.
type Simulator struct {
	commissionRate float64
	trades         domain.TradeStore
	notifier       Notifier
	logger         *slog.Logger
	nowFn          func() time.Time
}

var _ scanner.Trader = (*Simulator)(nil)

// NewSimulator creates the paper trader. trades and notifier may be nil.
func NewSimulator(commissionRate float64, trades domain.TradeStore, notifier Notifier, logger *slog.Logger) *Simulator {
	return &Simulator{
		commissionRate: commissionRate,
		trades:         trades,
		notifier:       notifier,
		logger:         logger.With(slog.String("component", "simulator")),
		nowFn:          time.Now,
	}
}

// SetNowFunc overrides the simulator's clock. Tests only.
func (s *Simulator) SetNowFunc(fn func() time.Time) {
	s.nowFn = fn
}

// Execute replays the evaluation's depth-weighted prices as if every leg
// filled completely, applying the taker fee per leg.
func (s *Simulator) Execute(ctx context.Context, eval domain.RouteEvaluation) domain.TradeResult {
	now := s.nowFn()
	result := domain.TradeResult{
		ID:        uuid.NewString(),
		RouteID:   eval.Route.ID(),
		Notional:  eval.Notional,
		StartedAt: now,
	}

	holding := eval.Notional
	for i, leg := range eval.Legs {
		q := eval.Quotes[i]
		amount := holding
		if leg.Side == domain.OrderSideBuy {
			amount = holding / q.AvgPrice
		}
		fill := domain.OrderFill{
			Status:       domain.OrderStatusFilled,
			Filled:       amount,
			AvgFillPrice: q.AvgPrice,
		}
		holding = realized(leg.Side, fill, s.commissionRate)
		result.Legs = append(result.Legs, domain.TradeLeg{
			Symbol:       leg.Symbol,
			Side:         leg.Side,
			Price:        q.AvgPrice,
			Amount:       amount,
			Filled:       amount,
			AvgFillPrice: q.AvgPrice,
		})
	}

	result.State = domain.TradeStateSettled
	result.FinalAmount = holding
	result.ProfitAbs = holding - result.Notional
	result.ProfitPercent = (holding/result.Notional - 1) * 100
	result.CompletedAt = s.nowFn()

	s.logger.Info("simulated trade",
		slog.String("trade_id", result.ID),
		slog.String("route", result.RouteID),
		slog.Float64("notional", result.Notional),
		slog.Float64("final", result.FinalAmount),
		slog.Float64("profit_percent", result.ProfitPercent),
	)
	if s.notifier != nil {
		msg := fmt.Sprintf("Paper trade: %.2f -> %.2f (%.2f%%)", result.Notional, result.FinalAmount, result.ProfitPercent)
		if err := s.notifier.Notify(ctx, "trade_result", "Simulated "+result.RouteID, msg); err != nil {
			s.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}
	if s.trades != nil {
		if err := s.trades.Insert(ctx, result); err != nil {
			s.logger.Warn("trade store insert failed",
				slog.String("trade_id", result.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return result
}
