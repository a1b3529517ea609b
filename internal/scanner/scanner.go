// Package scanner contains the opportunity-detection core: route discovery,
// depth-weighted pricing, route evaluation with the debounce gate, and the
// periodic scan loop that drives them.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avolkov/triarb/internal/domain"
)

// Trader executes the three legs of an accepted route. Implemented by the
// live pipeline and the simulator.
type Trader interface {
	Execute(ctx context.Context, eval domain.RouteEvaluation) domain.TradeResult
}

// Notifier delivers operator-facing messages. Failures are logged by the
// implementation and never surfaced here.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the scan loop parameters.
type Config struct {
	// Interval is the pause between the end of one cycle and the start of
	// the next. Cycles never overlap.
	Interval time.Duration
	// MaxConcurrency bounds the number of routes evaluated at once, sized
	// to respect the exchange's rate limit.
	MaxConcurrency int
	// Live marks whether accepted routes hit the real exchange. Carried
	// into notifications so the operator can tell paper results apart.
	Live bool
}

// Scanner re-evaluates every discovered route on a fixed interval, fanning
// the evaluations out concurrently and handing accepted routes to the
// trader. A failure in one route's evaluation or trade never takes down the
// loop.
type Scanner struct {
	cfg       Config
	routes    []domain.Route
	evaluator *Evaluator
	trader    Trader
	routeLog  domain.RouteLogStore
	notifier  Notifier
	logger    *slog.Logger
}

// New creates a Scanner. routeLog and notifier may be nil.
func New(cfg Config, routes []domain.Route, evaluator *Evaluator, trader Trader, routeLog domain.RouteLogStore, notifier Notifier, logger *slog.Logger) *Scanner {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	return &Scanner{
		cfg:       cfg,
		routes:    routes,
		evaluator: evaluator,
		trader:    trader,
		routeLog:  routeLog,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Run drives scan cycles until the context is cancelled. Shutdown is
// cooperative: the flag is checked at the top of each cycle and each
// per-route evaluation, and in-flight trades are allowed to finish so no
// order is left unmonitored.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scan loop started",
		slog.Int("routes", len(s.routes)),
		slog.Duration("interval", s.cfg.Interval),
	)
	defer s.logger.Info("scan loop stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		s.runCycle(ctx)
		s.logger.Debug("cycle complete", slog.Duration("took", time.Since(start)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.Interval):
		}
	}
}

// runCycle evaluates all routes concurrently and waits for every evaluation
// (and any trade it triggered) to complete.
func (s *Scanner) runCycle(ctx context.Context) {
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrency)

	for _, route := range s.routes {
		route := route
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			s.evaluateRoute(ctx, route)
			return nil
		})
	}
	_ = g.Wait()
}

// evaluateRoute runs one route through the evaluator and, when accepted,
// through the trader. All errors stop at this boundary.
func (s *Scanner) evaluateRoute(ctx context.Context, route domain.Route) {
	eval := s.evaluator.Evaluate(ctx, route)

	// Profitable routes are announced every cycle, including while the
	// debounce gate still holds them back from execution.
	if eval.Profitable {
		s.logger.Info("opportunity found",
			slog.String("route", route.ID()),
			slog.Float64("profit_percent", eval.ProfitPercent),
			slog.Float64("notional", eval.Notional),
			slog.Float64("min_liquidity", eval.MinLiquidity),
			slog.Bool("ready", eval.Actionable),
		)
		s.notify(ctx, "opportunity", "Opportunity "+route.ID(), formatOpportunity(eval, s.cfg.Live))
	}

	if !eval.Actionable {
		s.logger.Debug("route rejected",
			slog.String("route", route.ID()),
			slog.String("reason", eval.Reason),
			slog.Float64("profit_percent", eval.ProfitPercent),
		)
		return
	}

	result := s.trader.Execute(ctx, eval)

	s.appendRouteLog(ctx, eval, result.Settled())

	if result.Settled() {
		s.notify(ctx, "trade_result", "Trade settled "+route.ID(), fmt.Sprintf(
			"Initial %.2f, final %.2f\nProfit %.2f (%.2f%%)",
			result.Notional, result.FinalAmount, result.ProfitAbs, result.ProfitPercent,
		))
		return
	}
	if result.Err != nil {
		s.logger.Warn("trade failed",
			slog.String("route", route.ID()),
			slog.String("state", string(result.State)),
			slog.String("error", result.Err.Error()),
		)
		s.notify(ctx, "error", "Trade failed "+route.ID(), result.Err.Error())
	}
}

// appendRouteLog persists the accepted-route record. Store errors are logged,
// never propagated.
func (s *Scanner) appendRouteLog(ctx context.Context, eval domain.RouteEvaluation, executed bool) {
	if s.routeLog == nil {
		return
	}
	rec := domain.RouteLogRecord{
		Timestamp:     eval.EvaluatedAt,
		RouteID:       eval.Route.ID(),
		ProfitPercent: eval.ProfitPercent,
		Notional:      eval.Notional,
		MinLiquidity:  eval.MinLiquidity,
		Executed:      executed,
	}
	if err := s.routeLog.Append(ctx, rec); err != nil {
		s.logger.Warn("route log append failed",
			slog.String("route", rec.RouteID),
			slog.String("error", err.Error()),
		)
	}
}

// notify sends a message, swallowing delivery errors: notification is
// fire-and-forget per event.
func (s *Scanner) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// formatOpportunity renders the three legs plus the route totals for the
// notification channel.
func formatOpportunity(eval domain.RouteEvaluation, live bool) string {
	var b strings.Builder
	for i, leg := range eval.Legs {
		q := eval.Quotes[i]
		fmt.Fprintf(&b, "%d. %s %s @ %.6f, filled %.2f, available %.2f\n",
			i+1, leg.Symbol, strings.ToUpper(string(leg.Side)), q.AvgPrice, q.FilledNotional, q.Liquidity)
	}
	fmt.Fprintf(&b, "\nSpread %.2f%%\n", eval.ProfitPercent)
	fmt.Fprintf(&b, "Min liquidity %.2f\n", eval.MinLiquidity)
	fmt.Fprintf(&b, "Trade notional %.2f\n", eval.Notional)
	ready := "NO"
	if eval.Actionable {
		ready = "YES"
	}
	fmt.Fprintf(&b, "Ready to trade: %s\n", ready)
	mode := "simulation"
	if live {
		mode = "live"
	}
	fmt.Fprintf(&b, "Mode: %s", mode)
	return b.String()
}
