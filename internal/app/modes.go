package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avolkov/triarb/internal/domain"
	"github.com/avolkov/triarb/internal/scanner"
	"github.com/avolkov/triarb/internal/trader"
)

// ScanMode runs detection only: routes are evaluated every cycle and
// accepted opportunities are settled on paper by the simulator. No orders
// reach the exchange.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	sim := trader.NewSimulator(a.cfg.Scanner.CommissionRate, deps.TradeStore, deps.Notifier, a.logger)
	scan, err := a.buildScanner(ctx, deps, sim)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scan.Run(ctx)
	})
	return g.Wait()
}

// TradeMode runs detection plus live execution through the order pipeline.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	a.reportBalances(ctx, deps)

	scan, err := a.buildLiveScanner(ctx, deps)
	if err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scan.Run(ctx)
	})
	return g.Wait()
}

// FullMode runs live trading together with the history archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	a.reportBalances(ctx, deps)

	scan, err := a.buildLiveScanner(ctx, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scan.Run(ctx)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			a.runArchiveLoop(ctx, deps.Archiver)
			return nil
		})
	} else if a.cfg.Archive.Enabled {
		a.logger.WarnContext(ctx, "archive enabled but postgres or s3 is not wired, skipping")
	}

	return g.Wait()
}

// buildLiveScanner wires the live execution pipeline into a scanner.
func (a *App) buildLiveScanner(ctx context.Context, deps *Dependencies) (*scanner.Scanner, error) {
	market, routes, err := a.discoverRoutes(ctx, deps)
	if err != nil {
		return nil, err
	}

	live := trader.NewLive(trader.Config{
		CommissionRate: a.cfg.Scanner.CommissionRate,
		SafetyFactor:   a.cfg.Trader.SafetyFactor,
		FillTimeout:    a.cfg.Trader.FillTimeout.Duration,
		PollInterval:   a.cfg.Trader.PollInterval.Duration,
	}, deps.Exchange, market, deps.TradeStore, deps.Notifier, a.logger)

	return a.newScanner(deps, market, routes, live, true), nil
}

// buildScanner wires an arbitrary trader into a scanner.
func (a *App) buildScanner(ctx context.Context, deps *Dependencies, tr scanner.Trader) (*scanner.Scanner, error) {
	market, routes, err := a.discoverRoutes(ctx, deps)
	if err != nil {
		return nil, err
	}
	return a.newScanner(deps, market, routes, tr, false), nil
}

// discoverRoutes loads the symbol universe once and enumerates every
// triangular route through the configured anchors.
func (a *App) discoverRoutes(ctx context.Context, deps *Dependencies) (*domain.Market, []domain.Route, error) {
	market, err := deps.Exchange.LoadMarkets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load markets: %w", err)
	}
	routes := scanner.FindRoutes(market, a.cfg.Scanner.Anchors)
	if len(routes) == 0 {
		// Markets are loaded once, so the set stays empty until restart.
		a.logger.WarnContext(ctx, "no triangular routes for anchors, scanning empty set",
			slog.Any("anchors", a.cfg.Scanner.Anchors),
			slog.Int("symbols", market.Len()),
		)
		return market, routes, nil
	}
	a.logger.InfoContext(ctx, "routes discovered",
		slog.Int("symbols", market.Len()),
		slog.Int("routes", len(routes)),
		slog.Any("anchors", a.cfg.Scanner.Anchors),
	)
	return market, routes, nil
}

func (a *App) newScanner(deps *Dependencies, market *domain.Market, routes []domain.Route, tr scanner.Trader, live bool) *scanner.Scanner {
	books := scanner.NewCachedBookSource(deps.Exchange, deps.BookCache)
	debounce := scanner.NewDebounceCache(a.cfg.Scanner.HoldTime.Duration)
	evaluator := scanner.NewEvaluator(scanner.EvaluatorConfig{
		CommissionRate:       a.cfg.Scanner.CommissionRate,
		ScanNotional:         a.cfg.Scanner.ScanNotional,
		MinProfitPercent:     a.cfg.Scanner.MinProfitPercent,
		MaxProfitPercent:     a.cfg.Scanner.MaxProfitPercent,
		MinLiquidity:         a.cfg.Scanner.MinLiquidity,
		MaxLiquidity:         a.cfg.Scanner.MaxLiquidity,
		MinTradeVolume:       a.cfg.Scanner.MinTradeVolume,
		MaxTradeVolume:       a.cfg.Scanner.MaxTradeVolume,
		LiquiditySizingRatio: a.cfg.Scanner.SizingRatio,
	}, market, books, debounce, a.logger)

	return scanner.New(scanner.Config{
		Interval:       a.cfg.Scanner.Interval.Duration,
		MaxConcurrency: a.cfg.Scanner.MaxConcurrency,
		Live:           live,
	}, routes, evaluator, tr, deps.RouteLogStore, deps.Notifier, a.logger)
}

// reportBalances logs and notifies the non-zero account balances at
// startup so the operator can confirm the account the bot trades on.
func (a *App) reportBalances(ctx context.Context, deps *Dependencies) {
	balances, err := deps.Exchange.FetchBalance(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "startup balance fetch failed", slog.String("error", err.Error()))
		return
	}

	assets := make([]string, 0, len(balances))
	for asset, bal := range balances {
		if bal.Available() > 0 {
			assets = append(assets, asset)
		}
	}
	sort.Strings(assets)

	var lines []string
	for _, asset := range assets {
		bal := balances[asset]
		a.logger.InfoContext(ctx, "balance",
			slog.String("asset", asset),
			slog.Float64("free", bal.Free),
			slog.Float64("total", bal.Total),
		)
		lines = append(lines, fmt.Sprintf("%s: %.8f free, %.8f total", asset, bal.Free, bal.Total))
	}
	if len(lines) == 0 {
		lines = append(lines, "no non-zero balances")
	}
	if err := deps.Notifier.Notify(ctx, "trade_step", "Account balances", strings.Join(lines, "\n")); err != nil {
		a.logger.WarnContext(ctx, "balance notification failed", slog.String("error", err.Error()))
	}
}

// runArchiveLoop periodically moves rows older than the retention window
// into blob storage. One failed run is logged and retried next tick.
func (a *App) runArchiveLoop(ctx context.Context, archiver domain.Archiver) {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	runOnce := func() {
		cutoff := time.Now().UTC().Add(-retention)
		if n, err := archiver.ArchiveRouteLog(ctx, cutoff); err != nil {
			a.logger.ErrorContext(ctx, "route log archive failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "route log archive complete", slog.Int64("records", n))
		}
		if n, err := archiver.ArchiveTrades(ctx, cutoff); err != nil {
			a.logger.ErrorContext(ctx, "trade archive failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "trade archive complete", slog.Int64("records", n))
		}
	}

	runOnce()
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
