package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/server"
	"github.com/gibsonxiong/vtrader/internal/server/handler"
	"github.com/gibsonxiong/vtrader/internal/service"
)

// newMarketService builds the bar history tier shared by every mode.
func (a *App) newMarketService(deps *Dependencies) *service.MarketService {
	return service.NewMarketService(deps.Bars, deps.BarCache, deps.Exchange, a.logger)
}

func (a *App) newBacktestService(deps *Dependencies, market *service.MarketService) *service.BacktestService {
	var notifier service.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}
	var archiver service.RunArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	return service.NewBacktestService(deps.Runs, market, deps.Registry, notifier, archiver, a.logger)
}

// BacktestMode executes the configured run once and exits.
func (a *App) BacktestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting backtest mode",
		slog.String("strategy", a.cfg.Backtest.Strategy),
		slog.String("symbol", a.cfg.Backtest.Settings.Symbol),
	)

	market := a.newMarketService(deps)
	backtests := a.newBacktestService(deps, market)

	run, err := backtests.CreateRun(ctx, a.cfg.Backtest.Strategy, a.cfg.Backtest.Params, a.cfg.Backtest.Settings)
	if err != nil {
		return fmt.Errorf("app: create run: %w", err)
	}

	finished, err := backtests.Run(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("app: execute run: %w", err)
	}

	if a.cfg.Backtest.Report && finished.Result != nil {
		a.reportResult(ctx, finished)
	}

	return nil
}

// reportResult logs the headline statistics of a finished run.
func (a *App) reportResult(ctx context.Context, run domain.BacktestRun) {
	r := run.Result
	a.logger.InfoContext(ctx, "backtest result",
		slog.String("run_id", run.ID),
		slog.String("strategy", run.Strategy),
		slog.String("period", r.StartDate+" .. "+r.EndDate),
		slog.Int("total_days", r.TotalDays),
		slog.Float64("end_balance", r.EndBalance),
		slog.Float64("total_net_pnl", r.TotalNetPnl),
		slog.Float64("max_drawdown", r.MaxDrawdown),
		slog.Float64("total_return", r.TotalReturn),
		slog.Float64("annual_return", r.AnnualReturn),
		slog.Float64("sharpe_ratio", r.SharpeRatio),
		slog.Int("total_trade_count", r.TotalTradeCount),
	)
}

// DownloadMode fetches the configured bar range into the store and exits.
// With S3 enabled the downloaded series is also exported as JSONL.
func (a *App) DownloadMode(ctx context.Context, deps *Dependencies) error {
	interval := domain.Interval(a.cfg.Download.Interval)
	start, end, err := parseDateRange(a.cfg.Download.StartDate, a.cfg.Download.EndDate)
	if err != nil {
		return fmt.Errorf("app: download range: %w", err)
	}

	a.logger.InfoContext(ctx, "starting download mode",
		slog.String("symbol", a.cfg.Download.Symbol),
		slog.String("interval", a.cfg.Download.Interval),
		slog.String("start", a.cfg.Download.StartDate),
		slog.String("end", a.cfg.Download.EndDate),
	)

	market := a.newMarketService(deps)

	count, err := market.Resume(ctx, a.cfg.Download.Symbol, interval, start, end)
	if err != nil {
		return fmt.Errorf("app: download: %w", err)
	}
	a.logger.InfoContext(ctx, "download finished", slog.Int64("bars", count))

	if deps.Archiver != nil {
		bars, err := deps.Bars.GetBars(ctx, domain.BarQuery{
			Symbol:   a.cfg.Download.Symbol,
			Interval: interval,
			Start:    start,
			End:      end,
		})
		if err != nil {
			return fmt.Errorf("app: export read: %w", err)
		}
		path, err := deps.Archiver.ArchiveBars(ctx, a.cfg.Download.Symbol, interval, bars)
		if err != nil {
			return fmt.Errorf("app: export upload: %w", err)
		}
		if path != "" {
			a.logger.InfoContext(ctx, "series exported", slog.String("path", path))
		}
	}

	return nil
}

// RecordMode streams live klines into the store until cancelled.
func (a *App) RecordMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting record mode",
		slog.Any("symbols", a.cfg.Record.Symbols),
	)

	var derived []domain.Interval
	if iv := domain.Interval(a.cfg.Record.Interval); iv != "" && iv != domain.Interval1m {
		derived = append(derived, iv)
	}

	recorder := service.NewRecorder(
		deps.Stream, deps.Bars, deps.BarCache,
		a.cfg.Record.Symbols, derived, a.logger,
	)

	err := recorder.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServerMode runs the HTTP API until cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	market := a.newMarketService(deps)
	backtests := a.newBacktestService(deps, market)

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Bars:       handler.NewBarHandler(market, a.logger),
		Strategies: handler.NewStrategiesHandler(deps.Registry, a.logger),
		Backtests:  handler.NewBacktestHandler(backtests, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AuthToken:   a.cfg.Server.AuthToken,
		RateLimit:   a.cfg.Server.RateLimit,
	}, handlers, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// parseDateRange converts inclusive YYYY-MM-DD dates to an epoch millisecond
// range covering both whole days.
func parseDateRange(startDate, endDate string) (int64, int64, error) {
	start, err := time.Parse(time.DateOnly, startDate)
	if err != nil {
		return 0, 0, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	end, err := time.Parse(time.DateOnly, endDate)
	if err != nil {
		return 0, 0, fmt.Errorf("parse end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return 0, 0, fmt.Errorf("end date %s precedes start date %s", endDate, startDate)
	}
	return start.UnixMilli(), end.Add(24*time.Hour).UnixMilli() - 1, nil
}
