// Package service contains the application services that sit between the
// transport layer and the domain stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// Exchange supplies bar history from a remote market data source. Pages are
// capped by the exchange; callers paginate via the start parameter.
type Exchange interface {
	GetKlines(ctx context.Context, symbol string, interval domain.Interval, start, end int64, limit int) ([]domain.Bar, error)
}

// MarketService serves bar history, checking the cache first, then the
// persistent store, then the exchange. It implements domain.MarketData.
type MarketService struct {
	bars     domain.BarStore
	cache    domain.BarCache
	exchange Exchange
	logger   *slog.Logger
}

// NewMarketService creates a MarketService. cache and exchange may be nil;
// the corresponding tiers are then skipped.
func NewMarketService(
	bars domain.BarStore,
	cache domain.BarCache,
	exchange Exchange,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		bars:     bars,
		cache:    cache,
		exchange: exchange,
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

var _ domain.MarketData = (*MarketService)(nil)

// GetBars returns bars for the query range in ascending timestamp order.
// On a cache miss it falls through to the store; when the store has no bars
// for the range it downloads them from the exchange first.
func (s *MarketService) GetBars(ctx context.Context, q domain.BarQuery) ([]domain.Bar, error) {
	if s.cache != nil {
		bars, err := s.cache.GetBars(ctx, q)
		if err == nil {
			return bars, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "cache read failed",
				slog.String("symbol", q.Symbol),
				slog.String("error", err.Error()),
			)
			// Non-fatal: fall through to the store.
		}
	}

	bars, err := s.bars.GetBars(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("market_service: get bars %s %s: %w", q.Symbol, q.Interval, err)
	}

	if len(bars) == 0 && s.exchange != nil {
		if _, err := s.Download(ctx, q.Symbol, q.Interval, q.Start, q.End); err != nil {
			return nil, fmt.Errorf("market_service: download missing history: %w", err)
		}
		bars, err = s.bars.GetBars(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("market_service: get bars after download: %w", err)
		}
	}

	if len(bars) > 0 && s.cache != nil {
		if cacheErr := s.cache.SetBars(ctx, q.Symbol, q.Interval, bars); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache backfill failed",
				slog.String("symbol", q.Symbol),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return bars, nil
}

// Download fetches bars from the exchange page by page and upserts them into
// the store. It returns the number of bars written. The cached series is
// invalidated so subsequent reads see the fresh data.
func (s *MarketService) Download(ctx context.Context, symbol string, interval domain.Interval, start, end int64) (int64, error) {
	if s.exchange == nil {
		return 0, fmt.Errorf("market_service: no exchange configured")
	}
	if !interval.Valid() {
		return 0, domain.ErrInvalidInterval
	}

	var total int64
	cursor := start

	for cursor <= end {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		bars, err := s.exchange.GetKlines(ctx, symbol, interval, cursor, end, 0)
		if err != nil {
			return total, fmt.Errorf("market_service: download %s %s: %w", symbol, interval, err)
		}
		if len(bars) == 0 {
			break
		}

		if err := s.bars.UpsertBatch(ctx, bars); err != nil {
			return total, fmt.Errorf("market_service: persist %s %s: %w", symbol, interval, err)
		}
		total += int64(len(bars))

		s.logger.InfoContext(ctx, "downloaded bars",
			slog.String("symbol", symbol),
			slog.String("interval", string(interval)),
			slog.Int("count", len(bars)),
			slog.Int64("cursor", cursor),
		)

		next := bars[len(bars)-1].Timestamp + interval.DurationMs()
		if next <= cursor {
			break
		}
		cursor = next
	}

	if total > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, symbol, interval); err != nil {
			s.logger.WarnContext(ctx, "cache invalidate failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	return total, nil
}

// Resume continues a download from the newest stored bar, or from start when
// the series is empty.
func (s *MarketService) Resume(ctx context.Context, symbol string, interval domain.Interval, start, end int64) (int64, error) {
	last, err := s.bars.LastTimestamp(ctx, symbol, interval)
	switch {
	case err == nil:
		next := last + interval.DurationMs()
		if next > start {
			start = next
		}
	case errors.Is(err, domain.ErrNotFound):
		// Empty series, start from the requested time.
	default:
		return 0, fmt.Errorf("market_service: resume %s %s: %w", symbol, interval, err)
	}

	if start > end {
		return 0, nil
	}
	return s.Download(ctx, symbol, interval, start, end)
}

// Count reports how many bars are stored for a series.
func (s *MarketService) Count(ctx context.Context, symbol string, interval domain.Interval) (int64, error) {
	count, err := s.bars.Count(ctx, symbol, interval)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}
