package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BarQuery selects a contiguous ascending range of bars.
type BarQuery struct {
	Symbol   string
	Interval Interval
	Start    int64 // inclusive, epoch ms
	End      int64 // inclusive, epoch ms
}

// BarStore persists historical bars.
type BarStore interface {
	UpsertBatch(ctx context.Context, bars []Bar) error
	GetBars(ctx context.Context, q BarQuery) ([]Bar, error)
	LastTimestamp(ctx context.Context, symbol string, interval Interval) (int64, error)
	Count(ctx context.Context, symbol string, interval Interval) (int64, error)
}

// MarketData supplies the ordered sample sequence for a run.
// Implementations must return bars in ascending timestamp order and
// fail rather than return partial history.
type MarketData interface {
	GetBars(ctx context.Context, q BarQuery) ([]Bar, error)
}

// BacktestStore persists backtest runs and their results.
type BacktestStore interface {
	Create(ctx context.Context, run BacktestRun) error
	Update(ctx context.Context, run BacktestRun) error
	GetByID(ctx context.Context, id string) (BacktestRun, error)
	List(ctx context.Context, opts ListOpts) ([]BacktestRun, error)
	Delete(ctx context.Context, id string) error
}
