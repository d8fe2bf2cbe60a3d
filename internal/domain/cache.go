package domain

import (
	"context"
	"time"
)

// BarCache provides fast access to recently fetched bars. GetBars
// must return ErrNotFound unless the cache fully covers the query
// range; a partial slice is never an acceptable answer.
type BarCache interface {
	SetBars(ctx context.Context, symbol string, interval Interval, bars []Bar) error
	GetBars(ctx context.Context, q BarQuery) ([]Bar, error)
	SetLatest(ctx context.Context, bar Bar) error
	GetLatest(ctx context.Context, symbol string, interval Interval) (Bar, error)
	Invalidate(ctx context.Context, symbol string, interval Interval) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
