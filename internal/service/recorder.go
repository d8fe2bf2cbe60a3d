package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// KlineStream is the live market data feed the recorder consumes.
type KlineStream interface {
	Connect(ctx context.Context) error
	SubscribeKlines(ctx context.Context, symbols []string, interval domain.Interval) error
	OnBar(handler func(bar domain.Bar, closed bool))
	Close() error
}

// Recorder subscribes to live 1m klines and persists closed bars. Higher
// intervals are derived locally from the 1m stream so a single subscription
// keeps every configured series current.
type Recorder struct {
	stream    KlineStream
	bars      domain.BarStore
	cache     domain.BarCache
	symbols   []string
	intervals []domain.Interval

	mu         sync.Mutex
	generators map[string]*strategy.BarGenerator

	logger *slog.Logger
}

// NewRecorder creates a Recorder for the given symbols. intervals lists the
// derived series to maintain in addition to 1m; cache may be nil.
func NewRecorder(
	stream KlineStream,
	bars domain.BarStore,
	cache domain.BarCache,
	symbols []string,
	intervals []domain.Interval,
	logger *slog.Logger,
) *Recorder {
	return &Recorder{
		stream:     stream,
		bars:       bars,
		cache:      cache,
		symbols:    symbols,
		intervals:  intervals,
		generators: make(map[string]*strategy.BarGenerator),
		logger:     logger.With(slog.String("component", "recorder")),
	}
}

// Run connects, subscribes and records until the context is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	for _, iv := range r.intervals {
		if !iv.Valid() {
			return fmt.Errorf("recorder: %w: %s", domain.ErrInvalidInterval, iv)
		}
		if iv == domain.Interval1m {
			return fmt.Errorf("recorder: derived interval must be coarser than 1m")
		}
	}

	r.stream.OnBar(r.handleBar)

	if err := r.stream.Connect(ctx); err != nil {
		return fmt.Errorf("recorder: connect: %w", err)
	}
	defer r.stream.Close()

	if err := r.stream.SubscribeKlines(ctx, r.symbols, domain.Interval1m); err != nil {
		return fmt.Errorf("recorder: subscribe: %w", err)
	}

	r.logger.InfoContext(ctx, "recording started",
		slog.Any("symbols", r.symbols),
		slog.Int("derived_intervals", len(r.intervals)),
	)

	<-ctx.Done()
	return ctx.Err()
}

func (r *Recorder) handleBar(bar domain.Bar, closed bool) {
	ctx := context.Background()

	if r.cache != nil {
		if err := r.cache.SetLatest(ctx, bar); err != nil {
			r.logger.Warn("cache latest failed",
				slog.String("symbol", bar.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	if !closed {
		return
	}

	if err := r.bars.UpsertBatch(ctx, []domain.Bar{bar}); err != nil {
		r.logger.Error("persist bar failed",
			slog.String("symbol", bar.Symbol),
			slog.Int64("timestamp", bar.Timestamp),
			slog.String("error", err.Error()),
		)
		return
	}

	r.feedGenerators(ctx, bar)
}

// feedGenerators pushes a closed 1m bar through each derived-interval
// generator for its symbol, persisting any completed bars.
func (r *Recorder) feedGenerators(ctx context.Context, bar domain.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, iv := range r.intervals {
		key := bar.Symbol + "/" + string(iv)
		gen, ok := r.generators[key]
		if !ok {
			gen = strategy.NewBarGenerator(iv, func(derived domain.Bar) {
				if err := r.bars.UpsertBatch(ctx, []domain.Bar{derived}); err != nil {
					r.logger.Error("persist derived bar failed",
						slog.String("symbol", derived.Symbol),
						slog.String("interval", string(derived.Interval)),
						slog.String("error", err.Error()),
					)
				}
			})
			r.generators[key] = gen
		}
		gen.Update(bar)
	}
}
