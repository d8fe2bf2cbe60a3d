package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// BarCache implements domain.BarCache using Redis sorted sets. Each series
// lives at key "bars:{symbol}:{interval}", scored by bar timestamp, so
// ranged reads map directly onto ZRANGEBYSCORE. A companion span key
// records the contiguous timestamp region the set fully covers; reads
// outside that region miss instead of serving a truncated slice. The
// latest bar of a series is kept separately as a JSON string for cheap
// point reads.
type BarCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBarCache creates a BarCache backed by the given Client. Cached series
// expire after ttl; a non-positive ttl disables expiry.
func NewBarCache(c *Client, ttl time.Duration) *BarCache {
	return &BarCache{rdb: c.Underlying(), ttl: ttl}
}

var _ domain.BarCache = (*BarCache)(nil)

func barsKey(symbol string, interval domain.Interval) string {
	return fmt.Sprintf("bars:%s:%s", symbol, interval)
}

func spanKey(symbol string, interval domain.Interval) string {
	return fmt.Sprintf("bars:span:%s:%s", symbol, interval)
}

func latestKey(symbol string, interval domain.Interval) string {
	return fmt.Sprintf("bars:latest:%s:%s", symbol, interval)
}

// barSpan is the contiguous timestamp region a cached series vouches for.
// Members outside it may exist but are never served.
type barSpan struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

func (s barSpan) covers(start, end int64) bool {
	return start >= s.Min && end <= s.Max
}

// mergeSpan folds the range [first, last] into cur. Ranges that overlap
// or sit within one step of the current span extend it; a disjoint range
// replaces it, since the cache can only vouch for one contiguous region.
func mergeSpan(cur *barSpan, first, last, step int64) barSpan {
	if cur == nil {
		return barSpan{Min: first, Max: last}
	}
	if first > cur.Max+step || last < cur.Min-step {
		return barSpan{Min: first, Max: last}
	}
	return barSpan{Min: min(cur.Min, first), Max: max(cur.Max, last)}
}

// SetBars stores bars for a series, replacing any overlapping members,
// and advances the coverage span.
func (bc *BarCache) SetBars(ctx context.Context, symbol string, interval domain.Interval, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	key := barsKey(symbol, interval)
	members := make([]redis.Z, 0, len(bars))
	for _, b := range bars {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("redis: marshal bar %s %s: %w", symbol, interval, err)
		}
		members = append(members, redis.Z{Score: float64(b.Timestamp), Member: string(data)})
	}

	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	cur, err := bc.getSpan(ctx, symbol, interval)
	if err != nil {
		return err
	}
	span, err := json.Marshal(mergeSpan(cur, first, last, interval.DurationMs()))
	if err != nil {
		return fmt.Errorf("redis: marshal span %s %s: %w", symbol, interval, err)
	}

	pipe := bc.rdb.Pipeline()
	// Remove stale members for the covered range first so a re-download
	// cannot leave two JSON payloads at the same score.
	pipe.ZRemRangeByScore(ctx, key, formatScore(first), formatScore(last))
	pipe.ZAdd(ctx, key, members...)
	pipe.Set(ctx, spanKey(symbol, interval), span, bc.ttl)
	if bc.ttl > 0 {
		pipe.Expire(ctx, key, bc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set bars %s %s: %w", symbol, interval, err)
	}
	return nil
}

// GetBars returns cached bars for the query range in ascending timestamp
// order. It returns domain.ErrNotFound unless the coverage span brackets
// the whole range, so callers fall through to the store rather than
// replay truncated history.
func (bc *BarCache) GetBars(ctx context.Context, q domain.BarQuery) ([]domain.Bar, error) {
	span, err := bc.getSpan(ctx, q.Symbol, q.Interval)
	if err != nil {
		return nil, err
	}
	if span == nil || !span.covers(q.Start, q.End) {
		return nil, domain.ErrNotFound
	}

	vals, err := bc.rdb.ZRangeByScore(ctx, barsKey(q.Symbol, q.Interval), &redis.ZRangeBy{
		Min: formatScore(q.Start),
		Max: formatScore(q.End),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get bars %s %s: %w", q.Symbol, q.Interval, err)
	}
	if len(vals) == 0 {
		return nil, domain.ErrNotFound
	}

	bars := make([]domain.Bar, 0, len(vals))
	for _, v := range vals {
		var b domain.Bar
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			return nil, fmt.Errorf("redis: unmarshal bar %s %s: %w", q.Symbol, q.Interval, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// getSpan reads the coverage span of a series, or nil when none is set.
func (bc *BarCache) getSpan(ctx context.Context, symbol string, interval domain.Interval) (*barSpan, error) {
	data, err := bc.rdb.Get(ctx, spanKey(symbol, interval)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get span %s %s: %w", symbol, interval, err)
	}
	var s barSpan
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("redis: unmarshal span %s %s: %w", symbol, interval, err)
	}
	return &s, nil
}

// SetLatest stores the most recent bar of a series.
func (bc *BarCache) SetLatest(ctx context.Context, bar domain.Bar) error {
	data, err := json.Marshal(bar)
	if err != nil {
		return fmt.Errorf("redis: marshal latest bar %s %s: %w", bar.Symbol, bar.Interval, err)
	}
	if err := bc.rdb.Set(ctx, latestKey(bar.Symbol, bar.Interval), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest bar %s %s: %w", bar.Symbol, bar.Interval, err)
	}
	return nil
}

// GetLatest returns the most recent bar of a series, or domain.ErrNotFound.
func (bc *BarCache) GetLatest(ctx context.Context, symbol string, interval domain.Interval) (domain.Bar, error) {
	data, err := bc.rdb.Get(ctx, latestKey(symbol, interval)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bar{}, domain.ErrNotFound
		}
		return domain.Bar{}, fmt.Errorf("redis: get latest bar %s %s: %w", symbol, interval, err)
	}

	var b domain.Bar
	if err := json.Unmarshal(data, &b); err != nil {
		return domain.Bar{}, fmt.Errorf("redis: unmarshal latest bar %s %s: %w", symbol, interval, err)
	}
	return b, nil
}

// Invalidate drops all cached data for a series.
func (bc *BarCache) Invalidate(ctx context.Context, symbol string, interval domain.Interval) error {
	keys := []string{
		barsKey(symbol, interval),
		spanKey(symbol, interval),
		latestKey(symbol, interval),
	}
	if err := bc.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate bars %s %s: %w", symbol, interval, err)
	}
	return nil
}

func formatScore(ts int64) string {
	return fmt.Sprintf("%d", ts)
}
