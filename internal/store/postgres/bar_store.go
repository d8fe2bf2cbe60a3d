package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// BarStore implements domain.BarStore using PostgreSQL.
type BarStore struct {
	pool *pgxpool.Pool
}

// NewBarStore creates a new BarStore backed by the given connection pool.
func NewBarStore(pool *pgxpool.Pool) *BarStore {
	return &BarStore{pool: pool}
}

var _ domain.BarStore = (*BarStore)(nil)

const barSelectCols = `symbol, interval, timestamp, open, high, low, close, volume`

func scanBarRows(rows pgx.Rows) ([]domain.Bar, error) {
	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(
			&b.Symbol, &b.Interval, &b.Timestamp,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// UpsertBatch writes multiple bars efficiently using pgx Batch. Bars that
// already exist for the same (symbol, interval, timestamp) are overwritten,
// which lets re-downloads repair partial history.
func (s *BarStore) UpsertBatch(ctx context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO bars (symbol, interval, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, interval, timestamp) DO UPDATE SET
			open   = EXCLUDED.open,
			high   = EXCLUDED.high,
			low    = EXCLUDED.low,
			close  = EXCLUDED.close,
			volume = EXCLUDED.volume`

	for _, b := range bars {
		batch.Queue(query,
			b.Symbol, b.Interval, b.Timestamp,
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range bars {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert bar %d/%d: %w", i+1, len(bars), err)
		}
	}
	return nil
}

// GetBars returns bars for the query range in ascending timestamp order.
// Both range ends are inclusive.
func (s *BarStore) GetBars(ctx context.Context, q domain.BarQuery) ([]domain.Bar, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM bars
		WHERE symbol = $1 AND interval = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC`, barSelectCols)

	rows, err := s.pool.Query(ctx, query, q.Symbol, q.Interval, q.Start, q.End)
	if err != nil {
		return nil, fmt.Errorf("postgres: get bars %s %s: %w", q.Symbol, q.Interval, err)
	}
	defer rows.Close()

	bars, err := scanBarRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bars %s %s: %w", q.Symbol, q.Interval, err)
	}
	return bars, nil
}

// LastTimestamp returns the newest stored timestamp for a series, or
// domain.ErrNotFound if the series has no bars.
func (s *BarStore) LastTimestamp(ctx context.Context, symbol string, interval domain.Interval) (int64, error) {
	const query = `
		SELECT timestamp FROM bars
		WHERE symbol = $1 AND interval = $2
		ORDER BY timestamp DESC LIMIT 1`

	var ts int64
	err := s.pool.QueryRow(ctx, query, symbol, interval).Scan(&ts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: last timestamp %s %s: %w", symbol, interval, err)
	}
	return ts, nil
}

// Count returns the number of stored bars for a series.
func (s *BarStore) Count(ctx context.Context, symbol string, interval domain.Interval) (int64, error) {
	const query = `SELECT COUNT(*) FROM bars WHERE symbol = $1 AND interval = $2`

	var n int64
	if err := s.pool.QueryRow(ctx, query, symbol, interval).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count bars %s %s: %w", symbol, interval, err)
	}
	return n, nil
}
