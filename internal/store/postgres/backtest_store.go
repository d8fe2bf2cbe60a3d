package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// BacktestStore implements domain.BacktestStore using PostgreSQL. Run
// parameters, settings and results are stored as JSONB.
type BacktestStore struct {
	pool *pgxpool.Pool
}

// NewBacktestStore creates a new BacktestStore backed by the given connection pool.
func NewBacktestStore(pool *pgxpool.Pool) *BacktestStore {
	return &BacktestStore{pool: pool}
}

var _ domain.BacktestStore = (*BacktestStore)(nil)

const runSelectCols = `id, strategy, params_json, settings_json, status, error,
	result_json, created_at, started_at, finished_at`

func scanRun(row pgx.Row) (domain.BacktestRun, error) {
	var run domain.BacktestRun
	var paramsJSON, settingsJSON, resultJSON []byte

	err := row.Scan(
		&run.ID, &run.Strategy, &paramsJSON, &settingsJSON,
		&run.Status, &run.Error, &resultJSON,
		&run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return domain.BacktestRun{}, err
	}

	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &run.Params); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if err := json.Unmarshal(settingsJSON, &run.Settings); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if resultJSON != nil {
		run.Result = &domain.BacktestResult{}
		if err := json.Unmarshal(resultJSON, run.Result); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return run, nil
}

func marshalRun(run domain.BacktestRun) (paramsJSON, settingsJSON, resultJSON []byte, err error) {
	if run.Params != nil {
		paramsJSON, err = json.Marshal(run.Params)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal params: %w", err)
		}
	}
	settingsJSON, err = json.Marshal(run.Settings)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal settings: %w", err)
	}
	if run.Result != nil {
		resultJSON, err = json.Marshal(run.Result)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return paramsJSON, settingsJSON, resultJSON, nil
}

// Create inserts a new run. The caller assigns the ID.
func (s *BacktestStore) Create(ctx context.Context, run domain.BacktestRun) error {
	paramsJSON, settingsJSON, resultJSON, err := marshalRun(run)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}

	const query = `
		INSERT INTO backtest_runs (
			id, strategy, params_json, settings_json,
			status, error, result_json,
			created_at, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, query,
		run.ID, run.Strategy, paramsJSON, settingsJSON,
		run.Status, run.Error, resultJSON,
		run.CreatedAt, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create run %s: %w", run.ID, err)
	}
	return nil
}

// Update overwrites a run's mutable state. Returns domain.ErrNotFound when
// no run with the given ID exists.
func (s *BacktestStore) Update(ctx context.Context, run domain.BacktestRun) error {
	paramsJSON, settingsJSON, resultJSON, err := marshalRun(run)
	if err != nil {
		return fmt.Errorf("postgres: update run %s: %w", run.ID, err)
	}

	const query = `
		UPDATE backtest_runs SET
			strategy      = $2,
			params_json   = $3,
			settings_json = $4,
			status        = $5,
			error         = $6,
			result_json   = $7,
			started_at    = $8,
			finished_at   = $9
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		run.ID, run.Strategy, paramsJSON, settingsJSON,
		run.Status, run.Error, resultJSON,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single run by ID.
func (s *BacktestStore) GetByID(ctx context.Context, id string) (domain.BacktestRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM backtest_runs WHERE id = $1`, runSelectCols)

	run, err := scanRun(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.BacktestRun{}, domain.ErrNotFound
		}
		return domain.BacktestRun{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest-first, honoring pagination and time filters.
func (s *BacktestStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM backtest_runs WHERE 1=1`, runSelectCols)
	args := []any{}
	argN := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, *opts.Since)
		argN++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argN)
		args = append(args, *opts.Until)
		argN++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, opts.Limit)
		argN++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs rows: %w", err)
	}
	return runs, nil
}

// Delete removes a run. Returns domain.ErrNotFound when the ID is unknown.
func (s *BacktestStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM backtest_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete run %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
