package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// memRunStore is an in-memory domain.BacktestStore.
type memRunStore struct {
	runs map[string]domain.BacktestRun
}

func newMemRunStore() *memRunStore {
	return &memRunStore{runs: make(map[string]domain.BacktestRun)}
}

func (m *memRunStore) Create(_ context.Context, run domain.BacktestRun) error {
	if _, ok := m.runs[run.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.runs[run.ID] = run
	return nil
}

func (m *memRunStore) Update(_ context.Context, run domain.BacktestRun) error {
	if _, ok := m.runs[run.ID]; !ok {
		return domain.ErrNotFound
	}
	m.runs[run.ID] = run
	return nil
}

func (m *memRunStore) GetByID(_ context.Context, id string) (domain.BacktestRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return domain.BacktestRun{}, domain.ErrNotFound
	}
	return run, nil
}

func (m *memRunStore) List(_ context.Context, _ domain.ListOpts) ([]domain.BacktestRun, error) {
	var out []domain.BacktestRun
	for _, run := range m.runs {
		out = append(out, run)
	}
	return out, nil
}

func (m *memRunStore) Delete(_ context.Context, id string) error {
	if _, ok := m.runs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.runs, id)
	return nil
}

type staticMarket struct {
	bars []domain.Bar
	err  error
}

func (m *staticMarket) GetBars(_ context.Context, _ domain.BarQuery) ([]domain.Bar, error) {
	return m.bars, m.err
}

type recordedNote struct {
	event, title, message string
}

type memNotifier struct {
	notes []recordedNote
}

func (n *memNotifier) Notify(_ context.Context, event, title, message string) error {
	n.notes = append(n.notes, recordedNote{event, title, message})
	return nil
}

type memArchiver struct {
	archived []domain.BacktestRun
}

func (a *memArchiver) ArchiveRun(_ context.Context, run domain.BacktestRun) (string, error) {
	a.archived = append(a.archived, run)
	return "reports/" + run.ID + ".json", nil
}

type idleStrategy struct {
	strategy.Base
}

func newTestRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(strategy.Definition{
		Name: "idle",
		Factory: func(engine strategy.Engine, symbol string, _ strategy.Params) (strategy.Strategy, error) {
			return &idleStrategy{Base: strategy.NewBase(engine, symbol)}, nil
		},
	})
	return r
}

func testSettings() domain.BacktestSettings {
	return domain.BacktestSettings{
		Symbol:         "BTCUSDT",
		Interval:       domain.Interval1h,
		StartDate:      "2024-01-01",
		EndDate:        "2024-01-03",
		Capital:        100000,
		CommissionRate: 0.001,
	}
}

func testHistory(t *testing.T) []domain.Bar {
	t.Helper()
	start, err := time.Parse(time.DateOnly, "2024-01-01")
	require.NoError(t, err)

	var bars []domain.Bar
	for i := 0; i < 72; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).UnixMilli()
		bars = append(bars, domain.Bar{
			Symbol:    "BTCUSDT",
			Interval:  domain.Interval1h,
			Timestamp: ts,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1,
		})
	}
	return bars
}

func TestCreateRunUnknownStrategy(t *testing.T) {
	svc := NewBacktestService(newMemRunStore(), &staticMarket{}, newTestRegistry(), nil, nil, testLogger())

	_, err := svc.CreateRun(context.Background(), "missing", nil, testSettings())
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)
}

func TestRunLifecycle(t *testing.T) {
	store := newMemRunStore()
	notifier := &memNotifier{}
	archiver := &memArchiver{}
	market := &staticMarket{bars: testHistory(t)}

	svc := NewBacktestService(store, market, newTestRegistry(), notifier, archiver, testLogger())

	run, err := svc.CreateRun(context.Background(), "idle", nil, testSettings())
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusPending, run.Status)

	finished, err := svc.Run(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFinished, finished.Status)
	require.NotNil(t, finished.Result)
	assert.Equal(t, 3, finished.Result.TotalDays)
	assert.NotNil(t, finished.StartedAt)
	assert.NotNil(t, finished.FinishedAt)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFinished, stored.Status)

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "backtest_finished", notifier.notes[0].event)
	require.Len(t, archiver.archived, 1)
	assert.Equal(t, run.ID, archiver.archived[0].ID)
}

func TestRunMarketFailure(t *testing.T) {
	store := newMemRunStore()
	notifier := &memNotifier{}
	market := &staticMarket{err: errors.New("history unavailable")}

	svc := NewBacktestService(store, market, newTestRegistry(), notifier, nil, testLogger())

	run, err := svc.CreateRun(context.Background(), "idle", nil, testSettings())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), run.ID)
	require.Error(t, err)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "history unavailable")

	require.Len(t, notifier.notes, 1)
	assert.Equal(t, "backtest_failed", notifier.notes[0].event)
}

func TestRunUnknownID(t *testing.T) {
	svc := NewBacktestService(newMemRunStore(), &staticMarket{}, newTestRegistry(), nil, nil, testLogger())

	_, err := svc.Run(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRun(t *testing.T) {
	store := newMemRunStore()
	svc := NewBacktestService(store, &staticMarket{bars: testHistory(t)}, newTestRegistry(), nil, nil, testLogger())

	run, err := svc.CreateRun(context.Background(), "idle", nil, testSettings())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRun(context.Background(), run.ID))
	_, err = svc.GetRun(context.Background(), run.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecuteWithoutStore(t *testing.T) {
	svc := NewBacktestService(nil, &staticMarket{bars: testHistory(t)}, newTestRegistry(), nil, nil, testLogger())

	result, err := svc.Execute(context.Background(), "idle", nil, testSettings(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalDays)
	assert.Zero(t, result.TotalTradeCount)
}
