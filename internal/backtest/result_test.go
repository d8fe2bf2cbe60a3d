package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

func dailySeries(capital float64, balances []float64) []domain.DailyResult {
	out := make([]domain.DailyResult, len(balances))
	prev := capital
	accum := 0.0
	for i, balance := range balances {
		net := balance - prev
		accum += net
		out[i] = domain.DailyResult{NetPnl: net, AccumPnl: accum}
		prev = balance
	}
	return out
}

func TestMaxDrawdown(t *testing.T) {
	capital := 100.0
	daily := dailySeries(capital, []float64{100, 110, 90, 120})

	dd, ddPct := maxDrawdowns(capital, daily)
	assert.InDelta(t, 20.0, dd, 1e-9)
	assert.InDelta(t, 20.0/110.0, ddPct, 1e-9)
}

func TestMaxDrawdownMonotonicSeries(t *testing.T) {
	capital := 100.0
	daily := dailySeries(capital, []float64{101, 102, 103})

	dd, ddPct := maxDrawdowns(capital, daily)
	assert.Zero(t, dd)
	assert.Zero(t, ddPct)
}

func TestCalculateStatisticsNoTradingDays(t *testing.T) {
	_, err := calculateStatistics(domain.BacktestSettings{Capital: 100_000}, nil)
	assert.ErrorIs(t, err, domain.ErrNoTradingDays)
}

func TestCalculateStatistics(t *testing.T) {
	settings := domain.BacktestSettings{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-04",
		Capital:   100.0,
	}
	daily := dailySeries(settings.Capital, []float64{100, 110, 90, 120})

	result, err := calculateStatistics(settings, daily)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalDays)
	assert.Equal(t, 2, result.ProfitDays)
	assert.Equal(t, 1, result.LossDays)
	assert.InDelta(t, 20.0, result.TotalNetPnl, 1e-9)
	assert.InDelta(t, 120.0, result.EndBalance, 1e-9)
	assert.InDelta(t, 0.2, result.TotalReturn, 1e-9)
	assert.InDelta(t, 0.2*365/4, result.AnnualReturn, 1e-9)
	assert.InDelta(t, 0.05, result.DailyReturn, 1e-9)
	assert.InDelta(t, 20.0, result.MaxDrawdown, 1e-9)
	assert.InDelta(t, 1.0, result.ReturnDrawdownRatio, 1e-9)
	assert.Positive(t, result.SharpeRatio)
	assert.Equal(t, "2024-01-01", result.StartDate)
	assert.Equal(t, "2024-01-04", result.EndDate)
}

func TestCalculateStatisticsZeroStd(t *testing.T) {
	settings := domain.BacktestSettings{Capital: 100.0}
	daily := dailySeries(settings.Capital, []float64{100, 100, 100})

	result, err := calculateStatistics(settings, daily)
	require.NoError(t, err)
	assert.Zero(t, result.ReturnStd)
	assert.Zero(t, result.SharpeRatio)
	assert.Zero(t, result.ReturnDrawdownRatio)
}

func TestPopulationStd(t *testing.T) {
	assert.Zero(t, populationStd(nil))
	assert.Zero(t, populationStd([]float64{5, 5, 5}))
	assert.InDelta(t, 2.0, populationStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}
