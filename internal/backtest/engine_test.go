package backtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

type fakeMarket struct {
	bars []domain.Bar
	err  error
}

func (m *fakeMarket) GetBars(ctx context.Context, q domain.BarQuery) ([]domain.Bar, error) {
	return m.bars, m.err
}

// scriptedStrategy records every callback and delegates per-bar
// behavior to a closure.
type scriptedStrategy struct {
	strategy.Base
	onBarFn func(s *scriptedStrategy, bar domain.Bar)

	barCount int
	events   []string
	orders   []domain.Order
	trades   []domain.Trade
}

func (s *scriptedStrategy) OnBar(bar domain.Bar) {
	s.barCount++
	if s.onBarFn != nil {
		s.onBarFn(s, bar)
	}
}

func (s *scriptedStrategy) OnOrder(order domain.Order) {
	s.orders = append(s.orders, order)
	s.events = append(s.events, fmt.Sprintf("order:%d:%s", order.ID, order.Status))
}

func (s *scriptedStrategy) OnStopOrder(order domain.Order) {
	s.events = append(s.events, fmt.Sprintf("stop:%d:%s", order.ID, order.Status))
}

func (s *scriptedStrategy) OnTrade(trade domain.Trade) {
	s.trades = append(s.trades, trade)
	s.events = append(s.events, fmt.Sprintf("trade:%d:%.2fx%.0f", trade.ID, trade.Price, trade.Volume))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intradayBar(minute int64, open, high, low, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    "BTCUSDT",
		Interval:  domain.Interval1m,
		Timestamp: minute * 60_000,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1,
	}
}

func dayBar(day int64, open, high, low, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    "BTCUSDT",
		Interval:  domain.Interval1d,
		Timestamp: day * 86_400_000,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1,
	}
}

func testSettings() domain.BacktestSettings {
	return domain.BacktestSettings{
		Symbol:    "BTCUSDT",
		Interval:  domain.Interval1m,
		StartDate: "1970-01-01",
		EndDate:   "1970-01-05",
		Capital:   100_000,
		Mode:      domain.BacktestModeBar,
	}
}

// newTestEngine wires an engine over canned bars with a scripted
// strategy attached and history loaded.
func newTestEngine(t *testing.T, settings domain.BacktestSettings, bars []domain.Bar, onBar func(*scriptedStrategy, domain.Bar)) (*Engine, *scriptedStrategy) {
	t.Helper()

	var script *scriptedStrategy
	reg := strategy.NewRegistry()
	reg.Register(strategy.Definition{
		Name: "scripted",
		Factory: func(e strategy.Engine, symbol string, params strategy.Params) (strategy.Strategy, error) {
			script = &scriptedStrategy{Base: strategy.NewBase(e, symbol), onBarFn: onBar}
			return script, nil
		},
	})

	eng := New(testLogger(), &fakeMarket{bars: bars}, reg)
	require.NoError(t, eng.Configure(settings))
	require.NoError(t, eng.AttachStrategy("scripted", nil))
	require.NoError(t, eng.LoadHistory(context.Background()))
	return eng, script
}

func TestLoadHistoryRequiresInterval(t *testing.T) {
	settings := testSettings()
	settings.Interval = ""

	eng := New(testLogger(), &fakeMarket{}, strategy.NewRegistry())
	require.NoError(t, eng.Configure(settings))

	err := eng.LoadHistory(context.Background())
	assert.ErrorIs(t, err, domain.ErrIntervalRequired)
}

func TestLoadHistoryPropagatesFetchError(t *testing.T) {
	eng := New(testLogger(), &fakeMarket{err: fmt.Errorf("connection refused")}, strategy.NewRegistry())
	require.NoError(t, eng.Configure(testSettings()))

	err := eng.LoadHistory(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRunIsNoOpWithoutStrategyOrHistory(t *testing.T) {
	eng := New(testLogger(), &fakeMarket{}, strategy.NewRegistry())
	require.NoError(t, eng.Configure(testSettings()))

	// No strategy attached.
	require.NoError(t, eng.Run(context.Background()))
	_, err := eng.Result(false)
	assert.ErrorIs(t, err, domain.ErrRunNotFinished)

	// Strategy attached but no history loaded.
	eng2, _ := newTestEngine(t, testSettings(), nil, nil)
	require.NoError(t, eng2.Run(context.Background()))
	_, err = eng2.Result(false)
	assert.ErrorIs(t, err, domain.ErrRunNotFinished)
}

func TestLimitOrderFillsAtMinOfPriceAndOpen(t *testing.T) {
	bars := []domain.Bar{
		intradayBar(0, 100, 101, 99, 100),
		intradayBar(1, 98, 99, 95, 96), // low 95 <= 100: fills at min(100, 98)
	}

	eng, script := newTestEngine(t, testSettings(), bars, func(s *scriptedStrategy, bar domain.Bar) {
		if s.barCount == 1 {
			_, err := s.Buy(100, 1)
			require.NoError(t, err)
		}
	})
	require.NoError(t, eng.Run(context.Background()))

	require.Len(t, script.trades, 1)
	assert.Equal(t, 98.0, script.trades[0].Price)
	assert.Equal(t,
		[]string{"order:1:NOTTRADED", "order:1:ALLTRADED", "trade:1:98.00x1"},
		script.events)
}

func TestLimitOrderStaysUnfilledAboveLow(t *testing.T) {
	bars := []domain.Bar{
		intradayBar(0, 100, 101, 99, 100),
		intradayBar(1, 101, 103, 100.5, 102), // low 100.5 > 100: no fill
	}

	eng, script := newTestEngine(t, testSettings(), bars, func(s *scriptedStrategy, bar domain.Bar) {
		if s.barCount == 1 {
			s.Buy(100, 1)
		}
	})
	require.NoError(t, eng.Run(context.Background()))

	assert.Empty(t, script.trades)
	assert.Equal(t, []string{"order:1:NOTTRADED"}, script.events)
}

func TestShortLimitOrderFillsAtMaxOfPriceAndOpen(t *testing.T) {
	bars := []domain.Bar{
		intradayBar(0, 100, 101, 99, 100),
		intradayBar(1, 105, 106, 101, 102), // high 106 >= 100: fills at max(100, 105)
	}

	eng, script := newTestEngine(t, testSettings(), bars, func(s *scriptedStrategy, bar domain.Bar) {
		if s.barCount == 1 {
			s.Short(100, 2)
		}
	})
	require.NoError(t, eng.Run(context.Background()))

	require.Len(t, script.trades, 1)
	assert.Equal(t, 105.0, script.trades[0].Price)
	assert.Equal(t, domain.DirectionShort, script.trades[0].Direction)
}

func TestStopOrderConvertsToLimitOnTrigger(t *testing.T) {
	bars := []domain.Bar{
		intradayBar(0, 100, 101, 99, 100),
		intradayBar(1, 100, 104, 99, 103),  // high 104 < 105: no trigger
		intradayBar(2, 103, 106, 102, 105), // high 106 >= 105: trigger
		intradayBar(3, 104, 107, 103, 106), // converted limit fills at min(105, 104)
	}

	eng, script := newTestEngine(t, testSettings(), bars, func(s *scriptedStrategy, bar domain.Bar) {
		if s.barCount == 1 {
			s.SendStopOrder(domain.DirectionLong, domain.OffsetOpen, 105, 1)
		}
	})
	require.NoError(t, eng.Run(context.Background()))

	require.Len(t, script.trades, 1)
	assert.Equal(t, 104.0, script.trades[0].Price)
	assert.Equal(t, []string{
		"stop:1:NOTTRADED",
		"order:1:SUBMITTING",
		"order:1:NOTTRADED",
		"order:1:ALLTRADED",
		"trade:1:104.00x1",
	}, script.events)
}

func TestCancelOrderReleasesFreeze(t *testing.T) {
	var orderID int64
	bars := []domain.Bar{
		intradayBar(0, 100, 101, 99, 100),
		intradayBar(1, 102, 103, 101, 102), // stays unfilled (low > 90)
		intradayBar(2, 102, 103, 101, 102),
	}

	eng, script := newTestEngine(t, testSettings(), bars, func(s *scriptedStrategy, bar domain.Bar) {
		switch s.barCount {
		case 1:
			order, _ := s.Buy(90, 1)
			orderID = order.ID
		case 3:
			s.CancelOrder(orderID)
		}
	})
	require.NoError(t, eng.Run(context.Background()))

	assert.Empty(t, script.trades)
	assert.Contains(t, script.events, fmt.Sprintf("order:%d:CANCELLED", orderID))
	assert.Zero(t, eng.Wallet().Frozen())
	assert.Equal(t, 100_000.0, eng.Wallet().Total())

	// Cancelling an unknown id is silently ignored.
	eng.CancelOrder(999)
	eng.CancelStopOrder(999)
}

func TestSendOrderRejectedWhenNotTrading(t *testing.T) {
	eng, script := newTestEngine(t, testSettings(), []domain.Bar{intradayBar(0, 100, 101, 99, 100)}, nil)
	require.NoError(t, eng.Run(context.Background()))

	// After the run, trading is off: wrappers return nil.
	order, err := script.Buy(100, 1)
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestSendOrderBalanceEnforcement(t *testing.T) {
	settings := testSettings()
	settings.EnforceBalanceChecks = true
	settings.Capital = 100

	var sendErr error
	bars := []domain.Bar{intradayBar(0, 100, 101, 99, 100)}
	eng, _ := newTestEngine(t, settings, bars, func(s *scriptedStrategy, bar domain.Bar) {
		_, sendErr = s.Buy(100, 5)
	})
	require.NoError(t, eng.Run(context.Background()))

	assert.ErrorIs(t, sendErr, domain.ErrInsufficientBalance)
}

func TestSendOrderRoundsToPriceTick(t *testing.T) {
	settings := testSettings()
	settings.PriceTick = 0.5

	var placed *domain.Order
	bars := []domain.Bar{intradayBar(0, 100, 101, 99, 100)}
	eng, _ := newTestEngine(t, settings, bars, func(s *scriptedStrategy, bar domain.Bar) {
		placed, _ = s.Buy(100.3, 1)
	})
	require.NoError(t, eng.Run(context.Background()))

	require.NotNil(t, placed)
	assert.Equal(t, 100.5, placed.Price)
}

func TestScenarioSingleRoundTrip(t *testing.T) {
	settings := testSettings()
	settings.StartDate = "1970-01-01"
	settings.EndDate = "1970-01-01"

	bars := []domain.Bar{
		intradayBar(0, 100, 101, 99, 100),
		intradayBar(1, 100, 101, 95, 100), // open fill at min(100, 100)
		intradayBar(2, 100, 101, 99, 100),
		intradayBar(3, 110, 112, 108, 110), // close fill at max? no: LONG close fills at min(110, 110)
		intradayBar(4, 110, 111, 109, 110),
	}

	eng, script := newTestEngine(t, settings, bars, func(s *scriptedStrategy, bar domain.Bar) {
		switch s.barCount {
		case 1:
			s.Buy(100, 1)
		case 3:
			s.Sell(110, 1)
		}
	})
	require.NoError(t, eng.Run(context.Background()))
	require.Len(t, script.trades, 2)

	result, err := eng.Result(true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalDays)
	assert.Equal(t, 1, result.ProfitDays)
	assert.Equal(t, 0, result.LossDays)
	assert.InDelta(t, 10.0, result.TotalNetPnl, 1e-9)
	assert.InDelta(t, 0.0001, result.TotalReturn, 1e-12)
	assert.InDelta(t, 100_010.0, result.EndBalance, 1e-9)
	assert.Equal(t, 2, result.TotalTradeCount)

	// The wallet total agrees with the reported end balance.
	assert.InDelta(t, result.EndBalance, eng.Wallet().Total(), 1e-9)
	assert.NotEmpty(t, eng.Logs())
}

func TestScenarioZeroTradesFiveDays(t *testing.T) {
	settings := testSettings()
	settings.Interval = domain.Interval1d

	bars := []domain.Bar{
		dayBar(0, 100, 101, 99, 100),
		dayBar(1, 100, 101, 99, 100),
		dayBar(2, 100, 101, 99, 100),
		dayBar(3, 100, 101, 99, 100),
		dayBar(4, 100, 101, 99, 100),
	}

	eng, _ := newTestEngine(t, settings, bars, nil)
	require.NoError(t, eng.Run(context.Background()))

	result, err := eng.Result(false)
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalDays)
	assert.Zero(t, result.TotalTradeCount)
	assert.Zero(t, result.TotalNetPnl)
	assert.Zero(t, result.SharpeRatio)
	assert.Equal(t, 100_000.0, result.EndBalance)
}

func TestResultRequiresCompletedRun(t *testing.T) {
	eng, _ := newTestEngine(t, testSettings(), []domain.Bar{intradayBar(0, 100, 101, 99, 100)}, nil)
	_, err := eng.Result(false)
	assert.ErrorIs(t, err, domain.ErrRunNotFinished)
}

func TestDeterministicReplay(t *testing.T) {
	bars := make([]domain.Bar, 0, 60)
	price := 100.0
	for i := int64(0); i < 60; i++ {
		// A fixed zig-zag path so both runs see identical data.
		move := float64(i%7) - 3
		open := price
		price += move
		high := max(open, price) + 1
		low := min(open, price) - 1
		bars = append(bars, intradayBar(i, open, high, low, price))
	}

	run := func() (*Engine, *scriptedStrategy) {
		eng, script := newTestEngine(t, testSettings(), bars, func(s *scriptedStrategy, bar domain.Bar) {
			switch s.barCount % 10 {
			case 1:
				s.Buy(bar.Close-1, 1)
				s.SendStopOrder(domain.DirectionLong, domain.OffsetOpen, bar.Close+2, 1)
			case 5:
				s.Sell(bar.Close+1, 1)
			case 8:
				s.CancelAll()
			}
		})
		require.NoError(t, eng.Run(context.Background()))
		return eng, script
	}

	eng1, script1 := run()
	eng2, script2 := run()

	assert.Equal(t, script1.events, script2.events)
	assert.Equal(t, eng1.Trades(), eng2.Trades())
	assert.Equal(t, eng1.Snapshots(), eng2.Snapshots())

	r1, err1 := eng1.Result(false)
	r2, err2 := eng2.Result(false)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1, r2)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng, _ := newTestEngine(t, testSettings(), []domain.Bar{intradayBar(0, 100, 101, 99, 100)}, nil)
	err := eng.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
