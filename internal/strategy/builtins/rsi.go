package builtins

import (
	"fmt"

	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// RSI buys when the relative strength index drops to the low
// threshold and exits when it reaches the high threshold.
type RSI struct {
	strategy.Base

	window  int
	lowRSI  float64
	highRSI float64
	volume  float64

	series *strategy.BarSeries
}

// RSIDefinition describes the strategy for the registry.
func RSIDefinition() strategy.Definition {
	return strategy.Definition{
		Name: "rsi",
		Params: []strategy.ParamSpec{
			{Name: "window", Type: strategy.ParamInt, Default: 14},
			{Name: "lowRSI", Type: strategy.ParamFloat, Default: 30.0},
			{Name: "highRSI", Type: strategy.ParamFloat, Default: 70.0},
			{Name: "volume", Type: strategy.ParamFloat, Default: 1.0},
		},
		Factory: func(engine strategy.Engine, symbol string, params strategy.Params) (strategy.Strategy, error) {
			window := params.Int("window")
			low := params.Float("lowRSI")
			high := params.Float("highRSI")
			if window <= 1 {
				return nil, fmt.Errorf("rsi: window must be > 1, got %d", window)
			}
			if low >= high {
				return nil, fmt.Errorf("rsi: need lowRSI < highRSI, got %.1f/%.1f", low, high)
			}
			return &RSI{
				Base:    strategy.NewBase(engine, symbol),
				window:  window,
				lowRSI:  low,
				highRSI: high,
				volume:  params.Float("volume"),
				series:  strategy.NewBarSeries(window * 4),
			}, nil
		},
	}
}

func (s *RSI) OnStart() error {
	s.WriteLog(fmt.Sprintf("rsi started: window=%d low=%.1f high=%.1f", s.window, s.lowRSI, s.highRSI))
	return nil
}

func (s *RSI) OnBar(bar domain.Bar) {
	s.series.Push(bar)
	if s.series.Len() <= s.window {
		return
	}

	values := indicators.RSI(s.series.Closes(), s.window)
	rsi := values[len(values)-1]

	longPos := s.Engine().LongHolding().Pos
	switch {
	case rsi <= s.lowRSI && longPos == 0:
		s.Buy(bar.Close, s.volume)
	case rsi >= s.highRSI && longPos > 0:
		s.Sell(bar.Close, longPos)
	}
}
