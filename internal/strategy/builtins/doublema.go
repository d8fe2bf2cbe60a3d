// Package builtins ships the stock strategies registered by default:
// a double moving-average crossover and an RSI threshold strategy.
package builtins

import (
	"fmt"

	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// DoubleMA trades golden/death crosses of a fast over a slow simple
// moving average, long-only flips: a golden cross covers any short
// and opens a long, a death cross does the reverse.
type DoubleMA struct {
	strategy.Base

	fastWindow int
	slowWindow int
	volume     float64

	series   *strategy.BarSeries
	prevFast float64
	prevSlow float64
	primed   bool
}

// DoubleMADefinition describes the strategy for the registry.
func DoubleMADefinition() strategy.Definition {
	return strategy.Definition{
		Name: "double_ma",
		Params: []strategy.ParamSpec{
			{Name: "fastWindow", Type: strategy.ParamInt, Default: 10},
			{Name: "slowWindow", Type: strategy.ParamInt, Default: 20},
			{Name: "volume", Type: strategy.ParamFloat, Default: 1.0},
		},
		Factory: func(engine strategy.Engine, symbol string, params strategy.Params) (strategy.Strategy, error) {
			fast := params.Int("fastWindow")
			slow := params.Int("slowWindow")
			if fast <= 0 || slow <= fast {
				return nil, fmt.Errorf("double_ma: need 0 < fastWindow < slowWindow, got %d/%d", fast, slow)
			}
			return &DoubleMA{
				Base:       strategy.NewBase(engine, symbol),
				fastWindow: fast,
				slowWindow: slow,
				volume:     params.Float("volume"),
				series:     strategy.NewBarSeries(slow + 1),
			}, nil
		},
	}
}

func (s *DoubleMA) OnStart() error {
	s.WriteLog(fmt.Sprintf("double_ma started: fast=%d slow=%d", s.fastWindow, s.slowWindow))
	return nil
}

func (s *DoubleMA) OnBar(bar domain.Bar) {
	s.series.Push(bar)
	if !s.series.Full() {
		return
	}

	closes := s.series.Closes()
	fastSeries := indicators.MA(closes, s.fastWindow, indicators.Sma)
	slowSeries := indicators.MA(closes, s.slowWindow, indicators.Sma)
	fast := fastSeries[len(fastSeries)-1]
	slow := slowSeries[len(slowSeries)-1]

	if !s.primed {
		s.prevFast, s.prevSlow, s.primed = fast, slow, true
		return
	}

	goldenCross := fast > slow && s.prevFast <= s.prevSlow
	deathCross := fast < slow && s.prevFast >= s.prevSlow
	s.prevFast, s.prevSlow = fast, slow

	switch {
	case goldenCross:
		if pos := s.Engine().ShortHolding().Pos; pos > 0 {
			s.Cover(bar.Close, pos)
		}
		s.Buy(bar.Close, s.volume)
	case deathCross:
		if pos := s.Engine().LongHolding().Pos; pos > 0 {
			s.Sell(bar.Close, pos)
		}
		s.Short(bar.Close, s.volume)
	}
}

func (s *DoubleMA) OnTrade(trade domain.Trade) {
	s.WriteLog(fmt.Sprintf("double_ma fill: %s %s %.4f x %.4f", trade.Direction, trade.Offset, trade.Price, trade.Volume))
}
