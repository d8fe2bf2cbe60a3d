// Package account holds the per-run position and balance bookkeeping
// that order fills drive during a backtest.
package account

import "github.com/gibsonxiong/vtrader/internal/domain"

// Holding tracks position and PnL for one (symbol, direction).
// Position is magnitude-only within its side; the direction field
// tells which side it is. Fields are exported for strategy reads but
// must be mutated only through Update.
type Holding struct {
	Symbol    string
	Direction domain.Direction

	Pos       float64
	AvgPrice  float64
	InitPrice float64

	// CyclePnl is realized PnL since the position was last flat. It
	// resets together with AvgPrice and InitPrice when Pos returns to
	// zero; RealizedPnl never resets.
	CyclePnl    float64
	RealizedPnl float64
	Commission  float64
	Turnover    float64
}

// NewHolding returns an empty holding for one side of a symbol.
func NewHolding(symbol string, direction domain.Direction) *Holding {
	return &Holding{Symbol: symbol, Direction: direction}
}

// Update applies a confirmed fill. Fills for the other direction are
// ignored so both holdings can be fed the same trade stream.
func (h *Holding) Update(trade domain.Trade) {
	if trade.Direction != h.Direction {
		return
	}

	h.Commission += trade.Commission
	h.Turnover += trade.Turnover()

	if trade.Offset == domain.OffsetOpen {
		if h.Pos == 0 {
			h.InitPrice = trade.Price
			h.AvgPrice = trade.Price
		} else {
			h.AvgPrice = (h.AvgPrice*h.Pos + trade.Price*trade.Volume) / (h.Pos + trade.Volume)
		}
		h.Pos += trade.Volume
		return
	}

	pnl := h.fillPnl(trade.Price, trade.Volume)
	h.Pos -= trade.Volume
	h.CyclePnl += pnl
	h.RealizedPnl += pnl

	if h.Pos == 0 {
		h.AvgPrice = 0
		h.InitPrice = 0
		h.CyclePnl = 0
	}
}

func (h *Holding) fillPnl(price, volume float64) float64 {
	if h.Direction == domain.DirectionLong {
		return (price - h.AvgPrice) * volume
	}
	return (h.AvgPrice - price) * volume
}

// HoldingPnl returns the unrealized mark-to-market PnL of the open
// position at the given price.
func (h *Holding) HoldingPnl(mark float64) float64 {
	if h.Direction == domain.DirectionLong {
		return (mark - h.AvgPrice) * h.Pos
	}
	return (h.AvgPrice - mark) * h.Pos
}

// Pnl returns cumulative realized plus unrealized PnL at the given
// mark price.
func (h *Holding) Pnl(mark float64) float64 {
	return h.RealizedPnl + h.HoldingPnl(mark)
}

// Roi returns the open position's return relative to its average
// entry price, or 0 when flat.
func (h *Holding) Roi(mark float64) float64 {
	if h.InitPrice == 0 {
		return 0
	}
	if h.Direction == domain.DirectionLong {
		return (mark - h.AvgPrice) / h.AvgPrice
	}
	return (h.AvgPrice - mark) / h.AvgPrice
}
