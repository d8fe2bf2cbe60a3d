package backtest

import "github.com/gibsonxiong/vtrader/internal/domain"

// updateSnapshot marks the run to market after every sample. The
// snapshot for the sample's UTC calendar date is rewritten each time;
// the day's last write survives as its representative. Min and max
// track the extremes of total PnL seen within the day.
func (e *Engine) updateSnapshot(date string, price float64) {
	tradingPnl := e.longHolding.RealizedPnl + e.shortHolding.RealizedPnl
	holdingPnl := e.longHolding.HoldingPnl(price) + e.shortHolding.HoldingPnl(price)
	totalPnl := tradingPnl + holdingPnl

	snap, ok := e.snapshots[date]
	if !ok {
		e.snapshots[date] = &domain.Snapshot{
			Date:       date,
			LastPrice:  price,
			TradingPnl: tradingPnl,
			HoldingPnl: holdingPnl,
			MinPnl:     totalPnl,
			MaxPnl:     totalPnl,
			Commission: e.longHolding.Commission + e.shortHolding.Commission,
			Turnover:   e.longHolding.Turnover + e.shortHolding.Turnover,
		}
		return
	}

	snap.LastPrice = price
	snap.TradingPnl = tradingPnl
	snap.HoldingPnl = holdingPnl
	snap.MinPnl = min(snap.MinPnl, totalPnl)
	snap.MaxPnl = max(snap.MaxPnl, totalPnl)
	snap.Commission = e.longHolding.Commission + e.shortHolding.Commission
	snap.Turnover = e.longHolding.Turnover + e.shortHolding.Turnover
}

// Snapshots returns the per-day snapshots in date order.
func (e *Engine) Snapshots() []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(e.snapshots))
	for _, date := range sortedDates(e.snapshots) {
		out = append(out, *e.snapshots[date])
	}
	return out
}
