package backtest

import "github.com/gibsonxiong/vtrader/internal/domain"

// crossLimitOrders matches every active limit order against the
// current sample. Bar mode models worst-reasonable intrabar
// execution: fills happen at the bar open unless the limit price is
// more favorable. Fills are all-or-nothing.
func (e *Engine) crossLimitOrders() {
	var longCrossPrice, shortCrossPrice, longBestPrice, shortBestPrice float64

	if e.settings.Mode == domain.BacktestModeTick {
		longCrossPrice = e.tick.BestAsk()
		shortCrossPrice = e.tick.BestBid()
		longBestPrice = longCrossPrice
		shortBestPrice = shortCrossPrice
	} else {
		longCrossPrice = e.bar.Low
		shortCrossPrice = e.bar.High
		longBestPrice = e.bar.Open
		shortBestPrice = e.bar.Open
	}

	for _, id := range sortedIDs(e.activeLimitOrders) {
		order := e.activeLimitOrders[id]

		if order.Status == domain.OrderStatusSubmitting {
			order.Status = domain.OrderStatusNotTraded
			e.wallet.UpdateByOrder(*order)
			e.strat.OnOrder(*copyOrder(order))
		}

		longCross := order.Direction == domain.DirectionLong &&
			order.Price >= longCrossPrice && longCrossPrice > 0
		shortCross := order.Direction == domain.DirectionShort &&
			order.Price <= shortCrossPrice && shortCrossPrice > 0

		if !longCross && !shortCross {
			continue
		}

		tradePrice := min(order.Price, longBestPrice)
		if shortCross {
			tradePrice = max(order.Price, shortBestPrice)
		}

		e.fillOrder(order, tradePrice)
	}
}

// crossStopOrders triggers active stop orders whose level the sample
// crossed. A triggered stop is removed and replaced by a fresh limit
// order at the stop price, eligible for crossing on a later sample.
func (e *Engine) crossStopOrders() {
	var longTriggerPrice, shortTriggerPrice float64

	if e.settings.Mode == domain.BacktestModeTick {
		longTriggerPrice = e.tick.LastPrice
		shortTriggerPrice = e.tick.LastPrice
	} else {
		longTriggerPrice = e.bar.High
		shortTriggerPrice = e.bar.Low
	}

	for _, id := range sortedIDs(e.activeStopOrders) {
		stopOrder := e.activeStopOrders[id]

		longCross := stopOrder.Direction == domain.DirectionLong && stopOrder.Price <= longTriggerPrice
		shortCross := stopOrder.Direction == domain.DirectionShort && stopOrder.Price >= shortTriggerPrice

		if !longCross && !shortCross {
			continue
		}

		delete(e.activeStopOrders, id)

		e.limitOrderCount++
		order := &domain.Order{
			ID:          e.limitOrderCount,
			Symbol:      stopOrder.Symbol,
			Direction:   stopOrder.Direction,
			Offset:      stopOrder.Offset,
			Type:        domain.OrderTypeLimit,
			Price:       stopOrder.Price,
			Volume:      stopOrder.Volume,
			Status:      domain.OrderStatusSubmitting,
			SubmittedAt: stopOrder.SubmittedAt,
		}
		e.limitOrders[order.ID] = order
		e.activeLimitOrders[order.ID] = order

		e.strat.OnStopOrder(*copyOrder(stopOrder))
		e.strat.OnOrder(*copyOrder(order))
	}
}

// fillOrder completes one all-or-nothing fill: the order terminates,
// wallet and holdings absorb the fill, and the strategy is notified
// of the order transition and then the trade.
func (e *Engine) fillOrder(order *domain.Order, tradePrice float64) {
	order.Traded = order.Volume
	order.AvgPrice = tradePrice
	order.LastPrice = tradePrice
	order.LastVolume = order.Volume
	order.Status = domain.OrderStatusAllTraded

	delete(e.activeLimitOrders, order.ID)
	e.wallet.UpdateByOrder(*order)
	e.strat.OnOrder(*copyOrder(order))

	e.tradeCount++
	trade := domain.Trade{
		ID:         e.tradeCount,
		OrderID:    order.ID,
		Symbol:     order.Symbol,
		Direction:  order.Direction,
		Offset:     order.Offset,
		Price:      tradePrice,
		Volume:     order.Volume,
		Commission: tradePrice * order.Volume * e.settings.CommissionRate,
		Timestamp:  e.datetime,
	}

	e.trades = append(e.trades, trade)
	e.longHolding.Update(trade)
	e.shortHolding.Update(trade)
	e.wallet.ApplyCommission(trade.Commission)
	e.strat.OnTrade(trade)
}
