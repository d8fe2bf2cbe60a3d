package domain

import "time"

// Trade is a single fill. Immutable and append-only; the crossing
// rule fills all-or-nothing, so each filled order produces exactly
// one trade.
type Trade struct {
	ID         int64     `json:"tradeId"`
	OrderID    int64     `json:"orderId"`
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Offset     Offset    `json:"offset"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	Commission float64   `json:"commission"`
	Timestamp  int64     `json:"timestamp"`
}

// Time returns the fill time in UTC.
func (t Trade) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// Turnover returns the notional value of the fill.
func (t Trade) Turnover() float64 {
	return t.Price * t.Volume
}
