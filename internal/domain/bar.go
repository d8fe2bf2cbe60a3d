package domain

import "time"

// Bar is one OHLCV sample for a fixed time bucket. Timestamp is the
// bucket open time in epoch milliseconds; aggregation and snapshot
// dating align on it.
type Bar struct {
	Symbol    string   `json:"symbol"`
	Interval  Interval `json:"interval"`
	Timestamp int64    `json:"timestamp"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	Volume    float64  `json:"volume"`
}

// Time returns the bar open time in UTC.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// Date returns the bar's UTC calendar date as YYYY-MM-DD. Snapshots
// are keyed by this value.
func (b Bar) Date() string {
	return b.Time().Format(time.DateOnly)
}

// TickDepth is the number of book levels carried on a Tick.
const TickDepth = 5

// Tick is a point-in-time book sample with five levels per side.
type Tick struct {
	Symbol     string  `json:"symbol"`
	Timestamp  int64   `json:"timestamp"`
	LastPrice  float64 `json:"lastPrice"`
	LastVolume float64 `json:"lastVolume"`

	BidPrices  [TickDepth]float64 `json:"bidPrices"`
	BidVolumes [TickDepth]float64 `json:"bidVolumes"`
	AskPrices  [TickDepth]float64 `json:"askPrices"`
	AskVolumes [TickDepth]float64 `json:"askVolumes"`
}

// Time returns the tick time in UTC.
func (t Tick) Time() time.Time {
	return time.UnixMilli(t.Timestamp).UTC()
}

// Date returns the tick's UTC calendar date as YYYY-MM-DD.
func (t Tick) Date() string {
	return t.Time().Format(time.DateOnly)
}

// BestBid returns the top-of-book bid.
func (t Tick) BestBid() float64 { return t.BidPrices[0] }

// BestAsk returns the top-of-book ask.
func (t Tick) BestAsk() float64 { return t.AskPrices[0] }
