package domain

// Interval identifies a fixed bar granularity.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

const msPerMinute int64 = 60 * 1000

var intervalMs = map[Interval]int64{
	Interval1m:  msPerMinute,
	Interval5m:  5 * msPerMinute,
	Interval15m: 15 * msPerMinute,
	Interval30m: 30 * msPerMinute,
	Interval1h:  60 * msPerMinute,
	Interval2h:  2 * 60 * msPerMinute,
	Interval4h:  4 * 60 * msPerMinute,
	Interval6h:  6 * 60 * msPerMinute,
	Interval8h:  8 * 60 * msPerMinute,
	Interval12h: 12 * 60 * msPerMinute,
	Interval1d:  24 * 60 * msPerMinute,
	Interval3d:  3 * 24 * 60 * msPerMinute,
	Interval1w:  7 * 24 * 60 * msPerMinute,
	Interval1M:  30 * 24 * 60 * msPerMinute,
}

// Valid reports whether the interval is one of the known granularities.
func (i Interval) Valid() bool {
	_, ok := intervalMs[i]
	return ok
}

// DurationMs returns the interval length in milliseconds, or 0 for an
// unknown interval. The 1M value is a 30-day approximation.
func (i Interval) DurationMs() int64 {
	return intervalMs[i]
}

func (i Interval) String() string { return string(i) }
