package strategy

import "github.com/gibsonxiong/vtrader/internal/domain"

// BarGenerator merges 1-minute bars into a coarser fixed interval by
// timestamp-modulo alignment. A bucket opens on a bar whose timestamp
// is aligned to the target interval and closes, invoking the
// callback, on the bar whose successor would start the next bucket.
// Bars of any other granularity are ignored.
type BarGenerator struct {
	interval domain.Interval
	bucketMs int64
	callback func(bar domain.Bar)
	bar      *domain.Bar
}

// NewBarGenerator returns a generator that emits bars of the given
// interval through callback.
func NewBarGenerator(interval domain.Interval, callback func(bar domain.Bar)) *BarGenerator {
	return &BarGenerator{
		interval: interval,
		bucketMs: interval.DurationMs(),
		callback: callback,
	}
}

// Update feeds one 1-minute bar into the current bucket.
func (g *BarGenerator) Update(newBar domain.Bar) {
	if newBar.Interval != domain.Interval1m || g.bucketMs == 0 {
		return
	}

	if g.bar != nil {
		g.bar.Close = newBar.Close
		g.bar.High = max(g.bar.High, newBar.High)
		g.bar.Low = min(g.bar.Low, newBar.Low)
		g.bar.Volume += newBar.Volume
	} else if newBar.Timestamp%g.bucketMs == 0 {
		merged := newBar
		merged.Interval = g.interval
		g.bar = &merged
	}

	if g.bar != nil && (newBar.Timestamp+domain.Interval1m.DurationMs())%g.bucketMs == 0 {
		g.callback(*g.bar)
		g.bar = nil
	}
}
