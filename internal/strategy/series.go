package strategy

import "github.com/gibsonxiong/vtrader/internal/domain"

// BarSeries is a fixed-capacity window of the most recent bars, kept
// in arrival order for indicator input.
type BarSeries struct {
	capacity int
	bars     []domain.Bar
}

// NewBarSeries returns a series retaining at most capacity bars.
func NewBarSeries(capacity int) *BarSeries {
	return &BarSeries{
		capacity: capacity,
		bars:     make([]domain.Bar, 0, capacity),
	}
}

// Push appends a bar, evicting the oldest when full.
func (s *BarSeries) Push(bar domain.Bar) {
	if len(s.bars) == s.capacity {
		copy(s.bars, s.bars[1:])
		s.bars = s.bars[:len(s.bars)-1]
	}
	s.bars = append(s.bars, bar)
}

// Len returns the number of retained bars.
func (s *BarSeries) Len() int { return len(s.bars) }

// Full reports whether the window has reached capacity.
func (s *BarSeries) Full() bool { return len(s.bars) == s.capacity }

// Last returns the most recent bar; ok is false when empty.
func (s *BarSeries) Last() (domain.Bar, bool) {
	if len(s.bars) == 0 {
		return domain.Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Closes returns the close prices in arrival order.
func (s *BarSeries) Closes() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices in arrival order.
func (s *BarSeries) Highs() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices in arrival order.
func (s *BarSeries) Lows() []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = b.Low
	}
	return out
}
