package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

func TestBarSeriesEvictsOldest(t *testing.T) {
	s := NewBarSeries(3)
	for i := 0; i < 5; i++ {
		s.Push(domain.Bar{Close: float64(i)})
	}

	require.Equal(t, 3, s.Len())
	assert.True(t, s.Full())
	assert.Equal(t, []float64{2, 3, 4}, s.Closes())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 4.0, last.Close)
}

func TestBarSeriesEmpty(t *testing.T) {
	s := NewBarSeries(3)
	assert.Zero(t, s.Len())
	assert.False(t, s.Full())

	_, ok := s.Last()
	assert.False(t, ok)
	assert.Empty(t, s.Closes())
}

func TestBarSeriesHighsLows(t *testing.T) {
	s := NewBarSeries(2)
	s.Push(domain.Bar{High: 10, Low: 1})
	s.Push(domain.Bar{High: 20, Low: 2})

	assert.Equal(t, []float64{10, 20}, s.Highs())
	assert.Equal(t, []float64{1, 2}, s.Lows())
}
