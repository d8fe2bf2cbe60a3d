package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

func minuteBar(minute int64, open, high, low, close, volume float64) domain.Bar {
	return domain.Bar{
		Symbol:    "BTCUSDT",
		Interval:  domain.Interval1m,
		Timestamp: minute * 60_000,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

func TestBarGeneratorFiveMinuteBucket(t *testing.T) {
	var emitted []domain.Bar
	g := NewBarGenerator(domain.Interval5m, func(bar domain.Bar) {
		emitted = append(emitted, bar)
	})

	g.Update(minuteBar(0, 100, 105, 99, 104, 10))
	g.Update(minuteBar(1, 104, 110, 103, 108, 20))
	g.Update(minuteBar(2, 108, 109, 95, 96, 30))
	g.Update(minuteBar(3, 96, 101, 96, 100, 40))
	require.Empty(t, emitted)

	g.Update(minuteBar(4, 100, 103, 98, 102, 50))
	require.Len(t, emitted, 1)

	bar := emitted[0]
	assert.Equal(t, domain.Interval5m, bar.Interval)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 102.0, bar.Close)
	assert.Equal(t, 110.0, bar.High)
	assert.Equal(t, 95.0, bar.Low)
	assert.Equal(t, 150.0, bar.Volume)
}

func TestBarGeneratorWaitsForAlignedStart(t *testing.T) {
	var emitted []domain.Bar
	g := NewBarGenerator(domain.Interval5m, func(bar domain.Bar) {
		emitted = append(emitted, bar)
	})

	// Minutes 2..4 land mid-bucket with no open bucket; nothing may
	// be emitted until a full aligned bucket completes.
	for m := int64(2); m <= 4; m++ {
		g.Update(minuteBar(m, 100, 100, 100, 100, 1))
	}
	require.Empty(t, emitted)

	for m := int64(5); m <= 9; m++ {
		g.Update(minuteBar(m, 100, 100, 100, 100, 1))
	}
	require.Len(t, emitted, 1)
	assert.Equal(t, int64(5*60_000), emitted[0].Timestamp)
	assert.Equal(t, 5.0, emitted[0].Volume)
}

func TestBarGeneratorIgnoresWrongGranularity(t *testing.T) {
	var emitted []domain.Bar
	g := NewBarGenerator(domain.Interval5m, func(bar domain.Bar) {
		emitted = append(emitted, bar)
	})

	coarse := minuteBar(0, 100, 100, 100, 100, 1)
	coarse.Interval = domain.Interval15m
	g.Update(coarse)

	for m := int64(0); m <= 4; m++ {
		g.Update(minuteBar(m, 100, 100, 100, 100, 1))
	}
	require.Len(t, emitted, 1)
	assert.Equal(t, 5.0, emitted[0].Volume)
}

func TestBarGeneratorConsecutiveBuckets(t *testing.T) {
	var emitted []domain.Bar
	g := NewBarGenerator(domain.Interval15m, func(bar domain.Bar) {
		emitted = append(emitted, bar)
	})

	for m := int64(0); m < 45; m++ {
		g.Update(minuteBar(m, float64(m), float64(m), float64(m), float64(m), 1))
	}

	require.Len(t, emitted, 3)
	assert.Equal(t, 0.0, emitted[0].Open)
	assert.Equal(t, 14.0, emitted[0].Close)
	assert.Equal(t, 15.0, emitted[1].Open)
	assert.Equal(t, 29.0, emitted[1].Close)
	assert.Equal(t, 44.0, emitted[2].Close)
}
