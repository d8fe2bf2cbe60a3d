package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

func openTrade(dir domain.Direction, price, volume float64) domain.Trade {
	return domain.Trade{
		Symbol:    "BTCUSDT",
		Direction: dir,
		Offset:    domain.OffsetOpen,
		Price:     price,
		Volume:    volume,
	}
}

func closeTrade(dir domain.Direction, price, volume float64) domain.Trade {
	return domain.Trade{
		Symbol:    "BTCUSDT",
		Direction: dir,
		Offset:    domain.OffsetClose,
		Price:     price,
		Volume:    volume,
	}
}

func TestHoldingOpenBlendsAveragePrice(t *testing.T) {
	h := NewHolding("BTCUSDT", domain.DirectionLong)

	h.Update(openTrade(domain.DirectionLong, 100, 1))
	require.Equal(t, 100.0, h.AvgPrice)
	require.Equal(t, 100.0, h.InitPrice)

	h.Update(openTrade(domain.DirectionLong, 110, 1))
	assert.Equal(t, 2.0, h.Pos)
	assert.InDelta(t, 105.0, h.AvgPrice, 1e-9)
	assert.Equal(t, 100.0, h.InitPrice)

	h.Update(openTrade(domain.DirectionLong, 120, 2))
	assert.Equal(t, 4.0, h.Pos)
	assert.InDelta(t, 112.5, h.AvgPrice, 1e-9)
}

func TestHoldingIgnoresOtherDirection(t *testing.T) {
	h := NewHolding("BTCUSDT", domain.DirectionLong)
	h.Update(openTrade(domain.DirectionShort, 100, 1))

	assert.Zero(t, h.Pos)
	assert.Zero(t, h.AvgPrice)
	assert.Zero(t, h.Commission)
}

func TestHoldingRealizedPnl(t *testing.T) {
	t.Run("long", func(t *testing.T) {
		h := NewHolding("BTCUSDT", domain.DirectionLong)
		h.Update(openTrade(domain.DirectionLong, 100, 2))
		h.Update(closeTrade(domain.DirectionLong, 110, 1))

		assert.Equal(t, 1.0, h.Pos)
		assert.InDelta(t, 10.0, h.RealizedPnl, 1e-9)
		assert.InDelta(t, 10.0, h.CyclePnl, 1e-9)
	})

	t.Run("short", func(t *testing.T) {
		h := NewHolding("BTCUSDT", domain.DirectionShort)
		h.Update(openTrade(domain.DirectionShort, 100, 2))
		h.Update(closeTrade(domain.DirectionShort, 90, 2))

		assert.Zero(t, h.Pos)
		assert.InDelta(t, 20.0, h.RealizedPnl, 1e-9)
	})
}

func TestHoldingResetWhenFlat(t *testing.T) {
	h := NewHolding("BTCUSDT", domain.DirectionLong)

	h.Update(openTrade(domain.DirectionLong, 100, 1))
	h.Update(openTrade(domain.DirectionLong, 120, 1))
	h.Update(closeTrade(domain.DirectionLong, 130, 2))

	require.Zero(t, h.Pos)
	assert.Zero(t, h.AvgPrice)
	assert.Zero(t, h.InitPrice)
	assert.Zero(t, h.CyclePnl)
	assert.InDelta(t, 40.0, h.RealizedPnl, 1e-9)

	// A fresh cycle starts from the new entry price.
	h.Update(openTrade(domain.DirectionLong, 200, 1))
	assert.Equal(t, 200.0, h.AvgPrice)
	assert.Equal(t, 200.0, h.InitPrice)
}

func TestHoldingMarkToMarket(t *testing.T) {
	h := NewHolding("BTCUSDT", domain.DirectionLong)
	h.Update(openTrade(domain.DirectionLong, 100, 3))

	assert.InDelta(t, 30.0, h.HoldingPnl(110), 1e-9)
	assert.InDelta(t, 30.0, h.Pnl(110), 1e-9)
	assert.InDelta(t, 0.1, h.Roi(110), 1e-9)

	s := NewHolding("BTCUSDT", domain.DirectionShort)
	s.Update(openTrade(domain.DirectionShort, 100, 3))

	assert.InDelta(t, -30.0, s.HoldingPnl(110), 1e-9)
	assert.InDelta(t, -0.1, s.Roi(110), 1e-9)
}

func TestHoldingRoiZeroWhenFlat(t *testing.T) {
	h := NewHolding("BTCUSDT", domain.DirectionLong)
	assert.Zero(t, h.Roi(110))
}

func TestHoldingAccumulatesCommissionAndTurnover(t *testing.T) {
	h := NewHolding("BTCUSDT", domain.DirectionLong)

	open := openTrade(domain.DirectionLong, 100, 2)
	open.Commission = 0.2
	h.Update(open)

	cls := closeTrade(domain.DirectionLong, 110, 2)
	cls.Commission = 0.22
	h.Update(cls)

	assert.InDelta(t, 0.42, h.Commission, 1e-9)
	assert.InDelta(t, 420.0, h.Turnover, 1e-9)
}
