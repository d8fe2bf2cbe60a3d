package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

func TestWalletFreezeAndFill(t *testing.T) {
	w := NewWallet("USDT", 10_000)

	order := domain.Order{
		ID:     1,
		Offset: domain.OffsetOpen,
		Price:  100,
		Volume: 2,
		Status: domain.OrderStatusNotTraded,
	}
	w.UpdateByOrder(order)

	require.Equal(t, 10_000.0, w.Total())
	assert.Equal(t, 200.0, w.Frozen())
	assert.Equal(t, 9_800.0, w.Available())

	order.Status = domain.OrderStatusAllTraded
	order.LastPrice = 99
	order.LastVolume = 2
	w.UpdateByOrder(order)

	assert.InDelta(t, 9_802.0, w.Total(), 1e-9)
	assert.Zero(t, w.Frozen())
	assert.InDelta(t, 9_802.0, w.Available(), 1e-9)
}

func TestWalletCancelReleasesFreezeOnly(t *testing.T) {
	w := NewWallet("USDT", 10_000)

	order := domain.Order{
		ID:     7,
		Offset: domain.OffsetOpen,
		Price:  50,
		Volume: 4,
		Status: domain.OrderStatusNotTraded,
	}
	w.UpdateByOrder(order)
	require.Equal(t, 200.0, w.Frozen())

	order.Status = domain.OrderStatusCancelled
	w.UpdateByOrder(order)

	assert.Equal(t, 10_000.0, w.Total())
	assert.Zero(t, w.Frozen())
}

func TestWalletCloseCreditsWithoutFreeze(t *testing.T) {
	w := NewWallet("USDT", 10_000)

	order := domain.Order{
		ID:     2,
		Offset: domain.OffsetClose,
		Price:  100,
		Volume: 1,
		Status: domain.OrderStatusNotTraded,
	}
	w.UpdateByOrder(order)
	require.Zero(t, w.Frozen())

	order.Status = domain.OrderStatusAllTraded
	order.LastPrice = 110
	order.LastVolume = 1
	w.UpdateByOrder(order)

	assert.InDelta(t, 10_110.0, w.Total(), 1e-9)
}

func TestWalletConservation(t *testing.T) {
	// With no cancellations, the final total equals the starting
	// total plus each fill's notional signed by offset, minus
	// commission.
	w := NewWallet("USDT", 100_000)

	fills := []struct {
		id         int64
		offset     domain.Offset
		price, vol float64
		commission float64
	}{
		{1, domain.OffsetOpen, 100, 3, 0.3},
		{2, domain.OffsetClose, 105, 1, 0.105},
		{3, domain.OffsetOpen, 98, 2, 0.196},
		{4, domain.OffsetClose, 110, 4, 0.44},
	}

	expected := 100_000.0
	for _, f := range fills {
		order := domain.Order{
			ID:     f.id,
			Offset: f.offset,
			Price:  f.price,
			Volume: f.vol,
			Status: domain.OrderStatusNotTraded,
		}
		if f.offset == domain.OffsetOpen {
			w.UpdateByOrder(order)
		}

		order.Status = domain.OrderStatusAllTraded
		order.LastPrice = f.price
		order.LastVolume = f.vol
		w.UpdateByOrder(order)
		w.ApplyCommission(f.commission)

		notional := f.price * f.vol
		if f.offset == domain.OffsetOpen {
			expected -= notional
		} else {
			expected += notional
		}
		expected -= f.commission
	}

	assert.InDelta(t, expected, w.Total(), 1e-9)
	assert.Zero(t, w.Frozen())
}
