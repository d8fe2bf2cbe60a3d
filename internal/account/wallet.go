package account

import "github.com/gibsonxiong/vtrader/internal/domain"

// Wallet is the available/frozen balance ledger for one run. It is
// driven purely by order status transitions; no freeze is taken for
// CLOSE orders in this model.
type Wallet struct {
	asset  string
	total  float64
	frozen map[int64]float64
}

// NewWallet returns a wallet holding the starting balance.
func NewWallet(asset string, total float64) *Wallet {
	return &Wallet{
		asset:  asset,
		total:  total,
		frozen: make(map[int64]float64),
	}
}

func (w *Wallet) Asset() string { return w.asset }

// Total returns the settled balance, ignoring freezes.
func (w *Wallet) Total() float64 { return w.total }

// Frozen returns the sum of all per-order freezes.
func (w *Wallet) Frozen() float64 {
	var sum float64
	for _, v := range w.frozen {
		sum += v
	}
	return sum
}

// Available returns total minus all freezes.
func (w *Wallet) Available() float64 {
	return w.total - w.Frozen()
}

// ApplyCommission debits a fill's commission from the settled
// balance.
func (w *Wallet) ApplyCommission(amount float64) {
	w.total -= amount
}

// UpdateByOrder applies one order status transition.
//
// OPEN orders freeze volume*price on NOTTRADED, release the freeze
// and debit lastPrice*lastVolume on ALLTRADED, and release only on
// CANCELLED. CLOSE fills credit lastPrice*lastVolume directly.
func (w *Wallet) UpdateByOrder(order domain.Order) {
	if order.Offset == domain.OffsetOpen {
		switch order.Status {
		case domain.OrderStatusNotTraded:
			w.frozen[order.ID] = order.Volume * order.Price
		case domain.OrderStatusPartTraded:
			w.frozen[order.ID] = order.Volume*order.Price - order.AvgPrice*order.Traded
			w.total -= order.LastPrice * order.LastVolume
		case domain.OrderStatusAllTraded:
			delete(w.frozen, order.ID)
			w.total -= order.LastPrice * order.LastVolume
		case domain.OrderStatusCancelled:
			delete(w.frozen, order.ID)
		}
		return
	}

	switch order.Status {
	case domain.OrderStatusPartTraded, domain.OrderStatusAllTraded:
		w.total += order.LastPrice * order.LastVolume
	}
}
