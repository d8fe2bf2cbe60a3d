package strategy

import "github.com/gibsonxiong/vtrader/internal/domain"

// Base carries the engine handle, trading flags and order wrappers
// every strategy needs. Concrete strategies embed it and override the
// callbacks they care about; the zero-value callbacks are no-ops.
type Base struct {
	engine  Engine
	symbol  string
	inited  bool
	trading bool
}

// NewBase binds a strategy to its engine and symbol.
func NewBase(engine Engine, symbol string) Base {
	return Base{engine: engine, symbol: symbol}
}

// Core returns the Base itself; it satisfies the Strategy interface
// through embedding.
func (b *Base) Core() *Base { return b }

func (b *Base) Engine() Engine { return b.engine }
func (b *Base) Symbol() string { return b.symbol }

func (b *Base) Inited() bool  { return b.inited }
func (b *Base) Trading() bool { return b.trading }

// SetInited is called by the engine once OnInit has run.
func (b *Base) SetInited(v bool) { b.inited = v }

// SetTrading gates order placement; the engine flips it around the
// replay.
func (b *Base) SetTrading(v bool) { b.trading = v }

// Default no-op callbacks.

func (b *Base) OnInit() error            { return nil }
func (b *Base) OnStart() error           { return nil }
func (b *Base) OnStop() error            { return nil }
func (b *Base) OnBar(domain.Bar)         {}
func (b *Base) OnTick(domain.Tick)       {}
func (b *Base) OnOrder(domain.Order)     {}
func (b *Base) OnStopOrder(domain.Order) {}
func (b *Base) OnTrade(domain.Trade)     {}

// Buy opens a long position with a limit order.
func (b *Base) Buy(price, volume float64) (*domain.Order, error) {
	return b.SendOrder(domain.DirectionLong, domain.OffsetOpen, price, volume)
}

// Sell closes a long position with a limit order.
func (b *Base) Sell(price, volume float64) (*domain.Order, error) {
	return b.SendOrder(domain.DirectionLong, domain.OffsetClose, price, volume)
}

// Short opens a short position with a limit order.
func (b *Base) Short(price, volume float64) (*domain.Order, error) {
	return b.SendOrder(domain.DirectionShort, domain.OffsetOpen, price, volume)
}

// Cover closes a short position with a limit order.
func (b *Base) Cover(price, volume float64) (*domain.Order, error) {
	return b.SendOrder(domain.DirectionShort, domain.OffsetClose, price, volume)
}

// SendOrder places a limit order, returning nil when the strategy is
// not in the trading state.
func (b *Base) SendOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error) {
	if !b.trading {
		return nil, nil
	}
	return b.engine.SendOrder(direction, offset, price, volume)
}

// SendStopOrder places a stop order, returning nil when the strategy
// is not in the trading state.
func (b *Base) SendStopOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error) {
	if !b.trading {
		return nil, nil
	}
	return b.engine.SendStopOrder(direction, offset, price, volume)
}

func (b *Base) CancelOrder(id int64)     { b.engine.CancelOrder(id) }
func (b *Base) CancelStopOrder(id int64) { b.engine.CancelStopOrder(id) }
func (b *Base) CancelAll()               { b.engine.CancelAll() }

func (b *Base) WriteLog(msg string) { b.engine.WriteLog(msg) }
