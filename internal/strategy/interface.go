// Package strategy defines the contract between trading strategies
// and the engine that replays samples through them, plus the helpers
// strategies are built from.
package strategy

import (
	"github.com/gibsonxiong/vtrader/internal/account"
	"github.com/gibsonxiong/vtrader/internal/domain"
)

// Strategy is the callback surface the engine drives. All callbacks
// are invoked synchronously, in event order, before the next sample
// is processed. Orders handed to OnOrder/OnStopOrder are value copies
// of the engine's state at transition time.
type Strategy interface {
	// OnInit runs once before the replay starts, before the strategy
	// enters the trading state.
	OnInit() error
	// OnStart runs after OnInit succeeds; trading is enabled right
	// after it returns.
	OnStart() error
	// OnStop runs when the replay ends; trading is already disabled.
	OnStop() error

	OnBar(bar domain.Bar)
	OnTick(tick domain.Tick)
	OnOrder(order domain.Order)
	OnStopOrder(order domain.Order)
	OnTrade(trade domain.Trade)

	// Core exposes the embedded Base to the engine for lifecycle flag
	// management. Embedding Base provides it.
	Core() *Base
}

// Engine is the surface a strategy uses to trade and to inspect run
// state. The backtest engine implements it; a live engine would too.
type Engine interface {
	// SendOrder places a limit order. It returns nil without error
	// when the order is not accepted (the strategy is not trading).
	SendOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error)
	// SendStopOrder places a stop order that converts to a limit
	// order when its trigger price is crossed.
	SendStopOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error)
	// CancelOrder cancels an active limit order. Unknown or finished
	// ids are ignored.
	CancelOrder(id int64)
	// CancelStopOrder cancels an active stop order. Unknown or
	// finished ids are ignored.
	CancelStopOrder(id int64)
	// CancelAll cancels every active limit and stop order.
	CancelAll()

	LongHolding() *account.Holding
	ShortHolding() *account.Holding
	Wallet() *account.Wallet

	// Settings returns the run configuration. Strategies use it for
	// contract size and capital based sizing.
	Settings() domain.BacktestSettings

	// WriteLog appends a timestamped line to the run's log stream.
	WriteLog(msg string)
}
