// Package backtest implements the deterministic replay engine: it
// feeds historical samples through the matching engine and an
// attached strategy, keeps the run's accounting state, and computes
// the final statistics.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/gibsonxiong/vtrader/internal/account"
	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// Engine replays one configured history through one strategy. An
// Engine is single-use and single-threaded: all state is owned by the
// run and callbacks fire synchronously. Concurrent runs need separate
// engines.
type Engine struct {
	logger   *slog.Logger
	market   domain.MarketData
	registry *strategy.Registry

	settings domain.BacktestSettings
	strat    strategy.Strategy

	bars  []domain.Bar
	ticks []domain.Tick

	bar      domain.Bar
	tick     domain.Tick
	datetime int64

	limitOrderCount int64
	stopOrderCount  int64
	tradeCount      int64

	limitOrders       map[int64]*domain.Order
	stopOrders        map[int64]*domain.Order
	activeLimitOrders map[int64]*domain.Order
	activeStopOrders  map[int64]*domain.Order

	trades []domain.Trade

	longHolding  *account.Holding
	shortHolding *account.Holding
	wallet       *account.Wallet

	snapshots map[string]*domain.Snapshot

	logs []string
	ran  bool
}

var _ strategy.Engine = (*Engine)(nil)

// New returns an unconfigured engine. Configure must be called before
// anything else.
func New(logger *slog.Logger, market domain.MarketData, registry *strategy.Registry) *Engine {
	return &Engine{
		logger:   logger.With(slog.String("component", "backtest")),
		market:   market,
		registry: registry,
	}
}

// Configure sets the run parameters and resets all run state.
func (e *Engine) Configure(settings domain.BacktestSettings) error {
	if settings.Symbol == "" {
		return fmt.Errorf("configure: symbol is required")
	}
	if settings.Mode == "" {
		settings.Mode = domain.BacktestModeBar
	}
	if settings.ContractSize == 0 {
		settings.ContractSize = 1
	}
	if _, err := time.Parse(time.DateOnly, settings.StartDate); err != nil {
		return fmt.Errorf("configure: start date %q: %w", settings.StartDate, err)
	}
	if _, err := time.Parse(time.DateOnly, settings.EndDate); err != nil {
		return fmt.Errorf("configure: end date %q: %w", settings.EndDate, err)
	}

	e.settings = settings
	e.strat = nil
	e.bars = nil
	e.ticks = nil
	e.limitOrderCount = 0
	e.stopOrderCount = 0
	e.tradeCount = 0
	e.limitOrders = make(map[int64]*domain.Order)
	e.stopOrders = make(map[int64]*domain.Order)
	e.activeLimitOrders = make(map[int64]*domain.Order)
	e.activeStopOrders = make(map[int64]*domain.Order)
	e.trades = nil
	e.longHolding = account.NewHolding(settings.Symbol, domain.DirectionLong)
	e.shortHolding = account.NewHolding(settings.Symbol, domain.DirectionShort)
	e.wallet = account.NewWallet("USDT", settings.Capital)
	e.snapshots = make(map[string]*domain.Snapshot)
	e.logs = nil
	e.ran = false
	return nil
}

// AttachStrategy constructs exactly one strategy instance bound to
// this engine through the registry.
func (e *Engine) AttachStrategy(name string, params map[string]any) error {
	s, err := e.registry.Create(name, e, e.settings.Symbol, params)
	if err != nil {
		return fmt.Errorf("attach strategy: %w", err)
	}
	e.strat = s
	return nil
}

// LoadHistory fetches the ordered bar sequence for the configured
// range. Fetch failures propagate; the run must not proceed on
// partial history.
func (e *Engine) LoadHistory(ctx context.Context) error {
	if e.settings.Interval == "" {
		return domain.ErrIntervalRequired
	}
	if !e.settings.Interval.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidInterval, e.settings.Interval)
	}

	start, _ := time.Parse(time.DateOnly, e.settings.StartDate)
	end, _ := time.Parse(time.DateOnly, e.settings.EndDate)

	bars, err := e.market.GetBars(ctx, domain.BarQuery{
		Symbol:   e.settings.Symbol,
		Interval: e.settings.Interval,
		Start:    start.UnixMilli(),
		End:      end.Add(24*time.Hour).UnixMilli() - 1,
	})
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	e.bars = bars
	e.WriteLog(fmt.Sprintf("history loaded: %d bars", len(bars)))
	return nil
}

// LoadTicks injects a tick history for tick-mode runs. Ticks must be
// in ascending timestamp order.
func (e *Engine) LoadTicks(ticks []domain.Tick) {
	e.ticks = ticks
	e.WriteLog(fmt.Sprintf("history loaded: %d ticks", len(ticks)))
}

// Run replays the loaded history. It is a no-op, logged but not
// fatal, when no strategy is attached or no history was loaded. The
// context is checked between samples; cancellation is the only error.
func (e *Engine) Run(ctx context.Context) error {
	if e.strat == nil {
		e.WriteLog("run skipped: no strategy attached")
		e.logger.Warn("run skipped", slog.String("reason", "no strategy attached"))
		return nil
	}
	if len(e.bars) == 0 && len(e.ticks) == 0 {
		e.WriteLog("run skipped: no history loaded")
		e.logger.Warn("run skipped", slog.String("reason", "no history loaded"))
		return nil
	}

	core := e.strat.Core()

	if err := e.strat.OnInit(); err != nil {
		return fmt.Errorf("strategy init: %w", err)
	}
	core.SetInited(true)
	e.WriteLog("strategy initialized")

	if err := e.strat.OnStart(); err != nil {
		return fmt.Errorf("strategy start: %w", err)
	}
	core.SetTrading(true)
	e.WriteLog("strategy started")

	if e.settings.Mode == domain.BacktestModeTick {
		for i := range e.ticks {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.newTick(e.ticks[i])
		}
	} else {
		for i := range e.bars {
			if err := ctx.Err(); err != nil {
				return err
			}
			e.newBar(e.bars[i])
		}
	}

	core.SetTrading(false)
	if err := e.strat.OnStop(); err != nil {
		return fmt.Errorf("strategy stop: %w", err)
	}

	e.ran = true
	e.WriteLog("replay finished")
	return nil
}

func (e *Engine) newBar(bar domain.Bar) {
	e.bar = bar
	e.datetime = bar.Timestamp

	e.crossLimitOrders()
	e.crossStopOrders()
	e.strat.OnBar(bar)
	e.updateSnapshot(bar.Date(), bar.Close)
}

func (e *Engine) newTick(tick domain.Tick) {
	e.tick = tick
	e.datetime = tick.Timestamp

	e.crossLimitOrders()
	e.crossStopOrders()
	e.strat.OnTick(tick)
	e.updateSnapshot(tick.Date(), tick.LastPrice)
}

// Settings implements strategy.Engine.
func (e *Engine) Settings() domain.BacktestSettings { return e.settings }

// LongHolding implements strategy.Engine.
func (e *Engine) LongHolding() *account.Holding { return e.longHolding }

// ShortHolding implements strategy.Engine.
func (e *Engine) ShortHolding() *account.Holding { return e.shortHolding }

// Wallet implements strategy.Engine.
func (e *Engine) Wallet() *account.Wallet { return e.wallet }

// Trades returns all fills in emission order.
func (e *Engine) Trades() []domain.Trade { return e.trades }

// Logs returns the run's timestamped log lines.
func (e *Engine) Logs() []string { return e.logs }

// WriteLog appends a timestamped line to the run's log stream.
func (e *Engine) WriteLog(msg string) {
	e.logs = append(e.logs, fmt.Sprintf("%s\t%s", time.UnixMilli(e.datetime).UTC().Format(time.DateTime), msg))
}

// SendOrder implements strategy.Engine. The order price is rounded to
// the configured price tick. When balance enforcement is on, OPEN
// orders exceeding the available balance are rejected.
func (e *Engine) SendOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error) {
	price = e.roundToTick(price)

	if e.settings.EnforceBalanceChecks && offset == domain.OffsetOpen && price*volume > e.wallet.Available() {
		return nil, fmt.Errorf("send order: %w", domain.ErrInsufficientBalance)
	}

	e.limitOrderCount++
	order := &domain.Order{
		ID:          e.limitOrderCount,
		Symbol:      e.settings.Symbol,
		Direction:   direction,
		Offset:      offset,
		Type:        domain.OrderTypeLimit,
		Price:       price,
		Volume:      volume,
		Status:      domain.OrderStatusSubmitting,
		SubmittedAt: time.UnixMilli(e.datetime).UTC(),
	}

	e.limitOrders[order.ID] = order
	e.activeLimitOrders[order.ID] = order
	return copyOrder(order), nil
}

// SendStopOrder implements strategy.Engine. Stop orders rest outside
// the book and never touch the wallet until triggered.
func (e *Engine) SendStopOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error) {
	price = e.roundToTick(price)

	e.stopOrderCount++
	order := &domain.Order{
		ID:          e.stopOrderCount,
		Symbol:      e.settings.Symbol,
		Direction:   direction,
		Offset:      offset,
		Type:        domain.OrderTypeStop,
		Price:       price,
		Volume:      volume,
		Status:      domain.OrderStatusNotTraded,
		SubmittedAt: time.UnixMilli(e.datetime).UTC(),
	}

	e.stopOrders[order.ID] = order
	e.activeStopOrders[order.ID] = order
	return copyOrder(order), nil
}

// CancelOrder implements strategy.Engine. Unknown ids are ignored.
func (e *Engine) CancelOrder(id int64) {
	order, ok := e.activeLimitOrders[id]
	if !ok {
		return
	}
	order.Status = domain.OrderStatusCancelled
	delete(e.activeLimitOrders, id)
	e.wallet.UpdateByOrder(*order)
	e.strat.OnOrder(*copyOrder(order))
}

// CancelStopOrder implements strategy.Engine. Unknown ids are
// ignored.
func (e *Engine) CancelStopOrder(id int64) {
	order, ok := e.activeStopOrders[id]
	if !ok {
		return
	}
	order.Status = domain.OrderStatusCancelled
	delete(e.activeStopOrders, id)
	e.strat.OnStopOrder(*copyOrder(order))
}

// CancelAll implements strategy.Engine.
func (e *Engine) CancelAll() {
	for _, id := range sortedIDs(e.activeLimitOrders) {
		e.CancelOrder(id)
	}
	for _, id := range sortedIDs(e.activeStopOrders) {
		e.CancelStopOrder(id)
	}
}

func (e *Engine) roundToTick(price float64) float64 {
	if e.settings.PriceTick <= 0 {
		return price
	}
	return math.Round(price/e.settings.PriceTick) * e.settings.PriceTick
}

// sortedIDs returns the map keys ascending. Crossing must visit
// orders in submission order for runs to be reproducible.
func sortedIDs(orders map[int64]*domain.Order) []int64 {
	ids := make([]int64, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	return &c
}
