package builtins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gibsonxiong/vtrader/internal/account"
	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

type placedOrder struct {
	direction domain.Direction
	offset    domain.Offset
	price     float64
	volume    float64
}

// fakeEngine records order intents and exposes mutable holdings.
type fakeEngine struct {
	long   *account.Holding
	short  *account.Holding
	wallet *account.Wallet
	orders []placedOrder
	nextID int64
}

var _ strategy.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		long:   account.NewHolding("BTCUSDT", domain.DirectionLong),
		short:  account.NewHolding("BTCUSDT", domain.DirectionShort),
		wallet: account.NewWallet("USDT", 100_000),
	}
}

func (e *fakeEngine) SendOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error) {
	e.orders = append(e.orders, placedOrder{direction, offset, price, volume})
	e.nextID++
	return &domain.Order{ID: e.nextID, Direction: direction, Offset: offset, Price: price, Volume: volume}, nil
}

func (e *fakeEngine) SendStopOrder(direction domain.Direction, offset domain.Offset, price, volume float64) (*domain.Order, error) {
	return e.SendOrder(direction, offset, price, volume)
}

func (e *fakeEngine) CancelOrder(int64)                 {}
func (e *fakeEngine) CancelStopOrder(int64)             {}
func (e *fakeEngine) CancelAll()                        {}
func (e *fakeEngine) LongHolding() *account.Holding     { return e.long }
func (e *fakeEngine) ShortHolding() *account.Holding    { return e.short }
func (e *fakeEngine) Wallet() *account.Wallet           { return e.wallet }
func (e *fakeEngine) Settings() domain.BacktestSettings { return domain.BacktestSettings{} }
func (e *fakeEngine) WriteLog(string)                   {}

func closeBar(close float64) domain.Bar {
	return domain.Bar{Symbol: "BTCUSDT", Interval: domain.Interval1m, Open: close, High: close, Low: close, Close: close}
}

func createStrategy(t *testing.T, def strategy.Definition, engine strategy.Engine, params map[string]any) strategy.Strategy {
	t.Helper()

	reg := strategy.NewRegistry()
	reg.Register(def)
	s, err := reg.Create(def.Name, engine, "BTCUSDT", params)
	require.NoError(t, err)
	s.Core().SetTrading(true)
	return s
}

func TestDoubleMACrossovers(t *testing.T) {
	engine := newFakeEngine()
	s := createStrategy(t, DoubleMADefinition(), engine, map[string]any{
		"fastWindow": 2,
		"slowWindow": 3,
	})

	// Descending closes prime the averages with fast below slow.
	for _, c := range []float64{10, 9, 8, 7} {
		s.OnBar(closeBar(c))
	}
	require.Empty(t, engine.orders)

	// The jump lifts the fast average over the slow one.
	s.OnBar(closeBar(12))
	require.Len(t, engine.orders, 1)
	assert.Equal(t, placedOrder{domain.DirectionLong, domain.OffsetOpen, 12, 1}, engine.orders[0])

	// Holding a long, a death cross closes it and opens a short.
	engine.long.Pos = 1
	for _, c := range []float64{2, 2} {
		s.OnBar(closeBar(c))
	}
	require.Len(t, engine.orders, 3)
	assert.Equal(t, placedOrder{domain.DirectionLong, domain.OffsetClose, 2, 1}, engine.orders[1])
	assert.Equal(t, placedOrder{domain.DirectionShort, domain.OffsetOpen, 2, 1}, engine.orders[2])
}

func TestDoubleMAValidation(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(DoubleMADefinition())

	_, err := reg.Create("double_ma", nil, "BTCUSDT", map[string]any{"fastWindow": 20, "slowWindow": 10})
	assert.ErrorContains(t, err, "fastWindow < slowWindow")
}

func TestRSIThresholds(t *testing.T) {
	engine := newFakeEngine()
	s := createStrategy(t, RSIDefinition(), engine, map[string]any{"window": 2})

	// A strictly falling series pins RSI at 0.
	for _, c := range []float64{100, 95, 90, 85} {
		s.OnBar(closeBar(c))
	}
	require.NotEmpty(t, engine.orders)
	buy := engine.orders[len(engine.orders)-1]
	assert.Equal(t, domain.DirectionLong, buy.direction)
	assert.Equal(t, domain.OffsetOpen, buy.offset)

	// With a long held, a strictly rising series pins RSI at 100.
	engine.long.Pos = 1
	engine.orders = nil
	for _, c := range []float64{90, 95, 100, 105, 110, 115} {
		s.OnBar(closeBar(c))
	}
	require.NotEmpty(t, engine.orders)
	sell := engine.orders[len(engine.orders)-1]
	assert.Equal(t, domain.DirectionLong, sell.direction)
	assert.Equal(t, domain.OffsetClose, sell.offset)
	assert.Equal(t, 1.0, sell.volume)
}

func TestRSIValidation(t *testing.T) {
	reg := strategy.NewRegistry()
	reg.Register(RSIDefinition())

	_, err := reg.Create("rsi", nil, "BTCUSDT", map[string]any{"window": 1})
	assert.ErrorContains(t, err, "window")

	_, err = reg.Create("rsi", nil, "BTCUSDT", map[string]any{"lowRSI": 80.0, "highRSI": 20.0})
	assert.ErrorContains(t, err, "lowRSI < highRSI")
}

func TestRegisterAddsBuiltins(t *testing.T) {
	reg := strategy.NewRegistry()
	Register(reg)

	defs := reg.List()
	require.Len(t, defs, 2)
	assert.Equal(t, "double_ma", defs[0].Name)
	assert.Equal(t, "rsi", defs[1].Name)
}
