package domain

import "time"

// BacktestMode selects the sample kind a run replays.
type BacktestMode string

const (
	BacktestModeBar  BacktestMode = "bar"
	BacktestModeTick BacktestMode = "tick"
)

// BacktestSettings configures one backtest run. Dates are inclusive
// UTC calendar dates in YYYY-MM-DD form.
type BacktestSettings struct {
	Symbol         string       `json:"symbol" toml:"symbol"`
	Interval       Interval     `json:"interval" toml:"interval"`
	StartDate      string       `json:"startDate" toml:"start_date"`
	EndDate        string       `json:"endDate" toml:"end_date"`
	Capital        float64      `json:"capital" toml:"capital"`
	CommissionRate float64      `json:"commissionRate" toml:"commission_rate"`
	ContractSize   float64      `json:"contractSize" toml:"contract_size"`
	PriceTick      float64      `json:"priceTick" toml:"price_tick"`
	Mode           BacktestMode `json:"mode" toml:"mode"`

	// EnforceBalanceChecks rejects OPEN orders whose notional exceeds
	// the available balance. Off by default: backtests assume
	// synthetic unlimited margin.
	EnforceBalanceChecks bool `json:"enforceBalanceChecks" toml:"enforce_balance_checks"`
}

// RunStatus tracks a persisted backtest run's lifecycle.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// BacktestRun is a persisted backtest: its configuration, execution
// state and, once finished, the result.
type BacktestRun struct {
	ID         string           `json:"id"`
	Strategy   string           `json:"strategy"`
	Params     map[string]any   `json:"params"`
	Settings   BacktestSettings `json:"settings"`
	Status     RunStatus        `json:"status"`
	Error      string           `json:"error,omitempty"`
	Result     *BacktestResult  `json:"result,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	StartedAt  *time.Time       `json:"startedAt,omitempty"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}
