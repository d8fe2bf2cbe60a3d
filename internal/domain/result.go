package domain

// Snapshot is the per-sample mark-to-market state for one calendar
// day (UTC). It is rewritten on every sample; the last write of the
// day is the day's representative.
type Snapshot struct {
	Date       string  `json:"date"`
	LastPrice  float64 `json:"lastPrice"`
	TradingPnl float64 `json:"tradingPnl"`
	HoldingPnl float64 `json:"holdingPnl"`
	MinPnl     float64 `json:"minPnl"`
	MaxPnl     float64 `json:"maxPnl"`
	Commission float64 `json:"commission"`
	Turnover   float64 `json:"turnover"`
}

// TotalPnl returns realized plus unrealized PnL at snapshot time.
func (s Snapshot) TotalPnl() float64 {
	return s.TradingPnl + s.HoldingPnl
}

// DailyResult is the day-over-day delta derived by differencing
// consecutive snapshots at result-calculation time.
type DailyResult struct {
	Date       string  `json:"date"`
	Trades     []Trade `json:"trades"`
	TradeCount int     `json:"tradeCount"`
	TradingPnl float64 `json:"tradingPnl"`
	HoldingPnl float64 `json:"holdingPnl"`
	Commission float64 `json:"commission"`
	Turnover   float64 `json:"turnover"`
	NetPnl     float64 `json:"netPnl"`
	AccumPnl   float64 `json:"accumPnl"`
}

// BacktestResult is the statistics block computed from the daily
// series. Field names and units are a reporting contract: returns are
// fractions, maxDrawdownPercent is a fraction of the peak balance.
type BacktestResult struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	TotalDays  int `json:"totalDays"`
	ProfitDays int `json:"profitDays"`
	LossDays   int `json:"lossDays"`

	EndBalance         float64 `json:"endBalance"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	MaxDrawdownPercent float64 `json:"maxDrawdownPercent"`

	TotalNetPnl     float64 `json:"totalNetPnl"`
	DailyNetPnl     float64 `json:"dailyNetPnl"`
	TotalCommission float64 `json:"totalCommission"`
	DailyCommission float64 `json:"dailyCommission"`
	TotalTurnover   float64 `json:"totalTurnover"`
	DailyTurnover   float64 `json:"dailyTurnover"`
	TotalTradeCount int     `json:"totalTradeCount"`
	DailyTradeCount float64 `json:"dailyTradeCount"`

	TotalReturn  float64 `json:"totalReturn"`
	AnnualReturn float64 `json:"annualReturn"`
	DailyReturn  float64 `json:"dailyReturn"`

	ReturnStd           float64 `json:"returnStd"`
	SharpeRatio         float64 `json:"sharpeRatio"`
	ReturnDrawdownRatio float64 `json:"returnDrawdownRatio"`

	DailyResults []DailyResult `json:"dailyResults"`
}
