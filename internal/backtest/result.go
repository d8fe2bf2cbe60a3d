package backtest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// Result derives the daily series by differencing consecutive
// snapshots and computes the statistics block. It may only be called
// after Run has completed; a run with zero trading days reports
// ErrNoTradingDays rather than NaN statistics.
func (e *Engine) Result(emitReport bool) (domain.BacktestResult, error) {
	if !e.ran {
		return domain.BacktestResult{}, domain.ErrRunNotFinished
	}

	daily := e.dailyResults()
	result, err := calculateStatistics(e.settings, daily)
	if err != nil {
		e.WriteLog("result skipped: no trading days")
		return domain.BacktestResult{}, err
	}

	if emitReport {
		e.writeReport(result)
	}
	return result, nil
}

// dailyResults differences each day's snapshot against the previous
// day's. The day before the first snapshot acts as a zero baseline.
func (e *Engine) dailyResults() []domain.DailyResult {
	tradesByDate := make(map[string][]domain.Trade)
	for _, trade := range e.trades {
		date := trade.Time().Format(time.DateOnly)
		tradesByDate[date] = append(tradesByDate[date], trade)
	}

	dates := sortedDates(e.snapshots)
	out := make([]domain.DailyResult, 0, len(dates))

	var prev domain.Snapshot
	var accum float64
	for _, date := range dates {
		snap := e.snapshots[date]
		dayTrades := tradesByDate[date]

		dr := domain.DailyResult{
			Date:       date,
			Trades:     dayTrades,
			TradeCount: len(dayTrades),
			TradingPnl: snap.TradingPnl - prev.TradingPnl,
			HoldingPnl: snap.HoldingPnl - prev.HoldingPnl,
			Commission: snap.Commission - prev.Commission,
			Turnover:   snap.Turnover - prev.Turnover,
		}
		dr.NetPnl = dr.TradingPnl + dr.HoldingPnl - dr.Commission

		accum += dr.NetPnl
		dr.AccumPnl = accum

		out = append(out, dr)
		prev = *snap
	}
	return out
}

// calculateStatistics computes the reporting block from the ordered
// daily series. Returns are fractions; the annualization factor is
// 365 calendar days.
func calculateStatistics(settings domain.BacktestSettings, daily []domain.DailyResult) (domain.BacktestResult, error) {
	totalDays := len(daily)
	if totalDays == 0 {
		return domain.BacktestResult{}, domain.ErrNoTradingDays
	}

	capital := settings.Capital

	var profitDays, lossDays, totalTradeCount int
	var totalNetPnl, totalCommission, totalTurnover float64
	for _, d := range daily {
		if d.NetPnl > 0 {
			profitDays++
		} else if d.NetPnl < 0 {
			lossDays++
		}
		totalNetPnl += d.NetPnl
		totalCommission += d.Commission
		totalTurnover += d.Turnover
		totalTradeCount += d.TradeCount
	}

	endBalance := capital + totalNetPnl
	totalReturn := totalNetPnl / capital
	annualReturn := totalReturn * 365 / float64(totalDays)
	dailyReturn := totalReturn / float64(totalDays)

	maxDrawdown, maxDrawdownPercent := maxDrawdowns(capital, daily)

	returns := make([]float64, totalDays)
	for i, d := range daily {
		returns[i] = d.NetPnl / capital
	}
	returnStd := populationStd(returns)

	var sharpeRatio float64
	if returnStd > 0 {
		sharpeRatio = dailyReturn / returnStd * math.Sqrt(365)
	}

	var returnDrawdownRatio float64
	if maxDrawdown > 0 {
		returnDrawdownRatio = totalNetPnl / maxDrawdown
	}

	return domain.BacktestResult{
		StartDate:           settings.StartDate,
		EndDate:             settings.EndDate,
		TotalDays:           totalDays,
		ProfitDays:          profitDays,
		LossDays:            lossDays,
		EndBalance:          endBalance,
		MaxDrawdown:         maxDrawdown,
		MaxDrawdownPercent:  maxDrawdownPercent,
		TotalNetPnl:         totalNetPnl,
		DailyNetPnl:         totalNetPnl / float64(totalDays),
		TotalCommission:     totalCommission,
		DailyCommission:     totalCommission / float64(totalDays),
		TotalTurnover:       totalTurnover,
		DailyTurnover:       totalTurnover / float64(totalDays),
		TotalTradeCount:     totalTradeCount,
		DailyTradeCount:     float64(totalTradeCount) / float64(totalDays),
		TotalReturn:         totalReturn,
		AnnualReturn:        annualReturn,
		DailyReturn:         dailyReturn,
		ReturnStd:           returnStd,
		SharpeRatio:         sharpeRatio,
		ReturnDrawdownRatio: returnDrawdownRatio,
		DailyResults:        daily,
	}, nil
}

// maxDrawdowns walks the cumulative balance series tracking the
// running peak. The absolute and percentage maxima are tracked
// independently.
func maxDrawdowns(capital float64, daily []domain.DailyResult) (maxDrawdown, maxDrawdownPercent float64) {
	peak := capital
	for _, d := range daily {
		balance := capital + d.AccumPnl
		if balance > peak {
			peak = balance
		}

		drawdown := peak - balance
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
		if peak > 0 {
			if pct := drawdown / peak; pct > maxDrawdownPercent {
				maxDrawdownPercent = pct
			}
		}
	}
	return maxDrawdown, maxDrawdownPercent
}

func populationStd(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func sortedDates(snapshots map[string]*domain.Snapshot) []string {
	dates := make([]string, 0, len(snapshots))
	for date := range snapshots {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

func (e *Engine) writeReport(r domain.BacktestResult) {
	e.WriteLog("---------- backtest result ----------")
	e.WriteLog(fmt.Sprintf("period:\t%s ~ %s (%d days, %d profit / %d loss)", r.StartDate, r.EndDate, r.TotalDays, r.ProfitDays, r.LossDays))
	e.WriteLog(fmt.Sprintf("end balance:\t%.2f", r.EndBalance))
	e.WriteLog(fmt.Sprintf("total net pnl:\t%.2f", r.TotalNetPnl))
	e.WriteLog(fmt.Sprintf("total commission:\t%.2f", r.TotalCommission))
	e.WriteLog(fmt.Sprintf("total turnover:\t%.2f", r.TotalTurnover))
	e.WriteLog(fmt.Sprintf("trade count:\t%d", r.TotalTradeCount))
	e.WriteLog(fmt.Sprintf("total return:\t%.2f%%", r.TotalReturn*100))
	e.WriteLog(fmt.Sprintf("annual return:\t%.2f%%", r.AnnualReturn*100))
	e.WriteLog(fmt.Sprintf("max drawdown:\t%.2f (%.2f%%)", r.MaxDrawdown, r.MaxDrawdownPercent*100))
	e.WriteLog(fmt.Sprintf("sharpe ratio:\t%.2f", r.SharpeRatio))
	e.WriteLog(fmt.Sprintf("return/drawdown:\t%.2f", r.ReturnDrawdownRatio))
}
