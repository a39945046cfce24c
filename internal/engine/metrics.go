package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// ProfitFactorCap 无亏损交易时的利润因子哨兵值，指标里不允许出现无穷大。
var ProfitFactorCap = decimal.RequireFromString("999.99")

const periodsPerYear = 252

// Metrics 回测指标汇总，比例类数值保留两位小数。
type Metrics struct {
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	TotalReturnPct decimal.Decimal `json:"total_return_pct"`
	WinRatePct     decimal.Decimal `json:"win_rate_pct"`
	ProfitFactor   decimal.Decimal `json:"profit_factor"`
	MaxDrawdownPct decimal.Decimal `json:"max_drawdown_pct"`
	SharpeRatio    decimal.Decimal `json:"sharpe_ratio"`
}

// ComputeMetrics 从已平仓交易与资金曲线汇总指标。
func ComputeMetrics(initial, final decimal.Decimal, trades []Trade, curve []decimal.Decimal) Metrics {
	m := Metrics{
		TotalTrades:    len(trades),
		TotalReturnPct: totalReturn(initial, final),
		MaxDrawdownPct: MaxDrawdown(curve),
		SharpeRatio:    SharpeRatio(curve),
	}

	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	for _, t := range trades {
		if t.ProfitLoss.IsPositive() {
			m.WinningTrades++
			grossWin = grossWin.Add(t.ProfitLoss)
		} else if t.ProfitLoss.IsNegative() {
			m.LosingTrades++
			grossLoss = grossLoss.Add(t.ProfitLoss.Abs())
		}
	}
	if len(trades) > 0 {
		m.WinRatePct = decimal.NewFromInt(int64(m.WinningTrades)).
			Div(decimal.NewFromInt(int64(len(trades)))).
			Mul(decimal.NewFromInt(100)).Round(2)
	}
	m.ProfitFactor = profitFactor(grossWin, grossLoss)
	return m
}

func totalReturn(initial, final decimal.Decimal) decimal.Decimal {
	if !initial.IsPositive() {
		return decimal.Zero
	}
	return final.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)).Round(2)
}

// profitFactor 毛利除以毛亏。没有亏损交易时返回哨兵值，没有任何盈亏时返回零。
func profitFactor(grossWin, grossLoss decimal.Decimal) decimal.Decimal {
	if grossLoss.IsZero() {
		if grossWin.IsPositive() {
			return ProfitFactorCap
		}
		return decimal.Zero
	}
	pf := grossWin.Div(grossLoss).Round(2)
	if pf.GreaterThan(ProfitFactorCap) {
		return ProfitFactorCap
	}
	return pf
}

// MaxDrawdown 资金曲线的最大峰谷回撤百分比，不足两个点返回零。
func MaxDrawdown(curve []decimal.Decimal) decimal.Decimal {
	if len(curve) < 2 {
		return decimal.Zero
	}
	peak := curve[0]
	maxDD := decimal.Zero
	for _, v := range curve[1:] {
		if v.GreaterThan(peak) {
			peak = v
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(v).Div(peak).Mul(decimal.NewFromInt(100))
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD.Round(2)
}

// SharpeRatio 按逐根收益率年化（√252）。曲线不足两点或波动为零返回零。
// 比率本身不是货币量，中间计算用浮点开方后再转回 decimal。
func SharpeRatio(curve []decimal.Decimal) decimal.Decimal {
	if len(curve) < 2 {
		return decimal.Zero
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].Float64()
		cur, _ := curve[i].Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, cur/prev-1)
	}
	if len(returns) < 2 {
		return decimal.Zero
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mean / std * math.Sqrt(periodsPerYear)).Round(2)
}
