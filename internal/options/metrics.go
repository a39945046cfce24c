package options

import (
	"github.com/shopspring/decimal"

	"optlab/internal/engine"
)

// Metrics 期权回测指标，在股票回测指标之上增加权利金与行权统计。
type Metrics struct {
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	TotalReturnPct   decimal.Decimal `json:"total_return_pct"`
	WinRatePct       decimal.Decimal `json:"win_rate_pct"`
	ProfitFactor     decimal.Decimal `json:"profit_factor"`
	MaxDrawdownPct   decimal.Decimal `json:"max_drawdown_pct"`
	SharpeRatio      decimal.Decimal `json:"sharpe_ratio"`
	PremiumCollected decimal.Decimal `json:"premium_collected"`
	PremiumPaid      decimal.Decimal `json:"premium_paid"`
	AssignedTrades   int             `json:"assigned_trades"`
	AssignmentRate   decimal.Decimal `json:"assignment_rate_pct"`
	TotalVolume      int64           `json:"total_volume"`
	AverageVolume    decimal.Decimal `json:"average_volume"`
}

// ComputeMetrics 从已关闭的腿与资金曲线汇总指标。
func ComputeMetrics(initial, final decimal.Decimal, trades []OptionTrade, curve []decimal.Decimal) Metrics {
	m := Metrics{
		TotalTrades:    len(trades),
		MaxDrawdownPct: engine.MaxDrawdown(curve),
		SharpeRatio:    engine.SharpeRatio(curve),
	}
	if initial.IsPositive() {
		m.TotalReturnPct = final.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)).Round(2)
	}

	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	for _, t := range trades {
		mult := decimal.NewFromInt(t.Contracts).Mul(ContractMultiplier)
		notional := t.EntryPremium.Mul(mult)
		if t.Direction == Short {
			m.PremiumCollected = m.PremiumCollected.Add(notional)
		} else {
			m.PremiumPaid = m.PremiumPaid.Add(notional)
		}
		if t.Status == StatusAssigned {
			m.AssignedTrades++
		}
		m.TotalVolume += t.EntryVolume + t.ExitVolume

		if t.ProfitLoss.IsPositive() {
			m.WinningTrades++
			grossWin = grossWin.Add(t.ProfitLoss)
		} else if t.ProfitLoss.IsNegative() {
			m.LosingTrades++
			grossLoss = grossLoss.Add(t.ProfitLoss.Abs())
		}
	}

	if len(trades) > 0 {
		n := decimal.NewFromInt(int64(len(trades)))
		m.WinRatePct = decimal.NewFromInt(int64(m.WinningTrades)).Div(n).Mul(decimal.NewFromInt(100)).Round(2)
		m.AssignmentRate = decimal.NewFromInt(int64(m.AssignedTrades)).Div(n).Mul(decimal.NewFromInt(100)).Round(2)
		m.AverageVolume = decimal.NewFromInt(m.TotalVolume).Div(n).Round(2)
	}

	if grossLoss.IsZero() {
		if grossWin.IsPositive() {
			m.ProfitFactor = engine.ProfitFactorCap
		}
	} else {
		pf := grossWin.Div(grossLoss).Round(2)
		if pf.GreaterThan(engine.ProfitFactorCap) {
			pf = engine.ProfitFactorCap
		}
		m.ProfitFactor = pf
	}
	m.PremiumCollected = m.PremiumCollected.Round(2)
	m.PremiumPaid = m.PremiumPaid.Round(2)
	return m
}
