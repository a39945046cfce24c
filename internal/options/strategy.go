package options

import (
	"fmt"

	"github.com/shopspring/decimal"

	"optlab/internal/indicator"
	"optlab/internal/market"
	"optlab/internal/pricing"
)

// Action 期权策略在单根 K 线上的动作。
type Action string

const (
	Open  Action = "OPEN"
	Close Action = "CLOSE"
	Hold  Action = "HOLD"
)

// Strategy 期权策略：Evaluate 决定动作，CreateLegs 在开仓时给出腿描述。
// 两个方法都不得修改外部状态。
type Strategy interface {
	Name() string
	Warmup() int
	Evaluate(series market.Series, bundle *indicator.Bundle, idx int, open []*OptionTrade) Action
	CreateLegs(series market.Series, bundle *indicator.Bundle, idx int) []LegSpec
}

// strikeIncrement 标准行权价间隔。
var strikeIncrement = decimal.NewFromInt(5)

// NearestStrike 把目标价取整到最近的标准行权价。
func NearestStrike(price decimal.Decimal) decimal.Decimal {
	return price.Div(strikeIncrement).Round(0).Mul(strikeIncrement)
}

// expirationAfter 从当前日推算目标到期日，日期算不出来时退回当前日。
func expirationAfter(date string, dte int) string {
	exp, err := market.AddDays(date, dte)
	if err != nil {
		return date
	}
	return exp
}

// CoveredCall 备兑开仓：假定已持有正股，卖出价外看涨收权利金，持有到期。
type CoveredCall struct {
	otmPct    decimal.Decimal
	dte       int
	contracts int64
}

// NewCoveredCall 价外比例按小数给（0.05 即 5%）。
func NewCoveredCall(otmPct float64, dte int, contracts int64) (*CoveredCall, error) {
	if otmPct < 0 {
		return nil, fmt.Errorf("价外比例不能为负: %.4f", otmPct)
	}
	if dte <= 0 {
		return nil, fmt.Errorf("目标到期天数必须为正: %d", dte)
	}
	if contracts <= 0 {
		return nil, fmt.Errorf("合约张数必须为正: %d", contracts)
	}
	return &CoveredCall{
		otmPct:    decimal.NewFromFloat(otmPct),
		dte:       dte,
		contracts: contracts,
	}, nil
}

func (s *CoveredCall) Name() string { return "covered_call" }
func (s *CoveredCall) Warmup() int  { return pricing.DefaultVolLookback + 1 }

func (s *CoveredCall) Evaluate(_ market.Series, _ *indicator.Bundle, idx int, open []*OptionTrade) Action {
	if idx < s.Warmup() {
		return Hold
	}
	if len(open) == 0 {
		return Open
	}
	return Hold
}

func (s *CoveredCall) CreateLegs(series market.Series, _ *indicator.Bundle, idx int) []LegSpec {
	bar := series.Bars[idx]
	target := bar.Close.Mul(decimal.NewFromInt(1).Add(s.otmPct))
	return []LegSpec{{
		Direction:  Short,
		Type:       pricing.Call,
		Strike:     NearestStrike(target),
		Expiration: expirationAfter(bar.Date, s.dte),
		Contracts:  s.contracts,
	}}
}

// ProtectivePut 保护性认沽：买入价外看跌给持仓上保险，持有到期。
type ProtectivePut struct {
	otmPct    decimal.Decimal
	dte       int
	contracts int64
}

func NewProtectivePut(otmPct float64, dte int, contracts int64) (*ProtectivePut, error) {
	if otmPct < 0 {
		return nil, fmt.Errorf("价外比例不能为负: %.4f", otmPct)
	}
	if dte <= 0 {
		return nil, fmt.Errorf("目标到期天数必须为正: %d", dte)
	}
	if contracts <= 0 {
		return nil, fmt.Errorf("合约张数必须为正: %d", contracts)
	}
	return &ProtectivePut{
		otmPct:    decimal.NewFromFloat(otmPct),
		dte:       dte,
		contracts: contracts,
	}, nil
}

func (s *ProtectivePut) Name() string { return "protective_put" }
func (s *ProtectivePut) Warmup() int  { return pricing.DefaultVolLookback + 1 }

func (s *ProtectivePut) Evaluate(_ market.Series, _ *indicator.Bundle, idx int, open []*OptionTrade) Action {
	if idx < s.Warmup() {
		return Hold
	}
	if len(open) == 0 {
		return Open
	}
	return Hold
}

func (s *ProtectivePut) CreateLegs(series market.Series, _ *indicator.Bundle, idx int) []LegSpec {
	bar := series.Bars[idx]
	target := bar.Close.Mul(decimal.NewFromInt(1).Sub(s.otmPct))
	return []LegSpec{{
		Direction:  Long,
		Type:       pricing.Put,
		Strike:     NearestStrike(target),
		Expiration: expirationAfter(bar.Date, s.dte),
		Contracts:  s.contracts,
	}}
}

// LongStraddle 买入跨式：同一平值行权价同时买入看涨与看跌，赌波动不赌方向。
type LongStraddle struct {
	dte       int
	contracts int64
}

func NewLongStraddle(dte int, contracts int64) (*LongStraddle, error) {
	if dte <= 0 {
		return nil, fmt.Errorf("目标到期天数必须为正: %d", dte)
	}
	if contracts <= 0 {
		return nil, fmt.Errorf("合约张数必须为正: %d", contracts)
	}
	return &LongStraddle{dte: dte, contracts: contracts}, nil
}

func (s *LongStraddle) Name() string { return "long_straddle" }
func (s *LongStraddle) Warmup() int  { return pricing.DefaultVolLookback + 1 }

func (s *LongStraddle) Evaluate(_ market.Series, _ *indicator.Bundle, idx int, open []*OptionTrade) Action {
	if idx < s.Warmup() {
		return Hold
	}
	if len(open) == 0 {
		return Open
	}
	return Hold
}

// CreateLegs 两条腿共用同一行权价与到期日，必须同时开仓。
func (s *LongStraddle) CreateLegs(series market.Series, _ *indicator.Bundle, idx int) []LegSpec {
	bar := series.Bars[idx]
	strike := NearestStrike(bar.Close)
	exp := expirationAfter(bar.Date, s.dte)
	return []LegSpec{
		{Direction: Long, Type: pricing.Call, Strike: strike, Expiration: exp, Contracts: s.contracts},
		{Direction: Long, Type: pricing.Put, Strike: strike, Expiration: exp, Contracts: s.contracts},
	}
}

// SingleLeg 通用单腿策略：可配置方向、类型、价外比例与持有期，
// holdDays > 0 时持有满该自然日数后主动平仓，否则持有到期。
type SingleLeg struct {
	direction Direction
	typ       pricing.OptionType
	otmPct    decimal.Decimal
	dte       int
	contracts int64
	holdDays  int
	volume    int64
	name      string
}

// SingleLegParams 通用单腿策略参数。
type SingleLegParams struct {
	Direction Direction
	Type      pricing.OptionType
	OTMPct    float64
	DTE       int
	Contracts int64
	HoldDays  int   // 按自然日计的持有期，0 表示持有到期
	Volume    int64 // 开仓腿记录的合约成交量
}

func NewSingleLeg(p SingleLegParams) (*SingleLeg, error) {
	if p.Direction != Long && p.Direction != Short {
		return nil, fmt.Errorf("非法方向: %s", p.Direction)
	}
	if p.Type != pricing.Call && p.Type != pricing.Put {
		return nil, fmt.Errorf("非法期权类型: %s", p.Type)
	}
	if p.DTE <= 0 {
		return nil, fmt.Errorf("目标到期天数必须为正: %d", p.DTE)
	}
	if p.Contracts <= 0 {
		return nil, fmt.Errorf("合约张数必须为正: %d", p.Contracts)
	}
	if p.HoldDays < 0 {
		return nil, fmt.Errorf("持有期不能为负: %d", p.HoldDays)
	}
	if p.Volume < 0 {
		return nil, fmt.Errorf("成交量不能为负: %d", p.Volume)
	}
	return &SingleLeg{
		direction: p.Direction,
		typ:       p.Type,
		otmPct:    decimal.NewFromFloat(p.OTMPct),
		dte:       p.DTE,
		contracts: p.Contracts,
		holdDays:  p.HoldDays,
		volume:    p.Volume,
		name:      fmt.Sprintf("single_%s_%s_%d", p.Direction, p.Type, p.DTE),
	}, nil
}

func (s *SingleLeg) Name() string { return s.name }
func (s *SingleLeg) Warmup() int  { return pricing.DefaultVolLookback + 1 }

func (s *SingleLeg) Evaluate(series market.Series, _ *indicator.Bundle, idx int, open []*OptionTrade) Action {
	if idx < s.Warmup() {
		return Hold
	}
	if len(open) == 0 {
		return Open
	}
	if s.holdDays > 0 {
		held, err := market.DaysBetween(open[0].EntryDate, series.Bars[idx].Date)
		if err == nil && held >= s.holdDays {
			return Close
		}
	}
	return Hold
}

func (s *SingleLeg) CreateLegs(series market.Series, _ *indicator.Bundle, idx int) []LegSpec {
	bar := series.Bars[idx]
	adj := s.otmPct
	if s.typ == pricing.Put {
		adj = adj.Neg()
	}
	target := bar.Close.Mul(decimal.NewFromInt(1).Add(adj))
	return []LegSpec{{
		Direction:   s.direction,
		Type:        s.typ,
		Strike:      NearestStrike(target),
		Expiration:  expirationAfter(bar.Date, s.dte),
		Contracts:   s.contracts,
		EntryVolume: s.volume,
	}}
}
