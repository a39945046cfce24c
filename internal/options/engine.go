package options

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"optlab/internal/indicator"
	"optlab/internal/logger"
	"optlab/internal/market"
	"optlab/internal/pricing"
)

var log = logger.NewScope("options")

// Config 期权回测引擎参数。
type Config struct {
	InitialCapital decimal.Decimal
	Commission     decimal.Decimal // 每张合约手续费，开仓与到期前平仓各收一次
	RiskFreeRate   float64
	VolLookback    int
}

// DefaultConfig 返回常用的期权回测参数。
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(100000),
		Commission:     decimal.RequireFromString("0.65"),
		RiskFreeRate:   0.05,
		VolLookback:    pricing.DefaultVolLookback,
	}
}

func (c Config) validate() error {
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("初始资金必须为正: %s", c.InitialCapital)
	}
	if c.Commission.IsNegative() {
		return fmt.Errorf("手续费不能为负: %s", c.Commission)
	}
	return nil
}

// Result 期权回测产出。
type Result struct {
	Strategy       string            `json:"strategy"`
	Symbol         string            `json:"symbol"`
	InitialCapital decimal.Decimal   `json:"initial_capital"`
	FinalCapital   decimal.Decimal   `json:"final_capital"`
	Trades         []OptionTrade     `json:"trades"`
	EquityCurve    []decimal.Decimal `json:"equity_curve"`
	Metrics        Metrics           `json:"metrics"`
}

// Engine 期权回测引擎，逐根驱动策略并用定价模型估值与结算。
type Engine struct {
	cfg Config
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.VolLookback <= 0 {
		cfg.VolLookback = pricing.DefaultVolLookback
	}
	return &Engine{cfg: cfg}, nil
}

// Run 完成一次期权策略回测。
func (e *Engine) Run(series market.Series, strat Strategy, bundle *indicator.Bundle) (*Result, error) {
	if strat == nil {
		return nil, errors.New("策略不能为 nil")
	}
	if len(series.Bars) == 0 {
		return nil, errors.New("价格序列为空")
	}
	if bundle == nil {
		bundle = indicator.ComputeBundle(series, indicator.DefaultBundleParams())
	}

	capital := e.cfg.InitialCapital
	curve := make([]decimal.Decimal, 0, len(series.Bars))
	closed := make([]OptionTrade, 0, 8)
	var open []*OptionTrade

	for i, bar := range series.Bars {
		// 先结算所有已到期的腿，再让策略看到剩余持仓
		capital, open = e.settleExpired(capital, open, &closed, bar)

		if i >= strat.Warmup() {
			switch strat.Evaluate(series, bundle, i, open) {
			case Open:
				if len(open) == 0 {
					capital, open = e.openLegs(capital, strat.CreateLegs(series, bundle, i), bundle, bar, i)
				}
			case Close:
				capital, open = e.closeEarly(capital, open, &closed, bundle, bar, i)
			}
		}

		curve = append(curve, e.markToMarket(capital, open, bundle, bar, i))
	}

	// 序列结束：剩余持仓按内在价值强制结算
	if len(open) > 0 {
		last := series.Bars[len(series.Bars)-1]
		capital, open = e.settleLegs(capital, open, &closed, last)
		curve[len(curve)-1] = capital.Round(2)
	}

	res := &Result{
		Strategy:       strat.Name(),
		Symbol:         series.Symbol,
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   capital.Round(2),
		Trades:         closed,
		EquityCurve:    curve,
		Metrics:        ComputeMetrics(e.cfg.InitialCapital, capital, closed, curve),
	}
	log.Debugf("期权回测完成 strategy=%s symbol=%s legs=%d final=%s",
		res.Strategy, res.Symbol, len(closed), res.FinalCapital)
	return res, nil
}

// openLegs 按腿描述建仓，入场权利金用理论价。多头付不起权利金时整组放弃。
// 腿未指定入场成交量时记当根标的成交量。
func (e *Engine) openLegs(capital decimal.Decimal, specs []LegSpec, bundle *indicator.Bundle, bar market.Bar, idx int) (decimal.Decimal, []*OptionTrade) {
	if len(specs) == 0 {
		return capital, nil
	}
	sigma := e.volAt(bundle, idx)
	spot, _ := bar.Close.Float64()

	cost := decimal.Zero
	legs := make([]*OptionTrade, 0, len(specs))
	for _, spec := range specs {
		if spec.Contracts <= 0 || !spec.Strike.IsPositive() {
			return capital, nil
		}
		t := e.timeToExpiry(bar.Date, spec.Expiration)
		strike, _ := spec.Strike.Float64()
		premium := pricing.Premium(spec.Type, spot, strike, t, e.cfg.RiskFreeRate, sigma)

		mult := decimal.NewFromInt(spec.Contracts).Mul(ContractMultiplier)
		fee := e.cfg.Commission.Mul(decimal.NewFromInt(spec.Contracts))
		if spec.Direction == Long {
			cost = cost.Add(premium.Mul(mult)).Add(fee)
		} else {
			cost = cost.Sub(premium.Mul(mult)).Add(fee)
		}
		entryVol := spec.EntryVolume
		if entryVol == 0 {
			entryVol = bar.Volume
		}
		legs = append(legs, &OptionTrade{
			Direction:    spec.Direction,
			Type:         spec.Type,
			Strike:       spec.Strike,
			Expiration:   spec.Expiration,
			Contracts:    spec.Contracts,
			EntryDate:    bar.Date,
			EntryPremium: premium,
			EntryVolume:  entryVol,
			Status:       StatusOpen,
		})
	}
	if cost.GreaterThan(capital) {
		log.Debugf("资金不足放弃开仓 cost=%s capital=%s", cost, capital)
		return capital, nil
	}
	return capital.Sub(cost), legs
}

// settleExpired 把到期日不晚于当前 K 线的腿按内在价值结算。
func (e *Engine) settleExpired(capital decimal.Decimal, open []*OptionTrade, closed *[]OptionTrade, bar market.Bar) (decimal.Decimal, []*OptionTrade) {
	remaining := open[:0]
	for _, leg := range open {
		days, err := market.DaysBetween(bar.Date, leg.Expiration)
		if err == nil && days > 0 {
			remaining = append(remaining, leg)
			continue
		}
		capital = e.settleOne(capital, leg, bar)
		*closed = append(*closed, *leg)
	}
	return capital, remaining
}

// settleLegs 无条件按内在价值结算所有持仓（序列结束时使用）。
func (e *Engine) settleLegs(capital decimal.Decimal, open []*OptionTrade, closed *[]OptionTrade, bar market.Bar) (decimal.Decimal, []*OptionTrade) {
	for _, leg := range open {
		capital = e.settleOne(capital, leg, bar)
		*closed = append(*closed, *leg)
	}
	return capital, nil
}

func (e *Engine) settleOne(capital decimal.Decimal, leg *OptionTrade, bar market.Bar) decimal.Decimal {
	intrinsic := pricing.IntrinsicDecimal(leg.Type, bar.Close, leg.Strike).Round(2)
	status := StatusExpired
	if intrinsic.IsPositive() {
		status = StatusAssigned
	}
	leg.settle(status, bar.Date, intrinsic, bar.Volume)

	mult := decimal.NewFromInt(leg.Contracts).Mul(ContractMultiplier)
	if leg.Direction == Long {
		return capital.Add(intrinsic.Mul(mult))
	}
	return capital.Sub(intrinsic.Mul(mult))
}

// closeEarly 到期前按理论权利金平掉全部持仓。
func (e *Engine) closeEarly(capital decimal.Decimal, open []*OptionTrade, closed *[]OptionTrade, bundle *indicator.Bundle, bar market.Bar, idx int) (decimal.Decimal, []*OptionTrade) {
	sigma := e.volAt(bundle, idx)
	spot, _ := bar.Close.Float64()
	for _, leg := range open {
		strike, _ := leg.Strike.Float64()
		t := e.timeToExpiry(bar.Date, leg.Expiration)
		premium := pricing.Premium(leg.Type, spot, strike, t, e.cfg.RiskFreeRate, sigma)
		leg.settle(StatusExited, bar.Date, premium, bar.Volume)

		mult := decimal.NewFromInt(leg.Contracts).Mul(ContractMultiplier)
		fee := e.cfg.Commission.Mul(decimal.NewFromInt(leg.Contracts))
		if leg.Direction == Long {
			capital = capital.Add(premium.Mul(mult)).Sub(fee)
		} else {
			capital = capital.Sub(premium.Mul(mult)).Sub(fee)
		}
		*closed = append(*closed, *leg)
	}
	return capital, nil
}

// markToMarket 现金加持仓腿的理论价值。
func (e *Engine) markToMarket(capital decimal.Decimal, open []*OptionTrade, bundle *indicator.Bundle, bar market.Bar, idx int) decimal.Decimal {
	if len(open) == 0 {
		return capital.Round(2)
	}
	sigma := e.volAt(bundle, idx)
	spot, _ := bar.Close.Float64()
	equity := capital
	for _, leg := range open {
		strike, _ := leg.Strike.Float64()
		t := e.timeToExpiry(bar.Date, leg.Expiration)
		premium := pricing.Premium(leg.Type, spot, strike, t, e.cfg.RiskFreeRate, sigma)
		value := premium.Mul(decimal.NewFromInt(leg.Contracts)).Mul(ContractMultiplier)
		if leg.Direction == Long {
			equity = equity.Add(value)
		} else {
			equity = equity.Sub(value)
		}
	}
	return equity.Round(2)
}

func (e *Engine) volAt(bundle *indicator.Bundle, idx int) float64 {
	end := idx + 1
	if end > len(bundle.Closes) {
		end = len(bundle.Closes)
	}
	return pricing.HistoricalVolatility(bundle.Closes[:end], e.cfg.VolLookback)
}

func (e *Engine) timeToExpiry(date, expiration string) float64 {
	days, err := market.DaysBetween(date, expiration)
	if err != nil || days < 0 {
		return 0
	}
	return float64(days) / 365.0
}
