package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"optlab/internal/indicator"
	"optlab/internal/logger"
	"optlab/internal/market"
	"optlab/internal/strategy"
)

var log = logger.NewScope("engine")

// Direction 持仓方向。
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// TradeStatus 交易状态，收盘后全部交易必须是 Closed。
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// Trade 一笔完整的股票交易，平仓后不再修改。
// ProfitLoss 为方向调整后的价差乘股数（毛利），手续费单独从资金中扣除。
type Trade struct {
	Direction     Direction       `json:"direction"`
	EntryDate     string          `json:"entry_date"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	Shares        int64           `json:"shares"`
	Status        TradeStatus     `json:"status"`
	ExitDate      string          `json:"exit_date,omitempty"`
	ExitPrice     decimal.Decimal `json:"exit_price"`
	ProfitLoss    decimal.Decimal `json:"profit_loss"`
	ReturnPercent decimal.Decimal `json:"return_percent"`
}

// Config 回测引擎参数。
type Config struct {
	InitialCapital decimal.Decimal
	Commission     decimal.Decimal // 每笔固定手续费
	AllowShort     bool
}

// DefaultConfig 返回常用的回测参数。
func DefaultConfig() Config {
	return Config{
		InitialCapital: decimal.NewFromInt(100000),
		Commission:     decimal.NewFromInt(1),
		AllowShort:     false,
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

// Result 单次回测的完整产出，只读。
type Result struct {
	Strategy       string            `json:"strategy"`
	Symbol         string            `json:"symbol"`
	InitialCapital decimal.Decimal   `json:"initial_capital"`
	FinalCapital   decimal.Decimal   `json:"final_capital"`
	Trades         []Trade           `json:"trades"`
	EquityCurve    []decimal.Decimal `json:"equity_curve"`
	Metrics        Metrics           `json:"metrics"`
}

// Engine 股票回测引擎。每次 Run 独立建仓管理，实例可复用但不可并发共享一次运行。
type Engine struct {
	cfg Config
}

// New 构造引擎，配置错误立即返回而不是推迟到回测中。
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Run 按序驱动策略完成单标的回测。
// 序列为空或策略为 nil 属于调用方错误，直接拒绝。
func (e *Engine) Run(series market.Series, strat strategy.Strategy, bundle *indicator.Bundle) (*Result, error) {
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
	trades := make([]Trade, 0, 8)

	var open *Trade
	warmup := strat.Warmup()

	for i, bar := range series.Bars {
		if i >= warmup {
			sig := strat.Evaluate(series, bundle, i)
			switch {
			case open == nil && sig == strategy.Buy:
				if t, ok := e.openTrade(Long, bar, capital); ok {
					capital = capital.Sub(t.EntryPrice.Mul(decimal.NewFromInt(t.Shares))).Sub(e.cfg.Commission)
					open = &t
				}
			case open == nil && sig == strategy.Sell && e.cfg.AllowShort:
				// 做空用与做多相同的资金/价格公式定股数，不建模保证金，属于刻意简化
				if t, ok := e.openTrade(Short, bar, capital); ok {
					capital = capital.Add(t.EntryPrice.Mul(decimal.NewFromInt(t.Shares))).Sub(e.cfg.Commission)
					open = &t
				}
			case open != nil && opposite(open.Direction, sig):
				capital = e.closeTrade(open, bar.Date, bar.Close, capital)
				trades = append(trades, *open)
				open = nil
			}
		}
		curve = append(curve, markToMarket(capital, open, bar.Close))
	}

	// 序列结束强制平仓，保证所有交易都已平仓
	if open != nil {
		last := series.Bars[len(series.Bars)-1]
		capital = e.closeTrade(open, last.Date, last.Close, capital)
		trades = append(trades, *open)
		open = nil
		curve[len(curve)-1] = capital.Round(2)
	}

	res := &Result{
		Strategy:       strat.Name(),
		Symbol:         series.Symbol,
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   capital.Round(2),
		Trades:         trades,
		EquityCurve:    curve,
		Metrics:        ComputeMetrics(e.cfg.InitialCapital, capital, trades, curve),
	}
	log.Debugf("回测完成 strategy=%s symbol=%s trades=%d final=%s",
		res.Strategy, res.Symbol, len(trades), res.FinalCapital)
	return res, nil
}

// openTrade 全仓整数股建仓，可用资金不足一股时放弃。
// 做空与做多用同一资金/价格公式，不建模保证金要求。
func (e *Engine) openTrade(dir Direction, bar market.Bar, capital decimal.Decimal) (Trade, bool) {
	if !bar.Close.IsPositive() {
		return Trade{}, false
	}
	shares := capital.Sub(e.cfg.Commission).Div(bar.Close).IntPart()
	if shares < 1 {
		return Trade{}, false
	}
	return Trade{
		Direction:  dir,
		EntryDate:  bar.Date,
		EntryPrice: bar.Close,
		Shares:     shares,
		Status:     StatusOpen,
	}, true
}

func (e *Engine) closeTrade(t *Trade, date string, price, capital decimal.Decimal) decimal.Decimal {
	shares := decimal.NewFromInt(t.Shares)
	var pl decimal.Decimal
	if t.Direction == Short {
		pl = t.EntryPrice.Sub(price).Mul(shares)
		capital = capital.Sub(price.Mul(shares))
	} else {
		pl = price.Sub(t.EntryPrice).Mul(shares)
		capital = capital.Add(price.Mul(shares))
	}
	capital = capital.Sub(e.cfg.Commission)

	t.Status = StatusClosed
	t.ExitDate = date
	t.ExitPrice = price
	t.ProfitLoss = pl.Round(2)
	cost := t.EntryPrice.Mul(shares)
	if cost.IsPositive() {
		t.ReturnPercent = pl.Div(cost).Mul(decimal.NewFromInt(100)).Round(4)
	}
	return capital
}

// markToMarket 逐根记录资金加持仓浮动价值。
func markToMarket(capital decimal.Decimal, open *Trade, price decimal.Decimal) decimal.Decimal {
	if open == nil {
		return capital.Round(2)
	}
	value := price.Mul(decimal.NewFromInt(open.Shares))
	if open.Direction == Short {
		return capital.Sub(value).Round(2)
	}
	return capital.Add(value).Round(2)
}

func opposite(dir Direction, sig strategy.Signal) bool {
	if dir == Long {
		return sig == strategy.Sell
	}
	return sig == strategy.Buy
}
