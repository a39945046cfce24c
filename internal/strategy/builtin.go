package strategy

import (
	"fmt"

	"optlab/internal/indicator"
	"optlab/internal/market"
)

// MACross 双均线交叉策略：快线上穿慢线做多，下穿平多做空方向观望。
type MACross struct {
	fast int
	slow int
	name string
}

// NewMACross 校验周期后构造，快线周期必须小于慢线。
func NewMACross(fast, slow int) (*MACross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("均线周期必须为正: fast=%d slow=%d", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("快线周期必须小于慢线: fast=%d slow=%d", fast, slow)
	}
	return &MACross{fast: fast, slow: slow, name: fmt.Sprintf("ma_cross_%d_%d", fast, slow)}, nil
}

func (s *MACross) Name() string { return s.name }

// Warmup 需要慢线定义后再多一根用于判定交叉。
func (s *MACross) Warmup() int { return s.slow + 1 }

func (s *MACross) Evaluate(_ market.Series, bundle *indicator.Bundle, idx int) Signal {
	if idx < s.Warmup() {
		return Hold
	}
	fastCur, ok1 := indicator.SMA(bundle.Closes, s.fast, idx).Float()
	slowCur, ok2 := indicator.SMA(bundle.Closes, s.slow, idx).Float()
	fastPrev, ok3 := indicator.SMA(bundle.Closes, s.fast, idx-1).Float()
	slowPrev, ok4 := indicator.SMA(bundle.Closes, s.slow, idx-1).Float()
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Hold
	}
	if fastPrev <= slowPrev && fastCur > slowCur {
		return Buy
	}
	if fastPrev >= slowPrev && fastCur < slowCur {
		return Sell
	}
	return Hold
}

// RSIReversion RSI 超买超卖反转策略。
// 从超卖区向上穿越买入，从超买区向下穿越卖出。
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
	name       string
}

// NewRSIReversion 构造时校验参数，阈值倒挂立即报错而不是留到回测中。
func NewRSIReversion(period int, oversold, overbought float64) (*RSIReversion, error) {
	if period <= 0 {
		return nil, fmt.Errorf("RSI 周期必须为正: %d", period)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("超卖阈值必须小于超买阈值: %.1f >= %.1f", oversold, overbought)
	}
	return &RSIReversion{
		period:     period,
		oversold:   oversold,
		overbought: overbought,
		name:       fmt.Sprintf("rsi_%d_%.0f_%.0f", period, oversold, overbought),
	}, nil
}

func (s *RSIReversion) Name() string { return s.name }

func (s *RSIReversion) Warmup() int { return s.period + 1 }

func (s *RSIReversion) Evaluate(_ market.Series, bundle *indicator.Bundle, idx int) Signal {
	if idx < s.Warmup() {
		return Hold
	}
	cur, ok1 := s.rsiAt(bundle, idx)
	prev, ok2 := s.rsiAt(bundle, idx-1)
	if !ok1 || !ok2 {
		return Hold
	}
	if prev < s.oversold && cur >= s.oversold {
		return Buy
	}
	if prev > s.overbought && cur <= s.overbought {
		return Sell
	}
	return Hold
}

func (s *RSIReversion) rsiAt(bundle *indicator.Bundle, idx int) (float64, bool) {
	// 周期与 Bundle 一致时直接复用预计算序列
	if s.period == bundle.Params.RSIPeriod && idx < len(bundle.RSI) {
		return bundle.RSI[idx].Float()
	}
	return indicator.RSI(bundle.Closes, s.period, idx).Float()
}

// MACDMomentum MACD 柱状图零轴穿越策略。
type MACDMomentum struct {
	fast, slow, signal int
	name               string
}

func NewMACDMomentum(fast, slow, signalPeriod int) (*MACDMomentum, error) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 {
		return nil, fmt.Errorf("MACD 周期必须为正: %d/%d/%d", fast, slow, signalPeriod)
	}
	if fast >= slow {
		return nil, fmt.Errorf("MACD 快线周期必须小于慢线: %d >= %d", fast, slow)
	}
	return &MACDMomentum{
		fast: fast, slow: slow, signal: signalPeriod,
		name: fmt.Sprintf("macd_%d_%d_%d", fast, slow, signalPeriod),
	}, nil
}

func (s *MACDMomentum) Name() string { return s.name }

func (s *MACDMomentum) Warmup() int { return s.slow + s.signal }

func (s *MACDMomentum) Evaluate(_ market.Series, bundle *indicator.Bundle, idx int) Signal {
	if idx < s.Warmup() {
		return Hold
	}
	macd := &bundle.MACD
	if s.fast != bundle.Params.MACDFast || s.slow != bundle.Params.MACDSlow || s.signal != bundle.Params.MACDSignal {
		m := indicator.MACDSeries(bundle.Closes, s.fast, s.slow, s.signal)
		macd = &m
	}
	if idx >= len(macd.Histogram) {
		return Hold
	}
	cur, ok1 := macd.Histogram[idx].Float()
	prev, ok2 := macd.Histogram[idx-1].Float()
	if !ok1 || !ok2 {
		return Hold
	}
	if prev <= 0 && cur > 0 {
		return Buy
	}
	if prev >= 0 && cur < 0 {
		return Sell
	}
	return Hold
}

// BollingerReversion 布林带均值回归策略：跌破下轨买入，突破上轨卖出。
type BollingerReversion struct {
	period int
	mult   float64
	name   string
}

func NewBollingerReversion(period int, mult float64) (*BollingerReversion, error) {
	if period <= 0 {
		return nil, fmt.Errorf("布林带周期必须为正: %d", period)
	}
	if mult <= 0 {
		return nil, fmt.Errorf("布林带倍数必须为正: %.2f", mult)
	}
	return &BollingerReversion{period: period, mult: mult, name: fmt.Sprintf("bb_%d_%.1f", period, mult)}, nil
}

func (s *BollingerReversion) Name() string { return s.name }

func (s *BollingerReversion) Warmup() int { return s.period }

func (s *BollingerReversion) Evaluate(_ market.Series, bundle *indicator.Bundle, idx int) Signal {
	if idx < s.Warmup() {
		return Hold
	}
	bb := &bundle.BB
	if s.period != bundle.Params.BBPeriod || s.mult != bundle.Params.BBMult {
		b := indicator.BollingerSeries(bundle.Closes, s.period, s.mult)
		bb = &b
	}
	if idx >= len(bb.Upper) {
		return Hold
	}
	upper, ok1 := bb.Upper[idx].Float()
	lower, ok2 := bb.Lower[idx].Float()
	if !ok1 || !ok2 {
		return Hold
	}
	// 带宽为零（横盘）时不产生信号
	if upper == lower {
		return Hold
	}
	close := bundle.Closes[idx]
	if close <= lower {
		return Buy
	}
	if close >= upper {
		return Sell
	}
	return Hold
}

// DefaultRegistry 返回内置策略的标准组合，任一构造失败直接返回错误。
func DefaultRegistry() (*Registry, error) {
	ma, err := NewMACross(50, 200)
	if err != nil {
		return nil, err
	}
	rsi, err := NewRSIReversion(14, 30, 70)
	if err != nil {
		return nil, err
	}
	macd, err := NewMACDMomentum(12, 26, 9)
	if err != nil {
		return nil, err
	}
	bb, err := NewBollingerReversion(20, 2)
	if err != nil {
		return nil, err
	}
	return NewRegistry(ma, rsi, macd, bb)
}
