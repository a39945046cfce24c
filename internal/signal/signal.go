package signal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"optlab/internal/indicator"
	"optlab/internal/logger"
	"optlab/internal/market"
	"optlab/internal/pricing"
)

// Direction 综合信号方向。
type Direction string

const (
	StrongBuy  Direction = "STRONG_BUY"
	Buy        Direction = "BUY"
	Neutral    Direction = "NEUTRAL"
	Sell       Direction = "SELL"
	StrongSell Direction = "STRONG_SELL"
)

// MinBars 出信号前要求的最少历史根数，不足时固定给中性结果。
const MinBars = 200

const (
	strongThreshold   = 0.75
	moderateThreshold = 0.55

	// OBV 趋势判定固定对比 5 根之前的值
	obvLookback = 5

	fibLookback    = 60
	fibTolerance   = 0.05
	defaultDTE     = 30
	highVolDTE     = 45
	atrHighVolPct  = 0.03
	otmModeratePct = 0.05 // 约 35-delta 的价外幅度近似
)

// Recommendation 单侧期权建议。
type Recommendation struct {
	Side      string             `json:"side"` // BUY | SELL
	Type      pricing.OptionType `json:"type"`
	Strike    decimal.Decimal    `json:"strike"`
	DTE       int                `json:"dte"`
	Rationale string             `json:"rationale"`
}

// Alert 信号生成器的完整产出，只读。
type Alert struct {
	Symbol          string           `json:"symbol"`
	Date            string           `json:"date"`
	Direction       Direction        `json:"direction"`
	ConfluencePct   decimal.Decimal  `json:"confluence_pct"`
	Note            string           `json:"note,omitempty"`
	BullishSignals  []string         `json:"bullish_signals"`
	BearishSignals  []string         `json:"bearish_signals"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Generator 多维共振信号生成器。
type Generator struct {
	params indicator.BundleParams
}

// NewGenerator 用给定指标参数构造生成器。
func NewGenerator(params indicator.BundleParams) *Generator {
	return &Generator{params: params}
}

// Generate 在序列最后一根出信号。
func (g *Generator) Generate(series market.Series) *Alert {
	return g.GenerateAt(series, len(series.Bars)-1)
}

// GenerateAt 在指定下标出信号。历史不足 200 根时返回固定中性结果，从不报错。
func (g *Generator) GenerateAt(series market.Series, idx int) *Alert {
	alert := &Alert{
		Symbol:        series.Symbol,
		Direction:     Neutral,
		ConfluencePct: decimal.Zero,
	}
	if idx < 0 || idx >= len(series.Bars) {
		alert.Note = "insufficient data"
		return alert
	}
	alert.Date = series.Bars[idx].Date
	if idx < MinBars {
		alert.Note = "insufficient data"
		logger.Debugf("历史不足出中性信号 symbol=%s idx=%d", series.Symbol, idx)
		return alert
	}

	bundle := indicator.ComputeBundle(series, g.params)
	bullish, bearish := g.score(bundle, idx)
	alert.BullishSignals = bullish
	alert.BearishSignals = bearish

	total := len(bullish) + len(bearish)
	if total < 1 {
		total = 1
	}
	bullPct := float64(len(bullish)) / float64(total)
	bearPct := float64(len(bearish)) / float64(total)

	switch {
	case bullPct >= strongThreshold:
		alert.Direction = StrongBuy
		alert.ConfluencePct = pctDecimal(bullPct)
	case bearPct >= strongThreshold:
		alert.Direction = StrongSell
		alert.ConfluencePct = pctDecimal(bearPct)
	case bullPct >= moderateThreshold:
		alert.Direction = Buy
		alert.ConfluencePct = pctDecimal(bullPct)
	case bearPct >= moderateThreshold:
		alert.Direction = Sell
		alert.ConfluencePct = pctDecimal(bearPct)
	default:
		alert.Direction = Neutral
		if bullPct >= bearPct {
			alert.ConfluencePct = pctDecimal(bullPct)
		} else {
			alert.ConfluencePct = pctDecimal(bearPct)
		}
	}

	alert.Recommendations = g.recommend(series, bundle, idx, alert.Direction)
	return alert
}

func pctDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v * 100).Round(2)
}

// score 独立评估趋势、动量、成交量、波动率四个维度，
// 每个命中的条件都以可读的理由挂到多头或空头列表。
func (g *Generator) score(b *indicator.Bundle, idx int) (bullish, bearish []string) {
	close := b.Closes[idx]

	// 趋势
	if emaF, ok1 := b.EMAFast[idx].Float(); ok1 {
		if emaS, ok2 := b.EMASlow[idx].Float(); ok2 {
			if emaF > emaS {
				bullish = append(bullish, fmt.Sprintf("EMA(%d) > EMA(%d)", g.params.EMAFast, g.params.EMASlow))
			} else if emaF < emaS {
				bearish = append(bearish, fmt.Sprintf("EMA(%d) < EMA(%d)", g.params.EMAFast, g.params.EMASlow))
			}
		}
	}
	if smaF, ok1 := b.SMAFast[idx].Float(); ok1 {
		if smaS, ok2 := b.SMASlow[idx].Float(); ok2 {
			if smaF > smaS {
				bullish = append(bullish, "Golden Cross (SMA50 > SMA200)")
			} else if smaF < smaS {
				bearish = append(bearish, "Death Cross (SMA50 < SMA200)")
			}
		}
	}
	ichi := indicator.IchimokuAt(b.Highs, b.Lows, b.Closes, idx)
	if a, okA := ichi.SenkouA.Float(); okA {
		if sb, okB := ichi.SenkouB.Float(); okB {
			lowerCloud := a
			if sb < a {
				lowerCloud = sb
			}
			if ichi.AboveCloud {
				bullish = append(bullish, "Price above Ichimoku cloud")
			} else if close < lowerCloud {
				bearish = append(bearish, "Price below Ichimoku cloud")
			}
		}
	}
	if idx < len(b.SAR.Bullish) {
		if b.SAR.Bullish[idx] {
			bullish = append(bullish, "Parabolic SAR bullish")
		} else {
			bearish = append(bearish, "Parabolic SAR bearish")
		}
	}
	if adx, ok := b.ADX.ADX[idx].Float(); ok && adx > 25 {
		plus, ok1 := b.ADX.PlusDI[idx].Float()
		minus, ok2 := b.ADX.MinusDI[idx].Float()
		if ok1 && ok2 {
			if plus > minus {
				bullish = append(bullish, "Strong uptrend (ADX > 25, +DI > -DI)")
			} else if minus > plus {
				bearish = append(bearish, "Strong downtrend (ADX > 25, -DI > +DI)")
			}
		}
	}

	// 动量
	if rsi, ok := b.RSI[idx].Float(); ok {
		prev, okPrev := b.RSI[idx-1].Float()
		switch {
		case okPrev && prev < 30 && rsi >= 30:
			bullish = append(bullish, "RSI recovering from oversold")
		case okPrev && prev > 70 && rsi <= 70:
			bearish = append(bearish, "RSI falling from overbought")
		case rsi > 50 && rsi <= 70:
			bullish = append(bullish, "RSI bullish (50-70)")
		case rsi < 50 && rsi >= 30:
			bearish = append(bearish, "RSI bearish (30-50)")
		case rsi > 70:
			bearish = append(bearish, "RSI overbought (>70)")
		case rsi < 30:
			bullish = append(bullish, "RSI oversold (<30)")
		}
	}
	if hist, ok := b.MACD.Histogram[idx].Float(); ok {
		if prev, okPrev := b.MACD.Histogram[idx-1].Float(); okPrev {
			if hist > 0 && hist > prev {
				bullish = append(bullish, "MACD histogram positive and rising")
			} else if hist < 0 && hist < prev {
				bearish = append(bearish, "MACD histogram negative and falling")
			}
		}
	}
	if k, ok := b.Stoch.K[idx].Float(); ok {
		if k < 20 {
			bullish = append(bullish, "Stochastic oversold (<20)")
		} else if k > 80 {
			bearish = append(bearish, "Stochastic overbought (>80)")
		}
	}
	if roc, ok := b.ROC[idx].Float(); ok {
		if roc > 0 {
			bullish = append(bullish, "Positive rate of change")
		} else if roc < 0 {
			bearish = append(bearish, "Negative rate of change")
		}
	}

	// 成交量（OBV 趋势固定对比 5 根前）
	if obv, ok := b.OBV[idx].Float(); ok && idx >= obvLookback {
		if prev, okPrev := b.OBV[idx-obvLookback].Float(); okPrev {
			if obv > prev {
				bullish = append(bullish, "OBV rising")
			} else if obv < prev {
				bearish = append(bearish, "OBV falling")
			}
		}
	}
	if mfi, ok := b.MFI[idx].Float(); ok {
		if mfi < 20 {
			bullish = append(bullish, "MFI oversold (<20)")
		} else if mfi > 80 {
			bearish = append(bearish, "MFI overbought (>80)")
		}
	}
	if vwap, ok := b.VWAP[idx].Float(); ok {
		if close > vwap {
			bullish = append(bullish, "Price above VWAP")
		} else if close < vwap {
			bearish = append(bearish, "Price below VWAP")
		}
	}

	// 波动率
	if lower, ok := b.BB.Lower[idx].Float(); ok {
		upper, _ := b.BB.Upper[idx].Float()
		if upper > lower {
			if close <= lower {
				bullish = append(bullish, "Price at/below lower Bollinger Band")
			} else if close >= upper {
				bearish = append(bearish, "Price at/above upper Bollinger Band")
			}
		}
	}
	return bullish, bearish
}

// recommend 对买卖双边各给一条期权建议。中性方向不给建议。
func (g *Generator) recommend(series market.Series, b *indicator.Bundle, idx int, dir Direction) []Recommendation {
	if dir == Neutral {
		return nil
	}
	price := series.Bars[idx].Close
	strong := dir == StrongBuy || dir == StrongSell
	dte := g.pickDTE(b, idx, strong)

	bullSide := dir == StrongBuy || dir == Buy
	var recs []Recommendation
	if bullSide {
		callStrike := g.pickStrike(b, idx, price, strong, true)
		recs = append(recs, Recommendation{
			Side: "BUY", Type: pricing.Call, Strike: callStrike, DTE: dte,
			Rationale: "Directional call on bullish confluence",
		})
		recs = append(recs, Recommendation{
			Side: "SELL", Type: pricing.Put, Strike: g.otmStrike(price, false), DTE: dte,
			Rationale: "Cash-secured put for income",
		})
	} else {
		putStrike := g.pickStrike(b, idx, price, strong, false)
		recs = append(recs, Recommendation{
			Side: "BUY", Type: pricing.Put, Strike: putStrike, DTE: dte,
			Rationale: "Directional put on bearish confluence",
		})
		recs = append(recs, Recommendation{
			Side: "SELL", Type: pricing.Call, Strike: g.otmStrike(price, true), DTE: dte,
			Rationale: "Covered call for income",
		})
	}
	return recs
}

// pickDTE 默认 30 天；高波动（年化 ATR 超过价格 3%）放宽到 45 天抵御时间损耗，
// 强信号始终用 30 天保持 gamma 弹性。
func (g *Generator) pickDTE(b *indicator.Bundle, idx int, strong bool) int {
	if strong {
		return defaultDTE
	}
	atr, ok := b.ATR[idx].Float()
	if !ok || b.Closes[idx] <= 0 {
		return defaultDTE
	}
	if atr/b.Closes[idx] > atrHighVolPct {
		return highVolDTE
	}
	return defaultDTE
}

// pickStrike 优先用距现价 5% 以内的斐波那契回撤位；
// 没有合适的回撤位时强信号用平值、弱信号用约 35-delta 的价外档。
func (g *Generator) pickStrike(b *indicator.Bundle, idx int, price decimal.Decimal, strong, bullish bool) decimal.Decimal {
	if fib, ok := g.fibStrike(b, idx, price); ok {
		return fib
	}
	if strong {
		return roundStrike(price)
	}
	return g.otmStrike(price, bullish)
}

func (g *Generator) fibStrike(b *indicator.Bundle, idx int, price decimal.Decimal) (decimal.Decimal, bool) {
	fib, ok := indicator.FibRetracement(b.Highs, b.Lows, fibLookback, idx)
	if !ok {
		return decimal.Decimal{}, false
	}
	p, _ := price.Float64()
	if p <= 0 {
		return decimal.Decimal{}, false
	}
	best := 0.0
	found := false
	for _, lvl := range fib.Levels() {
		diff := lvl - p
		if diff < 0 {
			diff = -diff
		}
		if diff/p <= fibTolerance {
			if !found || nearer(lvl, best, p) {
				best = lvl
				found = true
			}
		}
	}
	if !found {
		return decimal.Decimal{}, false
	}
	return roundStrike(decimal.NewFromFloat(best)), true
}

func nearer(a, cur, p float64) bool {
	da, dc := a-p, cur-p
	if da < 0 {
		da = -da
	}
	if dc < 0 {
		dc = -dc
	}
	return da < dc
}

// otmStrike 约 35-delta 的价外档：看涨上浮 5%，看跌下调 5%。
func (g *Generator) otmStrike(price decimal.Decimal, callSide bool) decimal.Decimal {
	adj := decimal.NewFromFloat(otmModeratePct)
	if !callSide {
		adj = adj.Neg()
	}
	return roundStrike(price.Mul(decimal.NewFromInt(1).Add(adj)))
}

var strikeStep = decimal.NewFromInt(5)

func roundStrike(price decimal.Decimal) decimal.Decimal {
	return price.Div(strikeStep).Round(0).Mul(strikeStep)
}
