package indicator

import "math"

// ADXResult 保存 ADX 与方向指标序列。
type ADXResult struct {
	ADX     []Value
	PlusDI  []Value
	MinusDI []Value
}

// ADXSeries 按 Wilder 的 TR/DM 平滑法计算 ADX、+DI、-DI。
// +DI/-DI 自 idx=period 起有值，ADX 自 idx=2*period-1 起有值。
func ADXSeries(highs, lows, closes []float64, period int) ADXResult {
	n := len(closes)
	res := ADXResult{
		ADX:     undefinedSeries(n),
		PlusDI:  undefinedSeries(n),
		MinusDI: undefinedSeries(n),
	}
	if period <= 0 || n <= period {
		return res
	}
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		tr[i] = trueRange(highs, lows, closes, i)
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}
	dx := make([]float64, n)
	dxDefined := make([]bool, n)
	record := func(i int) {
		if smTR == 0 {
			return
		}
		pDI := 100 * smPlus / smTR
		mDI := 100 * smMinus / smTR
		res.PlusDI[i] = Defined(pDI)
		res.MinusDI[i] = Defined(mDI)
		if pDI+mDI == 0 {
			return
		}
		dx[i] = 100 * math.Abs(pDI-mDI) / (pDI + mDI)
		dxDefined[i] = true
	}
	record(period)
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		record(i)
	}
	// first ADX is the mean of the first period DX values, then Wilder smoothing
	adxStart := 2*period - 1
	if adxStart >= n {
		return res
	}
	sum := 0.0
	count := 0
	for i := period; i <= adxStart; i++ {
		if dxDefined[i] {
			sum += dx[i]
			count++
		}
	}
	if count == 0 {
		return res
	}
	adx := sum / float64(count)
	res.ADX[adxStart] = Defined(adx)
	for i := adxStart + 1; i < n; i++ {
		if !dxDefined[i] {
			res.ADX[i] = Defined(adx)
			continue
		}
		adx = (adx*float64(period-1) + dx[i]) / float64(period)
		res.ADX[i] = Defined(adx)
	}
	return res
}

// SARResult 保存抛物线转向序列与多空状态。
type SARResult struct {
	SAR     []Value
	Bullish []bool
}

// SARSeries 实现标准的加速因子翻转算法；翻转通过比较当前与前一根的
// 多空状态识别。
func SARSeries(highs, lows []float64, step, maxAF float64) SARResult {
	n := len(highs)
	res := SARResult{SAR: undefinedSeries(n), Bullish: make([]bool, n)}
	if n < 2 || step <= 0 || maxAF <= 0 {
		return res
	}
	bullish := highs[1]+lows[1] >= highs[0]+lows[0]
	af := step
	var sar, ep float64
	if bullish {
		sar = lows[0]
		ep = highs[1]
	} else {
		sar = highs[0]
		ep = lows[1]
	}
	res.SAR[1] = Defined(sar)
	res.Bullish[1] = bullish
	for i := 2; i < n; i++ {
		sar = sar + af*(ep-sar)
		if bullish {
			// SAR never rises above the prior two lows
			sar = math.Min(sar, lows[i-1])
			if i >= 2 {
				sar = math.Min(sar, lows[i-2])
			}
			if lows[i] < sar {
				bullish = false
				sar = ep
				ep = lows[i]
				af = step
			} else if highs[i] > ep {
				ep = highs[i]
				af = math.Min(af+step, maxAF)
			}
		} else {
			sar = math.Max(sar, highs[i-1])
			if i >= 2 {
				sar = math.Max(sar, highs[i-2])
			}
			if highs[i] > sar {
				bullish = true
				sar = ep
				ep = highs[i]
				af = step
			} else if lows[i] < ep {
				ep = lows[i]
				af = math.Min(af+step, maxAF)
			}
		}
		res.SAR[i] = Defined(sar)
		res.Bullish[i] = bullish
	}
	return res
}

// Ichimoku 保存某一下标处的一目均衡表各条线。
type Ichimoku struct {
	Tenkan     Value
	Kijun      Value
	SenkouA    Value
	SenkouB    Value
	AboveCloud bool
}

const (
	ichimokuTenkan = 9
	ichimokuKijun  = 26
	ichimokuSenkou = 52
	ichimokuShift  = 26
)

func midpoint(highs, lows []float64, period, idx int) Value {
	if idx < period-1 || idx >= len(highs) {
		return Undefined()
	}
	hh, ll := highestLowest(highs, lows, period, idx)
	return Defined((hh + ll) / 2)
}

// IchimokuAt 计算 idx 处的一目均衡表。云层边界取 26 根之前计算、前移
// 至当前位置的 Senkou Span A/B；AboveCloud 仅在两条跨度都有值时有意义。
func IchimokuAt(highs, lows, closes []float64, idx int) Ichimoku {
	ich := Ichimoku{
		Tenkan: midpoint(highs, lows, ichimokuTenkan, idx),
		Kijun:  midpoint(highs, lows, ichimokuKijun, idx),
	}
	base := idx - ichimokuShift
	if base >= 0 {
		t := midpoint(highs, lows, ichimokuTenkan, base)
		k := midpoint(highs, lows, ichimokuKijun, base)
		if tv, okT := t.Float(); okT {
			if kv, okK := k.Float(); okK {
				ich.SenkouA = Defined((tv + kv) / 2)
			}
		}
		ich.SenkouB = midpoint(highs, lows, ichimokuSenkou, base)
	}
	a, okA := ich.SenkouA.Float()
	b, okB := ich.SenkouB.Float()
	if okA && okB && idx < len(closes) {
		ich.AboveCloud = closes[idx] > math.Max(a, b)
	}
	return ich
}
