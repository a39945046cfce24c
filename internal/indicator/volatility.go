package indicator

import "math"

// BollingerResult 保存布林带四条序列。
type BollingerResult struct {
	Upper     []Value
	Middle    []Value
	Lower     []Value
	Bandwidth []Value
}

// BollingerSeries 计算布林带：SMA(period) ± multiplier × 总体标准差，
// 带宽 = (上轨-下轨)/中轨。
func BollingerSeries(closes []float64, period int, multiplier float64) BollingerResult {
	n := len(closes)
	res := BollingerResult{
		Upper:     undefinedSeries(n),
		Middle:    undefinedSeries(n),
		Lower:     undefinedSeries(n),
		Bandwidth: undefinedSeries(n),
	}
	if period <= 0 || multiplier <= 0 || n < period {
		return res
	}
	for i := period - 1; i < n; i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += closes[j]
		}
		mean /= float64(period)
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mean
			variance += d * d
		}
		// population std dev over the window
		std := math.Sqrt(variance / float64(period))
		upper := mean + multiplier*std
		lower := mean - multiplier*std
		res.Middle[i] = Defined(mean)
		res.Upper[i] = Defined(upper)
		res.Lower[i] = Defined(lower)
		if mean != 0 {
			res.Bandwidth[i] = Defined((upper - lower) / mean)
		}
	}
	return res
}

// trueRange 返回 idx 处的真实波幅；首根退化为 high-low。
func trueRange(highs, lows, closes []float64, idx int) float64 {
	if idx == 0 {
		return highs[0] - lows[0]
	}
	hl := highs[idx] - lows[idx]
	hc := math.Abs(highs[idx] - closes[idx-1])
	lc := math.Abs(lows[idx] - closes[idx-1])
	return math.Max(hl, math.Max(hc, lc))
}

// ATRSeries 计算 Wilder 平滑的平均真实波幅：首个值取前 period 个 TR
// 的均值，之后 ATR = (prev*(period-1)+TR)/period。
func ATRSeries(highs, lows, closes []float64, period int) []Value {
	n := len(closes)
	out := undefinedSeries(n)
	if period <= 0 || n <= period {
		return out
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += trueRange(highs, lows, closes, i)
	}
	atr := sum / float64(period)
	out[period] = Defined(atr)
	for i := period + 1; i < n; i++ {
		atr = (atr*float64(period-1) + trueRange(highs, lows, closes, i)) / float64(period)
		out[i] = Defined(atr)
	}
	return out
}

// ATR 返回 idx 处的 ATR。
func ATR(highs, lows, closes []float64, period, idx int) Value {
	if idx < 0 || idx >= len(closes) {
		return Undefined()
	}
	return ATRSeries(highs[:idx+1], lows[:idx+1], closes[:idx+1], period)[idx]
}

// StdDev 计算窗口内总体标准差，供外部直接取用。
func StdDev(values []float64, period, idx int) Value {
	if period <= 1 || idx < period-1 || idx >= len(values) {
		return Undefined()
	}
	mean := 0.0
	for j := idx - period + 1; j <= idx; j++ {
		mean += values[j]
	}
	mean /= float64(period)
	variance := 0.0
	for j := idx - period + 1; j <= idx; j++ {
		d := values[j] - mean
		variance += d * d
	}
	return Defined(math.Sqrt(variance / float64(period)))
}
