package indicator

import "math"

// RSISeries 按 Wilder 的简单滚动均值计算 RSI（非指数平滑）：
// 每个位置取最近 period 个涨跌幅的算术平均，平均亏损为 0 时 RSI=100。
func RSISeries(closes []float64, period int) []Value {
	out := undefinedSeries(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}
	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			change := closes[j] - closes[j-1]
			if change > 0 {
				gain += change
			} else {
				loss -= change
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			// no movement at all is neutral, otherwise pure gains pin RSI at 100
			if avgGain == 0 {
				out[i] = Defined(50)
			} else {
				out[i] = Defined(100)
			}
			continue
		}
		rs := avgGain / avgLoss
		out[i] = Defined(100 - 100/(1+rs))
	}
	return out
}

// RSI 返回 idx 处的 RSI。
func RSI(closes []float64, period, idx int) Value {
	if idx < 0 || idx >= len(closes) {
		return Undefined()
	}
	return RSISeries(closes[:idx+1], period)[idx]
}

// MACDResult 保存 MACD 三元组序列。
type MACDResult struct {
	Line      []Value
	Signal    []Value
	Histogram []Value
}

// MACDSeries 计算 MACD = EMA(fast) - EMA(slow)，信号线为 MACD 的
// EMA(signal)，柱体 = MACD - 信号线。
func MACDSeries(closes []float64, fast, slow, signal int) MACDResult {
	n := len(closes)
	res := MACDResult{
		Line:      undefinedSeries(n),
		Signal:    undefinedSeries(n),
		Histogram: undefinedSeries(n),
	}
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return res
	}
	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)
	for i := 0; i < n; i++ {
		f, okF := emaFast[i].Float()
		s, okS := emaSlow[i].Float()
		if okF && okS {
			res.Line[i] = Defined(f - s)
		}
	}
	res.Signal = emaOverValues(res.Line, signal)
	for i := 0; i < n; i++ {
		m, okM := res.Line[i].Float()
		s, okS := res.Signal[i].Float()
		if okM && okS {
			res.Histogram[i] = Defined(m - s)
		}
	}
	return res
}

// ROC 计算 n 周期变化率（百分比），基期收盘为 0 时未定义。
func ROC(closes []float64, period, idx int) Value {
	if period <= 0 || idx < period || idx >= len(closes) {
		return Undefined()
	}
	base := closes[idx-period]
	if base == 0 {
		return Undefined()
	}
	return Defined((closes[idx] - base) / base * 100)
}

// ROCSeries 返回整条 ROC 序列。
func ROCSeries(closes []float64, period int) []Value {
	out := undefinedSeries(len(closes))
	for i := range closes {
		out[i] = ROC(closes, period, i)
	}
	return out
}

// StochasticResult 保存 %K/%D 序列。
type StochasticResult struct {
	K []Value
	D []Value
}

// StochasticSeries 计算随机指标：%K = (C-LL)/(HH-LL)*100，%D 为 %K
// 的 SMA(smoothing)。区间为零（完全横盘）时 %K 取中性值 50。
func StochasticSeries(highs, lows, closes []float64, period, smoothing int) StochasticResult {
	n := len(closes)
	res := StochasticResult{K: undefinedSeries(n), D: undefinedSeries(n)}
	if period <= 0 || smoothing <= 0 || n < period {
		return res
	}
	kRaw := make([]float64, 0, n)
	kStart := period - 1
	for i := kStart; i < n; i++ {
		hh, ll := highestLowest(highs, lows, period, i)
		var k float64
		if hh == ll {
			k = 50
		} else {
			k = (closes[i] - ll) / (hh - ll) * 100
		}
		k = math.Max(0, math.Min(100, k))
		res.K[i] = Defined(k)
		kRaw = append(kRaw, k)
	}
	dInner := SMASeries(kRaw, smoothing)
	for i, v := range dInner {
		res.D[kStart+i] = v
	}
	return res
}

// WilliamsR 计算威廉指标：-100*(HH-C)/(HH-LL)，取值 [-100, 0]。
func WilliamsR(highs, lows, closes []float64, period, idx int) Value {
	if period <= 0 || idx < period-1 || idx >= len(closes) {
		return Undefined()
	}
	hh, ll := highestLowest(highs, lows, period, idx)
	if hh == ll {
		return Defined(-50)
	}
	v := -100 * (hh - closes[idx]) / (hh - ll)
	return Defined(math.Max(-100, math.Min(0, v)))
}

// WilliamsRSeries 返回整条威廉指标序列。
func WilliamsRSeries(highs, lows, closes []float64, period int) []Value {
	out := undefinedSeries(len(closes))
	for i := range closes {
		out[i] = WilliamsR(highs, lows, closes, period, i)
	}
	return out
}

// CCI 计算顺势指标：(TP - SMA(TP)) / (0.015 * 平均绝对偏差)。
func CCI(highs, lows, closes []float64, period, idx int) Value {
	if period <= 0 || idx < period-1 || idx >= len(closes) {
		return Undefined()
	}
	tps := make([]float64, period)
	for i := 0; i < period; i++ {
		j := idx - period + 1 + i
		tps[i] = (highs[j] + lows[j] + closes[j]) / 3
	}
	mean := 0.0
	for _, v := range tps {
		mean += v
	}
	mean /= float64(period)
	mad := 0.0
	for _, v := range tps {
		mad += math.Abs(v - mean)
	}
	mad /= float64(period)
	if mad == 0 {
		return Defined(0)
	}
	tp := (highs[idx] + lows[idx] + closes[idx]) / 3
	return Defined((tp - mean) / (0.015 * mad))
}

// CCISeries 返回整条 CCI 序列。
func CCISeries(highs, lows, closes []float64, period int) []Value {
	out := undefinedSeries(len(closes))
	for i := range closes {
		out[i] = CCI(highs, lows, closes, period, i)
	}
	return out
}

func highestLowest(highs, lows []float64, period, idx int) (float64, float64) {
	hh := highs[idx-period+1]
	ll := lows[idx-period+1]
	for i := idx - period + 2; i <= idx; i++ {
		if highs[i] > hh {
			hh = highs[i]
		}
		if lows[i] < ll {
			ll = lows[i]
		}
	}
	return hh, ll
}
