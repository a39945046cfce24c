package indicator

// OBVSeries 计算能量潮：首根 K 线以自身成交量为种子，之后收盘严格走高
// 加量、严格走低减量、持平不变。
func OBVSeries(closes, volumes []float64) []Value {
	out := undefinedSeries(len(closes))
	if len(closes) == 0 || len(volumes) != len(closes) {
		return out
	}
	obv := volumes[0]
	out[0] = Defined(obv)
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
		out[i] = Defined(obv)
	}
	return out
}

// VWAPSeries 计算累计成交量加权均价，典型价 = (H+L+C)/3。
// 累计成交量为 0 时该位置未定义。
func VWAPSeries(highs, lows, closes, volumes []float64) []Value {
	out := undefinedSeries(len(closes))
	var cumPV, cumVol float64
	for i := range closes {
		tp := (highs[i] + lows[i] + closes[i]) / 3
		cumPV += tp * volumes[i]
		cumVol += volumes[i]
		if cumVol == 0 {
			continue
		}
		out[i] = Defined(cumPV / cumVol)
	}
	return out
}

// MFI 计算资金流量指标：按典型价涨跌把资金流（TP*V）分正负两侧，
// 负向资金流为 0 时 MFI=100。
func MFI(highs, lows, closes, volumes []float64, period, idx int) Value {
	if period <= 0 || idx < period || idx >= len(closes) {
		return Undefined()
	}
	var positive, negative float64
	for j := idx - period + 1; j <= idx; j++ {
		tp := (highs[j] + lows[j] + closes[j]) / 3
		prevTP := (highs[j-1] + lows[j-1] + closes[j-1]) / 3
		flow := tp * volumes[j]
		switch {
		case tp > prevTP:
			positive += flow
		case tp < prevTP:
			negative += flow
		}
	}
	if negative == 0 {
		return Defined(100)
	}
	ratio := positive / negative
	return Defined(100 - 100/(1+ratio))
}

// MFISeries 返回整条 MFI 序列。
func MFISeries(highs, lows, closes, volumes []float64, period int) []Value {
	out := undefinedSeries(len(closes))
	for i := range closes {
		out[i] = MFI(highs, lows, closes, volumes, period, i)
	}
	return out
}
