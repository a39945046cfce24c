package indicator

// SMA 计算 idx 处向前 period 根的简单均值，历史不足返回未定义。
func SMA(values []float64, period, idx int) Value {
	if period <= 0 || idx < 0 || idx >= len(values) || idx < period-1 {
		return Undefined()
	}
	sum := 0.0
	for i := idx - period + 1; i <= idx; i++ {
		sum += values[i]
	}
	return Defined(sum / float64(period))
}

// SMASeries 返回与输入等长的 SMA 序列，前 period-1 个位置未定义。
func SMASeries(values []float64, period int) []Value {
	out := undefinedSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = Defined(sum / float64(period))
		}
	}
	return out
}

// EMASeries 计算指数均线，平滑系数 2/(period+1)，以首个 period 窗口的
// SMA 作为种子（与 talib 一致），之前的位置未定义。
func EMASeries(values []float64, period int) []Value {
	out := undefinedSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	ema := seed / float64(period)
	out[period-1] = Defined(ema)
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*k + ema
		out[i] = Defined(ema)
	}
	return out
}

// EMA 返回 idx 处的指数均线值。
func EMA(values []float64, period, idx int) Value {
	if idx < 0 || idx >= len(values) {
		return Undefined()
	}
	return EMASeries(values[:idx+1], period)[idx]
}

// emaOverValues 对可能含未定义前缀的序列做 EMA，用于 MACD 信号线。
func emaOverValues(values []Value, period int) []Value {
	out := undefinedSeries(len(values))
	if period <= 0 {
		return out
	}
	start := -1
	for i, v := range values {
		if v.IsDefined() {
			start = i
			break
		}
	}
	if start < 0 || len(values)-start < period {
		return out
	}
	raw := make([]float64, 0, len(values)-start)
	for _, v := range values[start:] {
		raw = append(raw, v.MustFloat())
	}
	inner := EMASeries(raw, period)
	for i, v := range inner {
		out[start+i] = v
	}
	return out
}
