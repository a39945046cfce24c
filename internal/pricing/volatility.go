package pricing

import "math"

const (
	// DefaultVolatility 在可用数据不足时兜底（20% 年化）。
	DefaultVolatility = 0.20

	// DefaultVolLookback 历史波动率默认回看窗口。
	DefaultVolLookback = 20

	tradingDaysPerYear = 252
)

// HistoricalVolatility 用对数收益率的标准差估算年化波动率。
// 可用价格点不足 2 个时返回固定默认值而不是报错。
func HistoricalVolatility(closes []float64, lookback int) float64 {
	if lookback <= 0 {
		lookback = DefaultVolLookback
	}
	start := len(closes) - lookback - 1
	if start < 0 {
		start = 0
	}
	window := closes[start:]

	var returns []float64
	for i := 1; i < len(window); i++ {
		if window[i-1] <= 0 || window[i] <= 0 {
			continue
		}
		returns = append(returns, math.Log(window[i]/window[i-1]))
	}
	if len(returns) < 2 {
		return DefaultVolatility
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	return math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
}
