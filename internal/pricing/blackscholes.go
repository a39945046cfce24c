package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// OptionType 期权类型。
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Greeks 是完整的希腊字母值对象，零值即全零，不允许部分填充。
type Greeks struct {
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Theta             float64 `json:"theta"`
	Vega              float64 `json:"vega"`
	Rho               float64 `json:"rho"`
	ImpliedVolatility float64 `json:"implied_volatility"`
}

// Intrinsic 返回期权的内在价值。
func Intrinsic(typ OptionType, spot, strike float64) float64 {
	if typ == Put {
		return math.Max(strike-spot, 0)
	}
	return math.Max(spot-strike, 0)
}

// IntrinsicDecimal 以 decimal 计算内在价值，供结算路径使用。
func IntrinsicDecimal(typ OptionType, spot, strike decimal.Decimal) decimal.Decimal {
	var v decimal.Decimal
	if typ == Put {
		v = strike.Sub(spot)
	} else {
		v = spot.Sub(strike)
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}

// TheoreticalPrice 用 Black-Scholes 闭式解计算理论价。
// 到期时间或波动率非正时直接退化为内在价值，不允许数值爆炸。
func TheoreticalPrice(typ OptionType, spot, strike, timeYears, rate, sigma float64) float64 {
	if spot <= 0 || strike <= 0 {
		return Intrinsic(typ, spot, strike)
	}
	if timeYears <= 0 || sigma <= 0 {
		return Intrinsic(typ, spot, strike)
	}
	d1, d2 := dTerms(spot, strike, timeYears, rate, sigma)
	discount := math.Exp(-rate * timeYears)
	if typ == Put {
		return strike*discount*normCDF(-d2) - spot*normCDF(-d1)
	}
	return spot*normCDF(d1) - strike*discount*normCDF(d2)
}

// Premium 返回四舍五入到分的权利金。
func Premium(typ OptionType, spot, strike, timeYears, rate, sigma float64) decimal.Decimal {
	return decimal.NewFromFloat(TheoreticalPrice(typ, spot, strike, timeYears, rate, sigma)).Round(2)
}

// ComputeGreeks 从同一组 d1/d2 推导希腊字母。
// Theta 折算为每日值，Vega/Rho 按每个百分点计。
func ComputeGreeks(typ OptionType, spot, strike, timeYears, rate, sigma float64) Greeks {
	if spot <= 0 || strike <= 0 || timeYears <= 0 || sigma <= 0 {
		return Greeks{ImpliedVolatility: math.Max(sigma, 0)}
	}
	d1, d2 := dTerms(spot, strike, timeYears, rate, sigma)
	pdf := normPDF(d1)
	discount := math.Exp(-rate * timeYears)
	sqrtT := math.Sqrt(timeYears)

	g := Greeks{
		Gamma:             pdf / (spot * sigma * sqrtT),
		Vega:              spot * pdf * sqrtT / 100,
		ImpliedVolatility: sigma,
	}
	if typ == Put {
		g.Delta = normCDF(d1) - 1
		g.Theta = (-(spot*pdf*sigma)/(2*sqrtT) + rate*strike*discount*normCDF(-d2)) / 365
		g.Rho = -strike * timeYears * discount * normCDF(-d2) / 100
	} else {
		g.Delta = normCDF(d1)
		g.Theta = (-(spot*pdf*sigma)/(2*sqrtT) - rate*strike*discount*normCDF(d2)) / 365
		g.Rho = strike * timeYears * discount * normCDF(d2) / 100
	}
	return g
}

func dTerms(spot, strike, timeYears, rate, sigma float64) (float64, float64) {
	volT := sigma * math.Sqrt(timeYears)
	d1 := (math.Log(spot/strike) + (rate+sigma*sigma/2)*timeYears) / volT
	return d1, d1 - volT
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
