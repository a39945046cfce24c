package indicator

import "optlab/internal/market"

// BundleParams 描述一次性预计算所用的指标参数。
type BundleParams struct {
	SMAFast    int
	SMASlow    int
	EMAFast    int
	EMASlow    int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	BBPeriod   int
	BBMult     float64
	ATRPeriod  int
	ADXPeriod  int
	StochK     int
	StochD     int
	MFIPeriod  int
	CCIPeriod  int
	ROCPeriod  int
	SARStep    float64
	SARMax     float64
}

// DefaultBundleParams 返回各指标的常用周期。
func DefaultBundleParams() BundleParams {
	return BundleParams{
		SMAFast:    50,
		SMASlow:    200,
		EMAFast:    12,
		EMASlow:    26,
		RSIPeriod:  14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		BBPeriod:   20,
		BBMult:     2,
		ATRPeriod:  14,
		ADXPeriod:  14,
		StochK:     14,
		StochD:     3,
		MFIPeriod:  14,
		CCIPeriod:  20,
		ROCPeriod:  10,
		SARStep:    0.02,
		SARMax:     0.2,
	}
}

// Bundle 是一次性算好的全量指标序列，所有数组与价格序列等长。
// 各策略与信号生成器共享同一个 Bundle，避免重复计算。
type Bundle struct {
	Params BundleParams

	// 原始序列缓存，供需要自定义周期的策略直接取用
	Closes  []float64
	Highs   []float64
	Lows    []float64
	Volumes []float64

	SMAFast []Value
	SMASlow []Value
	EMAFast []Value
	EMASlow []Value
	RSI     []Value
	MACD    MACDResult
	BB      BollingerResult
	ATR     []Value
	ADX     ADXResult
	Stoch   StochasticResult
	OBV     []Value
	VWAP    []Value
	MFI     []Value
	CCI     []Value
	ROC     []Value
	SAR     SARResult
	WillR   []Value
}

// ComputeBundle 从价格序列一次性展开所有指标。
func ComputeBundle(series market.Series, params BundleParams) *Bundle {
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	return &Bundle{
		Params:  params,
		Closes:  closes,
		Highs:   highs,
		Lows:    lows,
		Volumes: volumes,
		SMAFast: SMASeries(closes, params.SMAFast),
		SMASlow: SMASeries(closes, params.SMASlow),
		EMAFast: EMASeries(closes, params.EMAFast),
		EMASlow: EMASeries(closes, params.EMASlow),
		RSI:     RSISeries(closes, params.RSIPeriod),
		MACD:    MACDSeries(closes, params.MACDFast, params.MACDSlow, params.MACDSignal),
		BB:      BollingerSeries(closes, params.BBPeriod, params.BBMult),
		ATR:     ATRSeries(highs, lows, closes, params.ATRPeriod),
		ADX:     ADXSeries(highs, lows, closes, params.ADXPeriod),
		Stoch:   StochasticSeries(highs, lows, closes, params.StochK, params.StochD),
		OBV:     OBVSeries(closes, volumes),
		VWAP:    VWAPSeries(highs, lows, closes, volumes),
		MFI:     MFISeries(highs, lows, closes, volumes, params.MFIPeriod),
		CCI:     CCISeries(highs, lows, closes, params.CCIPeriod),
		ROC:     ROCSeries(closes, params.ROCPeriod),
		SAR:     SARSeries(highs, lows, params.SARStep, params.SARMax),
		WillR:   WilliamsRSeries(highs, lows, closes, params.RSIPeriod),
	}
}
