package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout 统一使用可按字符串排序的 ISO 日期。
const DateLayout = "2006-01-02"

// Bar 表示单日 OHLCV 记录，价格一律使用 decimal 保存。
type Bar struct {
	Date     string          `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adj_close"`
	Volume   int64           `json:"volume"`
}

// Series 是按日期严格升序排列的 Bar 序列，所有引擎按整数下标访问。
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// NewSeries 构造并校验序列：日期严格升序、无重复、价格与成交量非负。
func NewSeries(symbol string, bars []Bar) (Series, error) {
	for i, b := range bars {
		if _, err := time.Parse(DateLayout, b.Date); err != nil {
			return Series{}, fmt.Errorf("bar %d 日期非法 %q: %w", i, b.Date, err)
		}
		if b.Open.IsNegative() || b.High.IsNegative() || b.Low.IsNegative() || b.Close.IsNegative() {
			return Series{}, fmt.Errorf("bar %d (%s) 价格为负", i, b.Date)
		}
		if b.Volume < 0 {
			return Series{}, fmt.Errorf("bar %d (%s) 成交量为负", i, b.Date)
		}
		if i > 0 && bars[i-1].Date >= b.Date {
			return Series{}, fmt.Errorf("日期必须严格升序: %s >= %s", bars[i-1].Date, b.Date)
		}
	}
	return Series{Symbol: symbol, Bars: bars}, nil
}

// Len 返回 bar 数量。
func (s Series) Len() int { return len(s.Bars) }

// IsEmpty 判断序列是否为空。
func (s Series) IsEmpty() bool { return len(s.Bars) == 0 }

// Closes 提取收盘价为 float64 序列，供指标层使用。
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i], _ = b.Close.Float64()
	}
	return out
}

// Highs 提取最高价序列。
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i], _ = b.High.Float64()
	}
	return out
}

// Lows 提取最低价序列。
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i], _ = b.Low.Float64()
	}
	return out
}

// Volumes 提取成交量序列。
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// AddDays 在 ISO 日期上加 n 个自然日，用于推算期权到期日。
func AddDays(date string, n int) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("日期非法 %q: %w", date, err)
	}
	return t.AddDate(0, 0, n).Format(DateLayout), nil
}

// DaysBetween 返回 from 到 to 的自然日差，to 早于 from 时为负。
func DaysBetween(from, to string) (int, error) {
	a, err := time.Parse(DateLayout, from)
	if err != nil {
		return 0, fmt.Errorf("日期非法 %q: %w", from, err)
	}
	b, err := time.Parse(DateLayout, to)
	if err != nil {
		return 0, fmt.Errorf("日期非法 %q: %w", to, err)
	}
	return int(b.Sub(a).Hours() / 24), nil
}
