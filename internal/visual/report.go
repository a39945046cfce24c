package visual

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"github.com/shopspring/decimal"

	"optlab/internal/engine"
	"optlab/internal/market"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEquity        = "#3b82f6"
	colorDrawdown      = "#fb7185"

	chartWidthPx    = 1600
	klineHeightPx   = 520
	equityHeightPx  = 320
	ddownHeightPx   = 240
)

// ReportInput 渲染一次回测报告所需的全部数据。
type ReportInput struct {
	Series      market.Series
	Strategy    string
	EquityCurve []decimal.Decimal
	Trades      []engine.Trade
	Metrics     engine.Metrics
}

// RenderHTML 把回测结果渲染成单页 HTML（K 线 + 资金曲线 + 回撤）。
func RenderHTML(w io.Writer, input ReportInput) error {
	if len(input.Series.Bars) == 0 {
		return fmt.Errorf("report requires bars")
	}
	if len(input.EquityCurve) != len(input.Series.Bars) {
		return fmt.Errorf("equity curve length %d != bars %d", len(input.EquityCurve), len(input.Series.Bars))
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)

	xAxis := buildXAxis(input.Series)
	page.AddCharts(
		buildKlineChart(input, xAxis),
		buildEquityChart(input, xAxis),
		buildDrawdownChart(input, xAxis),
	)
	return page.Render(w)
}

func buildXAxis(series market.Series) []string {
	x := make([]string, len(series.Bars))
	for i, b := range series.Bars {
		x[i] = b.Date
	}
	return x
}

func buildKlineChart(input ReportInput, xAxis []string) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s · %s", strings.ToUpper(input.Series.Symbol), input.Strategy),
			Subtitle:      metricsSubtitle(input.Metrics),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	data := make([]opts.KlineData, 0, len(input.Series.Bars))
	for _, b := range input.Series.Bars {
		data = append(data, opts.KlineData{Value: [4]float64{
			b.Open.InexactFloat64(),
			b.Close.InexactFloat64(),
			b.Low.InexactFloat64(),
			b.High.InexactFloat64(),
		}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)
	return kline
}

func buildEquityChart(input ReportInput, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Equity", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", equityLineData(input.EquityCurve),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	return line
}

func buildDrawdownChart(input ReportInput, xAxis []string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", ddownHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown %", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Drawdown", drawdownLineData(input.EquityCurve),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}))
	return line
}

func metricsSubtitle(m engine.Metrics) string {
	return fmt.Sprintf("Return %s%% | MaxDD %s%% | Sharpe %s | PF %s | Trades %d (%d wins)",
		m.TotalReturnPct.StringFixed(2),
		m.MaxDrawdownPct.StringFixed(2),
		m.SharpeRatio.StringFixed(2),
		m.ProfitFactor.StringFixed(2),
		m.TotalTrades,
		m.WinningTrades,
	)
}

func equityLineData(curve []decimal.Decimal) []opts.LineData {
	data := make([]opts.LineData, len(curve))
	for i, v := range curve {
		f := v.InexactFloat64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: round(f, 2)}
	}
	return data
}

// drawdownLineData 相对历史峰值的回撤百分比（取负值便于视觉上向下）。
func drawdownLineData(curve []decimal.Decimal) []opts.LineData {
	data := make([]opts.LineData, len(curve))
	peak := math.Inf(-1)
	for i, v := range curve {
		f := v.InexactFloat64()
		if f > peak {
			peak = f
		}
		if peak <= 0 {
			data[i] = opts.LineData{Value: 0.0}
			continue
		}
		dd := (f - peak) / peak * 100
		data[i] = opts.LineData{Value: round(dd, 2)}
	}
	return data
}

func round(v float64, digits int) float64 {
	pow := math.Pow10(digits)
	return math.Round(v*pow) / pow
}
