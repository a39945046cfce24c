package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optlab/internal/indicator"
	"optlab/internal/market"
	"optlab/internal/strategy"
)

// scriptStrategy 按脚本在指定下标发信号，用于精确验证引擎行为。
type scriptStrategy struct {
	name    string
	warmup  int
	signals map[int]strategy.Signal
}

func (s *scriptStrategy) Name() string { return s.name }
func (s *scriptStrategy) Warmup() int  { return s.warmup }
func (s *scriptStrategy) Evaluate(_ market.Series, _ *indicator.Bundle, idx int) strategy.Signal {
	if sig, ok := s.signals[idx]; ok {
		return sig
	}
	return strategy.Hold
}

func testSeries(t *testing.T, closes []float64) market.Series {
	t.Helper()
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		date, err := market.AddDays("2024-01-01", i)
		require.NoError(t, err)
		bars[i] = market.Bar{
			Date: date, Open: d, High: d, Low: d, Close: d, AdjClose: d, Volume: 1000,
		}
	}
	s, err := market.NewSeries("TEST", bars)
	require.NoError(t, err)
	return s
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestConfigValidation(t *testing.T) {
	_, err := New(Config{InitialCapital: decimal.Zero, Commission: decimal.Zero})
	assert.Error(t, err)
	_, err = New(Config{InitialCapital: decimal.NewFromInt(1000), Commission: decimal.NewFromInt(-1)})
	assert.Error(t, err)
	_, err = New(DefaultConfig())
	assert.NoError(t, err)
}

func TestRunRejectsBadInput(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	series := testSeries(t, []float64{100, 101})

	_, err := e.Run(series, nil, nil)
	assert.Error(t, err)

	_, err = e.Run(market.Series{Symbol: "EMPTY"}, &scriptStrategy{name: "s"}, nil)
	assert.Error(t, err)
}

func TestEquityCurveLengthMatchesSeries(t *testing.T) {
	e := mustEngine(t, DefaultConfig())
	closes := make([]float64, 37)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	series := testSeries(t, closes)

	res, err := e.Run(series, &scriptStrategy{name: "noop", warmup: 5}, nil)
	require.NoError(t, err)
	assert.Len(t, res.EquityCurve, len(closes))
	assert.Zero(t, res.Metrics.TotalTrades)
}

func TestFlatSeriesMACrossNoTrades(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 100
	}
	series := testSeries(t, closes)

	strat, err := strategy.NewMACross(50, 200)
	require.NoError(t, err)

	e := mustEngine(t, DefaultConfig())
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.True(t, res.FinalCapital.Equal(res.InitialCapital),
		"final %s initial %s", res.FinalCapital, res.InitialCapital)
	assert.True(t, res.Metrics.SharpeRatio.IsZero())
	assert.True(t, res.Metrics.MaxDrawdownPct.IsZero())
}

func TestFlatSeriesRSINoTrades(t *testing.T) {
	closes := make([]float64, 220)
	for i := range closes {
		closes[i] = 100
	}
	series := testSeries(t, closes)

	strat, err := strategy.NewRSIReversion(14, 30, 70)
	require.NoError(t, err)

	e := mustEngine(t, DefaultConfig())
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.True(t, res.FinalCapital.Equal(res.InitialCapital))

	bundle := indicator.ComputeBundle(series, indicator.DefaultBundleParams())
	rsi, ok := bundle.RSI[len(closes)-1].Float()
	require.True(t, ok)
	assert.InDelta(t, 50.0, rsi, 1e-12)
}

func TestLongTradeLifecycle(t *testing.T) {
	// 第 2 根 100 买入，第 5 根 110 卖出
	series := testSeries(t, []float64{100, 100, 100, 105, 108, 110, 110})
	strat := &scriptStrategy{
		name:    "script",
		warmup:  1,
		signals: map[int]strategy.Signal{2: strategy.Buy, 5: strategy.Sell},
	}
	cfg := Config{InitialCapital: decimal.NewFromInt(100000), Commission: decimal.NewFromInt(1)}
	e := mustEngine(t, cfg)

	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, Long, tr.Direction)
	assert.Equal(t, StatusClosed, tr.Status)
	assert.EqualValues(t, 999, tr.Shares) // (100000-1)/100 向下取整
	assert.True(t, tr.EntryPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, tr.ExitPrice.Equal(decimal.NewFromInt(110)))
	// (110-100)×999
	assert.True(t, tr.ProfitLoss.Equal(decimal.NewFromInt(9990)), "got %s", tr.ProfitLoss)
	assert.True(t, tr.ReturnPercent.IsPositive())

	// 初始 + 毛利 - 两笔手续费
	want := decimal.NewFromInt(100000 + 9990 - 2)
	assert.True(t, res.FinalCapital.Equal(want), "got %s", res.FinalCapital)
	assert.Equal(t, 1, res.Metrics.WinningTrades)
	assert.True(t, res.Metrics.ProfitFactor.Equal(ProfitFactorCap))
}

func TestShortTradeLifecycle(t *testing.T) {
	series := testSeries(t, []float64{100, 100, 100, 95, 92, 90, 90})
	strat := &scriptStrategy{
		name:    "script_short",
		warmup:  1,
		signals: map[int]strategy.Signal{2: strategy.Sell, 5: strategy.Buy},
	}
	cfg := Config{InitialCapital: decimal.NewFromInt(100000), Commission: decimal.NewFromInt(1), AllowShort: true}
	e := mustEngine(t, cfg)

	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, Short, tr.Direction)
	// (100-90)×999
	assert.True(t, tr.ProfitLoss.Equal(decimal.NewFromInt(9990)), "got %s", tr.ProfitLoss)
	assert.True(t, tr.ReturnPercent.IsPositive())

	want := decimal.NewFromInt(100000 + 9990 - 2)
	assert.True(t, res.FinalCapital.Equal(want), "got %s", res.FinalCapital)
}

func TestShortIgnoredWhenDisabled(t *testing.T) {
	series := testSeries(t, []float64{100, 100, 100, 95, 90})
	strat := &scriptStrategy{
		name:    "script",
		warmup:  1,
		signals: map[int]strategy.Signal{2: strategy.Sell},
	}
	e := mustEngine(t, DefaultConfig())
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestForceCloseAtSeriesEnd(t *testing.T) {
	series := testSeries(t, []float64{100, 100, 100, 104, 108})
	strat := &scriptStrategy{
		name:    "script",
		warmup:  1,
		signals: map[int]strategy.Signal{2: strategy.Buy},
	}
	e := mustEngine(t, DefaultConfig())
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, StatusClosed, tr.Status)
	assert.Equal(t, series.Bars[4].Date, tr.ExitDate)
	assert.True(t, tr.ExitPrice.Equal(decimal.NewFromInt(108)))
	// 曲线末点必须等于强平后的最终资金
	assert.True(t, res.EquityCurve[len(res.EquityCurve)-1].Equal(res.FinalCapital))
}

func TestMarkToMarketCurve(t *testing.T) {
	series := testSeries(t, []float64{100, 100, 100, 110, 120})
	strat := &scriptStrategy{
		name:    "script",
		warmup:  1,
		signals: map[int]strategy.Signal{2: strategy.Buy},
	}
	cfg := Config{InitialCapital: decimal.NewFromInt(10000), Commission: decimal.Zero}
	e := mustEngine(t, cfg)
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	// 100 股建仓：曲线应逐根反映浮动盈亏
	assert.True(t, res.EquityCurve[2].Equal(decimal.NewFromInt(10000)))
	assert.True(t, res.EquityCurve[3].Equal(decimal.NewFromInt(11000)), "got %s", res.EquityCurve[3])
	assert.True(t, res.EquityCurve[4].Equal(decimal.NewFromInt(12000)))
}

func TestMaxDrawdownExample(t *testing.T) {
	curve := []decimal.Decimal{
		decimal.NewFromInt(100000),
		decimal.NewFromInt(110000),
		decimal.NewFromInt(95000),
		decimal.NewFromInt(105000),
	}
	dd := MaxDrawdown(curve)
	assert.True(t, dd.Equal(decimal.RequireFromString("13.64")), "got %s", dd)
}

func TestMaxDrawdownEdgeCases(t *testing.T) {
	assert.True(t, MaxDrawdown(nil).IsZero())
	assert.True(t, MaxDrawdown([]decimal.Decimal{decimal.NewFromInt(1)}).IsZero())

	rising := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(110), decimal.NewFromInt(120),
	}
	assert.True(t, MaxDrawdown(rising).IsZero())
}

func TestProfitFactor(t *testing.T) {
	win := Trade{ProfitLoss: decimal.NewFromInt(300)}
	loss := Trade{ProfitLoss: decimal.NewFromInt(-100)}

	m := ComputeMetrics(decimal.NewFromInt(1000), decimal.NewFromInt(1200),
		[]Trade{win, loss}, nil)
	assert.True(t, m.ProfitFactor.Equal(decimal.NewFromInt(3)), "got %s", m.ProfitFactor)
	assert.True(t, m.WinRatePct.Equal(decimal.NewFromInt(50)))

	m = ComputeMetrics(decimal.NewFromInt(1000), decimal.NewFromInt(1300),
		[]Trade{win}, nil)
	assert.True(t, m.ProfitFactor.Equal(ProfitFactorCap))

	m = ComputeMetrics(decimal.NewFromInt(1000), decimal.NewFromInt(1000), nil, nil)
	assert.True(t, m.ProfitFactor.IsZero())
	assert.True(t, m.WinRatePct.IsZero())
}

func TestSharpeRatio(t *testing.T) {
	flat := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(100), decimal.NewFromInt(100),
	}
	assert.True(t, SharpeRatio(flat).IsZero())
	assert.True(t, SharpeRatio(nil).IsZero())

	up := []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(101),
		decimal.NewFromInt(103), decimal.NewFromInt(102),
	}
	assert.False(t, SharpeRatio(up).IsZero())
}

func TestTotalReturn(t *testing.T) {
	m := ComputeMetrics(decimal.NewFromInt(100000), decimal.NewFromInt(112500), nil, nil)
	assert.True(t, m.TotalReturnPct.Equal(decimal.RequireFromString("12.5")), "got %s", m.TotalReturnPct)
}
