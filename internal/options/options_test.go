package options

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optlab/internal/market"
	"optlab/internal/pricing"
)

func testSeries(t *testing.T, closes []float64) market.Series {
	t.Helper()
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		date, err := market.AddDays("2024-01-01", i)
		require.NoError(t, err)
		bars[i] = market.Bar{
			Date: date, Open: d, High: d, Low: d, Close: d, AdjClose: d, Volume: 5000,
		}
	}
	s, err := market.NewSeries("TEST", bars)
	require.NoError(t, err)
	return s
}

func noisyCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}
	return closes
}

func TestLegSettleEarlyClose(t *testing.T) {
	// 买入看涨 500，权利金 5.00，2 张，8.00 平仓 → 盈亏 600
	leg := OptionTrade{
		Direction:    Long,
		Type:         pricing.Call,
		Strike:       decimal.NewFromInt(500),
		Contracts:    2,
		EntryPremium: decimal.RequireFromString("5.00"),
		Status:       StatusOpen,
	}
	leg.settle(StatusExited, "2024-02-01", decimal.RequireFromString("8.00"), 120)

	assert.Equal(t, StatusExited, leg.Status)
	assert.True(t, leg.ProfitLoss.Equal(decimal.NewFromInt(600)), "got %s", leg.ProfitLoss)
	assert.EqualValues(t, 120, leg.ExitVolume)
}

func TestLegSettleShortSide(t *testing.T) {
	leg := OptionTrade{
		Direction:    Short,
		Type:         pricing.Put,
		Strike:       decimal.NewFromInt(100),
		Contracts:    1,
		EntryPremium: decimal.RequireFromString("3.00"),
		Status:       StatusOpen,
	}
	leg.settle(StatusExpired, "2024-02-01", decimal.Zero, 0)
	assert.True(t, leg.ProfitLoss.Equal(decimal.NewFromInt(300)), "got %s", leg.ProfitLoss)
}

func TestAssignmentAtExpiration(t *testing.T) {
	// 买入看涨 490，权利金 15.00，到期标的 510 → 行权，盈亏 (510-490-15)×100 = 500
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	leg := &OptionTrade{
		Direction:    Long,
		Type:         pricing.Call,
		Strike:       decimal.NewFromInt(490),
		Expiration:   "2024-02-01",
		Contracts:    1,
		EntryDate:    "2024-01-02",
		EntryPremium: decimal.RequireFromString("15.00"),
		Status:       StatusOpen,
	}
	bar := market.Bar{Date: "2024-02-01", Close: decimal.NewFromInt(510)}
	capital := e.settleOne(decimal.NewFromInt(10000), leg, bar)

	assert.Equal(t, StatusAssigned, leg.Status)
	assert.True(t, leg.ProfitLoss.Equal(decimal.NewFromInt(500)), "got %s", leg.ProfitLoss)
	// 多头腿按内在价值 20×100 回收现金
	assert.True(t, capital.Equal(decimal.NewFromInt(12000)), "got %s", capital)
}

func TestExpiredWorthless(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	leg := &OptionTrade{
		Direction:    Short,
		Type:         pricing.Call,
		Strike:       decimal.NewFromInt(120),
		Expiration:   "2024-02-01",
		Contracts:    2,
		EntryPremium: decimal.RequireFromString("2.50"),
		Status:       StatusOpen,
	}
	bar := market.Bar{Date: "2024-02-01", Close: decimal.NewFromInt(100)}
	capital := e.settleOne(decimal.NewFromInt(10000), leg, bar)

	assert.Equal(t, StatusExpired, leg.Status)
	// 空头腿到期归零赚全额权利金
	assert.True(t, leg.ProfitLoss.Equal(decimal.NewFromInt(500)), "got %s", leg.ProfitLoss)
	assert.True(t, capital.Equal(decimal.NewFromInt(10000)))
}

func TestStrategyConstruction(t *testing.T) {
	_, err := NewCoveredCall(-0.05, 30, 1)
	assert.Error(t, err)
	_, err = NewCoveredCall(0.05, 0, 1)
	assert.Error(t, err)
	_, err = NewCoveredCall(0.05, 30, 0)
	assert.Error(t, err)

	_, err = NewProtectivePut(0.05, 30, -1)
	assert.Error(t, err)
	_, err = NewLongStraddle(-1, 1)
	assert.Error(t, err)

	_, err = NewSingleLeg(SingleLegParams{Direction: "SIDEWAYS", Type: pricing.Call, DTE: 30, Contracts: 1})
	assert.Error(t, err)
	_, err = NewSingleLeg(SingleLegParams{Direction: Long, Type: pricing.Call, DTE: 30, Contracts: 1, Volume: -5})
	assert.Error(t, err)
	_, err = NewSingleLeg(SingleLegParams{Direction: Long, Type: pricing.Call, DTE: 30, Contracts: 1, HoldDays: -1})
	assert.Error(t, err)

	s, err := NewSingleLeg(SingleLegParams{Direction: Long, Type: pricing.Put, DTE: 30, Contracts: 2})
	require.NoError(t, err)
	assert.Equal(t, "single_LONG_PUT_30", s.Name())
}

func TestBuiltinStrategyNames(t *testing.T) {
	cc, err := NewCoveredCall(0.05, 30, 1)
	require.NoError(t, err)
	assert.Equal(t, "covered_call", cc.Name())

	pp, err := NewProtectivePut(0.05, 45, 1)
	require.NoError(t, err)
	assert.Equal(t, "protective_put", pp.Name())

	ls, err := NewLongStraddle(30, 1)
	require.NoError(t, err)
	assert.Equal(t, "long_straddle", ls.Name())
}

func TestNearestStrike(t *testing.T) {
	cases := []struct {
		price, want string
	}{
		{"103.20", "105"},
		{"101.90", "100"},
		{"107.50", "110"},
		{"95", "95"},
	}
	for _, tc := range cases {
		got := NearestStrike(decimal.RequireFromString(tc.price))
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "price %s got %s", tc.price, got)
	}
}

func TestStraddleLegsShareStrikeAndExpiration(t *testing.T) {
	series := testSeries(t, noisyCloses(40))
	s, err := NewLongStraddle(30, 1)
	require.NoError(t, err)

	legs := s.CreateLegs(series, nil, 25)
	require.Len(t, legs, 2)
	assert.Equal(t, pricing.Call, legs[0].Type)
	assert.Equal(t, pricing.Put, legs[1].Type)
	assert.True(t, legs[0].Strike.Equal(legs[1].Strike))
	assert.Equal(t, legs[0].Expiration, legs[1].Expiration)
	assert.Equal(t, Long, legs[0].Direction)
	assert.Equal(t, Long, legs[1].Direction)
}

func TestEngineRejectsBadInput(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = e.Run(market.Series{}, nil, nil)
	assert.Error(t, err)

	s, err := NewLongStraddle(30, 1)
	require.NoError(t, err)
	_, err = e.Run(market.Series{Symbol: "EMPTY"}, s, nil)
	assert.Error(t, err)

	_, err = New(Config{InitialCapital: decimal.Zero})
	assert.Error(t, err)
	_, err = New(Config{InitialCapital: decimal.NewFromInt(1000), Commission: decimal.NewFromInt(-1)})
	assert.Error(t, err)
}

func TestCoveredCallBacktest(t *testing.T) {
	series := testSeries(t, noisyCloses(90))
	strat, err := NewCoveredCall(0.05, 10, 1)
	require.NoError(t, err)

	e, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	assert.Len(t, res.EquityCurve, 90)
	require.NotEmpty(t, res.Trades)
	for _, tr := range res.Trades {
		assert.Equal(t, Short, tr.Direction)
		assert.Equal(t, pricing.Call, tr.Type)
		assert.True(t, tr.Closed(), "回测结束后不允许有未关闭的腿")
	}
	assert.True(t, res.Metrics.PremiumCollected.GreaterThan(decimal.Zero),
		"卖方策略应有权利金收入: %s", res.Metrics.PremiumCollected)
	assert.True(t, res.Metrics.PremiumPaid.IsZero())
}

func TestTradeVolumesFromUnderlying(t *testing.T) {
	// 腿未自带成交量时，入场/出场都记当根标的成交量
	series := testSeries(t, noisyCloses(90))
	strat, err := NewCoveredCall(0.05, 10, 1)
	require.NoError(t, err)

	e, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	require.NotEmpty(t, res.Trades)
	for i, tr := range res.Trades {
		assert.EqualValues(t, 5000, tr.EntryVolume, "trade %d entry volume", i)
		assert.EqualValues(t, 5000, tr.ExitVolume, "trade %d exit volume", i)
	}
	assert.Greater(t, res.Metrics.TotalVolume, int64(0))

	// 策略显式给了成交量时以策略为准
	custom, err := NewSingleLeg(SingleLegParams{
		Direction: Long, Type: pricing.Call, OTMPct: 0, DTE: 10, Contracts: 1, Volume: 250,
	})
	require.NoError(t, err)
	res, err = e.Run(series, custom, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	assert.EqualValues(t, 250, res.Trades[0].EntryVolume)
	assert.EqualValues(t, 5000, res.Trades[0].ExitVolume)
}

func TestSingleLegEarlyExit(t *testing.T) {
	series := testSeries(t, noisyCloses(60))
	strat, err := NewSingleLeg(SingleLegParams{
		Direction: Long, Type: pricing.Call, OTMPct: 0, DTE: 30, Contracts: 1, HoldDays: 3, Volume: 250,
	})
	require.NoError(t, err)

	e, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	require.NotEmpty(t, res.Trades)
	sawExit := false
	for _, tr := range res.Trades {
		if tr.Status == StatusExited {
			sawExit = true
		}
	}
	assert.True(t, sawExit, "持有期满应提前平仓")
	assert.Greater(t, res.Metrics.TotalVolume, int64(0))
}

func TestAssignmentViaEngine(t *testing.T) {
	// 前段温和波动，开仓后大涨，到期日价内 → 行权
	closes := noisyCloses(25)
	for i := 0; i < 20; i++ {
		closes = append(closes, 160+float64(i%3))
	}
	series := testSeries(t, closes)

	strat, err := NewSingleLeg(SingleLegParams{
		Direction: Long, Type: pricing.Call, OTMPct: 0, DTE: 5, Contracts: 1,
	})
	require.NoError(t, err)

	e, err := New(DefaultConfig())
	require.NoError(t, err)
	res, err := e.Run(series, strat, nil)
	require.NoError(t, err)

	assigned := 0
	for _, tr := range res.Trades {
		if tr.Status == StatusAssigned {
			assigned++
		}
	}
	assert.Greater(t, assigned, 0, "大涨后到期应出现行权")
	assert.True(t, res.Metrics.AssignmentRate.GreaterThan(decimal.Zero))
}

func TestMetricsAggregation(t *testing.T) {
	trades := []OptionTrade{
		{Direction: Short, Contracts: 1, EntryPremium: decimal.NewFromInt(3),
			Status: StatusExpired, ProfitLoss: decimal.NewFromInt(300), EntryVolume: 100},
		{Direction: Long, Contracts: 2, EntryPremium: decimal.NewFromInt(5),
			Status: StatusAssigned, ProfitLoss: decimal.NewFromInt(500), EntryVolume: 200, ExitVolume: 50},
		{Direction: Long, Contracts: 1, EntryPremium: decimal.NewFromInt(4),
			Status: StatusExited, ProfitLoss: decimal.NewFromInt(-150)},
	}
	m := ComputeMetrics(decimal.NewFromInt(10000), decimal.NewFromInt(10650), trades, nil)

	assert.Equal(t, 3, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 1, m.LosingTrades)
	assert.True(t, m.PremiumCollected.Equal(decimal.NewFromInt(300)), "got %s", m.PremiumCollected)
	// 2×5×100 + 1×4×100
	assert.True(t, m.PremiumPaid.Equal(decimal.NewFromInt(1400)), "got %s", m.PremiumPaid)
	assert.Equal(t, 1, m.AssignedTrades)
	assert.True(t, m.AssignmentRate.Equal(decimal.RequireFromString("33.33")), "got %s", m.AssignmentRate)
	assert.EqualValues(t, 350, m.TotalVolume)
	// 800/150
	assert.True(t, m.ProfitFactor.Equal(decimal.RequireFromString("5.33")), "got %s", m.ProfitFactor)
	assert.True(t, m.TotalReturnPct.Equal(decimal.RequireFromString("6.5")), "got %s", m.TotalReturnPct)
}
