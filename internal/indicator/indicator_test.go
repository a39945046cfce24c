package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatSeries(n int, price float64) ([]float64, []float64, []float64, []float64) {
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i := range closes {
		closes[i] = price
		highs[i] = price
		lows[i] = price
		volumes[i] = 1000
	}
	return highs, lows, closes, volumes
}

func rampSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}

	t.Run("warmup undefined", func(t *testing.T) {
		assert.False(t, SMA(closes, 3, 0).IsDefined())
		assert.False(t, SMA(closes, 3, 1).IsDefined())
	})

	t.Run("values", func(t *testing.T) {
		v, ok := SMA(closes, 3, 2).Float()
		require.True(t, ok)
		assert.InDelta(t, 2.0, v, 1e-12)
		v, ok = SMA(closes, 3, 4).Float()
		require.True(t, ok)
		assert.InDelta(t, 4.0, v, 1e-12)
	})

	t.Run("series matches pointwise", func(t *testing.T) {
		series := SMASeries(closes, 3)
		require.Len(t, series, len(closes))
		for i := range closes {
			want := SMA(closes, 3, i)
			assert.Equal(t, want.IsDefined(), series[i].IsDefined(), "idx %d", i)
			if want.IsDefined() {
				assert.InDelta(t, want.MustFloat(), series[i].MustFloat(), 1e-12)
			}
		}
	})
}

func TestEMA(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	series := EMASeries(closes, 3)

	require.False(t, series[1].IsDefined())
	// seed = SMA(10,11,12) = 11, k = 0.5
	seed, ok := series[2].Float()
	require.True(t, ok)
	assert.InDelta(t, 11.0, seed, 1e-12)
	next, ok := series[3].Float()
	require.True(t, ok)
	assert.InDelta(t, 12.0, next, 1e-12) // (13-11)*0.5 + 11
}

func TestRSI(t *testing.T) {
	t.Run("flat series is neutral 50", func(t *testing.T) {
		_, _, closes, _ := flatSeries(60, 100)
		series := RSISeries(closes, 14)
		for i := 14; i < len(series); i++ {
			v, ok := series[i].Float()
			require.True(t, ok, "idx %d", i)
			assert.InDelta(t, 50.0, v, 1e-12)
		}
	})

	t.Run("pure gains pin at 100", func(t *testing.T) {
		closes := rampSeries(30, 100, 1)
		v, ok := RSISeries(closes, 14)[20].Float()
		require.True(t, ok)
		assert.InDelta(t, 100.0, v, 1e-12)
	})

	t.Run("pure losses pin at 0", func(t *testing.T) {
		closes := rampSeries(30, 100, -1)
		v, ok := RSISeries(closes, 14)[20].Float()
		require.True(t, ok)
		assert.InDelta(t, 0.0, v, 1e-12)
	})

	t.Run("bounds", func(t *testing.T) {
		closes := []float64{44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.1, 45.42,
			45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.0, 46.03, 46.41, 46.22,
			45.64, 46.21, 46.25, 45.71, 46.45, 45.78, 45.35, 44.03, 44.18, 44.22}
		for i, v := range RSISeries(closes, 14) {
			if f, ok := v.Float(); ok {
				assert.GreaterOrEqual(t, f, 0.0, "idx %d", i)
				assert.LessOrEqual(t, f, 100.0, "idx %d", i)
			}
		}
	})

	t.Run("warmup undefined", func(t *testing.T) {
		closes := rampSeries(20, 100, 0.5)
		series := RSISeries(closes, 14)
		for i := 0; i < 14; i++ {
			assert.False(t, series[i].IsDefined(), "idx %d", i)
		}
		assert.True(t, series[14].IsDefined())
	})
}

func TestMACD(t *testing.T) {
	closes := rampSeries(60, 100, 0.7)
	res := MACDSeries(closes, 12, 26, 9)

	t.Run("warmup boundaries", func(t *testing.T) {
		assert.False(t, res.Line[24].IsDefined())
		assert.True(t, res.Line[25].IsDefined())
		assert.False(t, res.Signal[32].IsDefined())
		assert.True(t, res.Signal[33].IsDefined())
		assert.True(t, res.Histogram[33].IsDefined())
	})

	t.Run("histogram is line minus signal", func(t *testing.T) {
		for i := 33; i < len(closes); i++ {
			m := res.Line[i].MustFloat()
			s := res.Signal[i].MustFloat()
			h := res.Histogram[i].MustFloat()
			assert.InDelta(t, m-s, h, 1e-9)
		}
	})
}

func TestBollinger(t *testing.T) {
	t.Run("flat series collapses bands", func(t *testing.T) {
		_, _, closes, _ := flatSeries(30, 100)
		res := BollingerSeries(closes, 20, 2)
		u, ok := res.Upper[25].Float()
		require.True(t, ok)
		m := res.Middle[25].MustFloat()
		l := res.Lower[25].MustFloat()
		assert.InDelta(t, 100.0, u, 1e-12)
		assert.InDelta(t, 100.0, m, 1e-12)
		assert.InDelta(t, 100.0, l, 1e-12)
		assert.InDelta(t, 0.0, res.Bandwidth[25].MustFloat(), 1e-12)
	})

	t.Run("population std dev", func(t *testing.T) {
		closes := []float64{2, 4, 4, 4, 5, 5, 7, 9} // population std = 2
		res := BollingerSeries(closes, 8, 2)
		m := res.Middle[7].MustFloat()
		u := res.Upper[7].MustFloat()
		assert.InDelta(t, 5.0, m, 1e-12)
		assert.InDelta(t, 9.0, u, 1e-12)
	})
}

func TestStochastic(t *testing.T) {
	t.Run("flat range is neutral", func(t *testing.T) {
		highs, lows, closes, _ := flatSeries(30, 50)
		res := StochasticSeries(highs, lows, closes, 14, 3)
		v, ok := res.K[20].Float()
		require.True(t, ok)
		assert.InDelta(t, 50.0, v, 1e-12)
	})

	t.Run("bounds", func(t *testing.T) {
		closes := rampSeries(40, 10, 0.3)
		highs := rampSeries(40, 10.5, 0.3)
		lows := rampSeries(40, 9.5, 0.3)
		res := StochasticSeries(highs, lows, closes, 14, 3)
		for i := range closes {
			if v, ok := res.K[i].Float(); ok {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 100.0)
			}
			if v, ok := res.D[i].Float(); ok {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 100.0)
			}
		}
	})
}

func TestWilliamsR(t *testing.T) {
	closes := rampSeries(30, 10, 0.3)
	highs := rampSeries(30, 10.5, 0.3)
	lows := rampSeries(30, 9.5, 0.3)
	for i := range closes {
		if v, ok := WilliamsR(highs, lows, closes, 14, i).Float(); ok {
			assert.GreaterOrEqual(t, v, -100.0)
			assert.LessOrEqual(t, v, 0.0)
		}
	}
}

func TestOBV(t *testing.T) {
	closes := []float64{10, 11, 11, 9, 12}
	volumes := []float64{100, 200, 300, 400, 500}
	series := OBVSeries(closes, volumes)

	// first bar seeds OBV with its own volume
	assert.InDelta(t, 100.0, series[0].MustFloat(), 1e-12)
	assert.InDelta(t, 300.0, series[1].MustFloat(), 1e-12)  // higher close
	assert.InDelta(t, 300.0, series[2].MustFloat(), 1e-12)  // equal close
	assert.InDelta(t, -100.0, series[3].MustFloat(), 1e-12) // lower close
	assert.InDelta(t, 400.0, series[4].MustFloat(), 1e-12)
}

func TestVWAP(t *testing.T) {
	highs := []float64{12, 14}
	lows := []float64{8, 10}
	closes := []float64{10, 12}
	volumes := []float64{100, 300}
	series := VWAPSeries(highs, lows, closes, volumes)
	// tp = 10, 12 → vwap[1] = (10*100 + 12*300) / 400 = 11.5
	assert.InDelta(t, 10.0, series[0].MustFloat(), 1e-12)
	assert.InDelta(t, 11.5, series[1].MustFloat(), 1e-12)
}

func TestMFI(t *testing.T) {
	t.Run("zero negative flow pins at 100", func(t *testing.T) {
		closes := rampSeries(20, 100, 1)
		highs := rampSeries(20, 101, 1)
		lows := rampSeries(20, 99, 1)
		volumes := make([]float64, 20)
		for i := range volumes {
			volumes[i] = 1000
		}
		v, ok := MFI(highs, lows, closes, volumes, 14, 15).Float()
		require.True(t, ok)
		assert.InDelta(t, 100.0, v, 1e-12)
	})
}

func TestCCI(t *testing.T) {
	t.Run("flat series is zero", func(t *testing.T) {
		highs, lows, closes, _ := flatSeries(30, 100)
		v, ok := CCI(highs, lows, closes, 20, 25).Float()
		require.True(t, ok)
		assert.InDelta(t, 0.0, v, 1e-12)
	})
}

func TestATR(t *testing.T) {
	t.Run("constant range", func(t *testing.T) {
		n := 30
		highs := make([]float64, n)
		lows := make([]float64, n)
		closes := make([]float64, n)
		for i := range highs {
			highs[i] = 102
			lows[i] = 98
			closes[i] = 100
		}
		series := ATRSeries(highs, lows, closes, 14)
		assert.False(t, series[13].IsDefined())
		v, ok := series[14].Float()
		require.True(t, ok)
		assert.InDelta(t, 4.0, v, 1e-12)
		assert.InDelta(t, 4.0, series[29].MustFloat(), 1e-12)
	})
}

func TestADX(t *testing.T) {
	closes := rampSeries(80, 100, 1)
	highs := rampSeries(80, 101, 1)
	lows := rampSeries(80, 99, 1)
	res := ADXSeries(highs, lows, closes, 14)

	assert.False(t, res.PlusDI[13].IsDefined())
	assert.True(t, res.PlusDI[14].IsDefined())
	assert.False(t, res.ADX[26].IsDefined())
	require.True(t, res.ADX[27].IsDefined())
	// a steady uptrend keeps +DI above -DI and ADX high
	assert.Greater(t, res.PlusDI[40].MustFloat(), res.MinusDI[40].MustFloat())
	assert.Greater(t, res.ADX[60].MustFloat(), 25.0)
}

func TestSAR(t *testing.T) {
	highs := rampSeries(40, 101, 1)
	lows := rampSeries(40, 99, 1)
	res := SARSeries(highs, lows, 0.02, 0.2)

	require.True(t, res.SAR[10].IsDefined())
	// an unbroken uptrend stays bullish with SAR below price
	for i := 2; i < 40; i++ {
		assert.True(t, res.Bullish[i], "idx %d", i)
		assert.Less(t, res.SAR[i].MustFloat(), lows[i], "idx %d", i)
	}
}

func TestSARFlip(t *testing.T) {
	// ramp up then crash through the SAR to force a flip
	highs := append(rampSeries(20, 101, 1), 90, 80, 70)
	lows := append(rampSeries(20, 99, 1), 88, 78, 68)
	res := SARSeries(highs, lows, 0.02, 0.2)
	assert.True(t, res.Bullish[19])
	assert.False(t, res.Bullish[22])
}

func TestIchimoku(t *testing.T) {
	closes := rampSeries(120, 100, 0.5)
	highs := rampSeries(120, 100.5, 0.5)
	lows := rampSeries(120, 99.5, 0.5)

	t.Run("warmup", func(t *testing.T) {
		ich := IchimokuAt(highs, lows, closes, 10)
		assert.True(t, ich.Tenkan.IsDefined())
		assert.False(t, ich.SenkouB.IsDefined())
	})

	t.Run("uptrend sits above cloud", func(t *testing.T) {
		ich := IchimokuAt(highs, lows, closes, 110)
		require.True(t, ich.SenkouA.IsDefined())
		require.True(t, ich.SenkouB.IsDefined())
		assert.True(t, ich.AboveCloud)
	})
}

func TestFibRetracement(t *testing.T) {
	highs := rampSeries(60, 101, 1)
	lows := rampSeries(60, 99, 1)
	fib, ok := FibRetracement(highs, lows, 50, 59)
	require.True(t, ok)

	levels := fib.Levels()
	for i := 1; i < len(levels); i++ {
		assert.GreaterOrEqual(t, levels[i-1], levels[i], "levels must descend")
	}
	assert.InDelta(t, fib.L500, (fib.High+fib.Low)/2, 1e-9)
}

func TestROC(t *testing.T) {
	closes := []float64{100, 0, 110, 121}
	v, ok := ROC(closes, 1, 3).Float()
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-12)
	// zero base must not blow up
	assert.False(t, ROC(closes, 1, 2).IsDefined())
	assert.False(t, ROC(closes, 5, 3).IsDefined())
}

func TestSupportResistance(t *testing.T) {
	// two clusters of pivots around 95 and 105
	highs := []float64{100, 105, 100, 105.2, 100, 104.9, 100, 100, 100, 100}
	lows := []float64{96, 95, 96, 94.9, 96, 95.1, 96, 96, 96, 96}
	levels := SupportResistance(highs, lows, 10, 9, 5, 0.01)
	require.NotEmpty(t, levels)
	assert.LessOrEqual(t, len(levels), 5)
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i], levels[i-1])
	}
}

func TestValueGuards(t *testing.T) {
	assert.False(t, Defined(math.NaN()).IsDefined())
	assert.False(t, Defined(math.Inf(1)).IsDefined())
	assert.True(t, math.IsNaN(Undefined().MustFloat()))
}
