package indicator

import (
	"math"
	"sort"
)

// FibLevels 保存回撤窗口内的斐波那契关键位，自高到低排列：
// High >= L236 >= L382 >= L500 >= L618 >= L786 >= Low。
type FibLevels struct {
	High float64
	L236 float64
	L382 float64
	L500 float64
	L618 float64
	L786 float64
	Low  float64
}

// Levels 返回全部关键位（含高低点），自高到低。
func (f FibLevels) Levels() []float64 {
	return []float64{f.High, f.L236, f.L382, f.L500, f.L618, f.L786, f.Low}
}

// FibRetracement 在 lookback 窗口内取最高高点与最低低点，计算
// 23.6/38.2/50/61.8/78.6 回撤位。
func FibRetracement(highs, lows []float64, lookback, idx int) (FibLevels, bool) {
	if lookback <= 0 || idx < lookback-1 || idx >= len(highs) {
		return FibLevels{}, false
	}
	hh, ll := highestLowest(highs, lows, lookback, idx)
	span := hh - ll
	return FibLevels{
		High: hh,
		L236: hh - span*0.236,
		L382: hh - span*0.382,
		L500: hh - span*0.500,
		L618: hh - span*0.618,
		L786: hh - span*0.786,
		Low:  ll,
	}, true
}

// SupportResistance 把 lookback 窗口内的局部极值聚成少量价位：
// 相对差在 tolerance 以内的极值归并为一个均值价位，返回升序列表。
func SupportResistance(highs, lows []float64, lookback, idx, maxLevels int, tolerance float64) []float64 {
	if lookback <= 2 || idx < lookback-1 || idx >= len(highs) {
		return nil
	}
	if maxLevels <= 0 {
		maxLevels = 5
	}
	if tolerance <= 0 {
		tolerance = 0.01
	}
	start := idx - lookback + 1
	var pivots []float64
	for i := start + 1; i < idx; i++ {
		if highs[i] > highs[i-1] && highs[i] > highs[i+1] {
			pivots = append(pivots, highs[i])
		}
		if lows[i] < lows[i-1] && lows[i] < lows[i+1] {
			pivots = append(pivots, lows[i])
		}
	}
	if len(pivots) == 0 {
		return nil
	}
	sort.Float64s(pivots)
	var levels []float64
	clusterSum := pivots[0]
	clusterN := 1
	anchor := pivots[0]
	flush := func() {
		levels = append(levels, clusterSum/float64(clusterN))
	}
	for _, p := range pivots[1:] {
		if anchor != 0 && math.Abs(p-anchor)/anchor <= tolerance {
			clusterSum += p
			clusterN++
			continue
		}
		flush()
		clusterSum = p
		clusterN = 1
		anchor = p
	}
	flush()
	if len(levels) > maxLevels {
		// keep the most recently touched extremes, trim from the middle out
		levels = levels[len(levels)-maxLevels:]
	}
	return levels
}
