package indicator

import "math"

// Value 表示单个指标输出：要么是具体数值，要么因预热数据不足而未定义。
// 调用方必须把未定义视为"本根 K 线不做决策"，绝不能当作 0 参与计算。
type Value struct {
	val float64
	ok  bool
}

// Defined 构造已定义的指标值，NaN/Inf 一律归为未定义。
func Defined(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{val: v, ok: true}
}

// Undefined 返回未定义值。
func Undefined() Value { return Value{} }

// Float 返回数值与是否定义。
func (v Value) Float() (float64, bool) { return v.val, v.ok }

// IsDefined 判断是否已定义。
func (v Value) IsDefined() bool { return v.ok }

// MustFloat 仅在已确认定义后使用，未定义时返回 NaN 便于暴露误用。
func (v Value) MustFloat() float64 {
	if !v.ok {
		return math.NaN()
	}
	return v.val
}

func undefinedSeries(n int) []Value {
	return make([]Value, n)
}
