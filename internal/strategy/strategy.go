package strategy

import (
	"fmt"

	"optlab/internal/indicator"
	"optlab/internal/market"
)

// Signal 是策略在单根 K 线上的方向判定。
type Signal string

const (
	Buy  Signal = "BUY"
	Sell Signal = "SELL"
	Hold Signal = "HOLD"
)

// Strategy 是纯决策单元：给定序列、预计算指标与下标，返回方向信号。
// 预热期之前必须返回 Hold，实现不得修改任何外部状态。
type Strategy interface {
	Name() string
	Warmup() int
	Evaluate(series market.Series, bundle *indicator.Bundle, idx int) Signal
}

// Registry 是有序的策略清单，按注册顺序遍历，不做反射查找。
type Registry struct {
	items []Strategy
}

// NewRegistry 构造注册表，重名策略直接报错。
func NewRegistry(items ...Strategy) (*Registry, error) {
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		if s == nil {
			return nil, fmt.Errorf("策略不能为 nil")
		}
		if _, ok := seen[s.Name()]; ok {
			return nil, fmt.Errorf("策略重名: %s", s.Name())
		}
		seen[s.Name()] = struct{}{}
	}
	return &Registry{items: items}, nil
}

// All 按注册顺序返回全部策略。
func (r *Registry) All() []Strategy {
	out := make([]Strategy, len(r.items))
	copy(out, r.items)
	return out
}

// Lookup 按名称查找。
func (r *Registry) Lookup(name string) (Strategy, bool) {
	for _, s := range r.items {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Len 返回策略数量。
func (r *Registry) Len() int { return len(r.items) }
