package source

import (
	"context"

	"optlab/internal/market"
)

// Source 统一不同数据来源的日线加载行为。
// 数据获取全部发生在回测开始之前，引擎热循环内不做 I/O。
type Source interface {
	Load(ctx context.Context, symbol string) (market.Series, error)
	Name() string
}
