package market

import "github.com/shopspring/decimal"

// ChainContract 描述期权链中的单个合约，仅用于成交量分析类增强，
// 回测引擎本身不依赖期权链（权利金由定价模型合成）。
type ChainContract struct {
	Symbol       string          `json:"symbol"`
	OptionType   string          `json:"option_type"` // call/put
	Strike       decimal.Decimal `json:"strike"`
	Expiration   string          `json:"expiration"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	LastPrice    decimal.Decimal `json:"last_price"`
	Volume       int64           `json:"volume"`
	OpenInterest int64           `json:"open_interest"`
	ImpliedVol   float64         `json:"implied_vol,omitempty"`
}

// ChainSnapshot 是某一时刻某个到期日的期权链快照。
type ChainSnapshot struct {
	Underlying string          `json:"underlying"`
	Spot       decimal.Decimal `json:"spot"`
	Expiration string          `json:"expiration"`
	Calls      []ChainContract `json:"calls"`
	Puts       []ChainContract `json:"puts"`
}

// TotalVolume 汇总快照内全部合约成交量。
func (c ChainSnapshot) TotalVolume() int64 {
	var total int64
	for _, ct := range c.Calls {
		total += ct.Volume
	}
	for _, ct := range c.Puts {
		total += ct.Volume
	}
	return total
}
