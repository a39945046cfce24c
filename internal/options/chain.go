package options

import (
	"strings"

	"optlab/internal/market"
)

// EnrichLegsFromChain 用期权链快照补全腿的入场成交量。
// 链数据只做流动性分析增强，缺失时保留策略给出的成交量，引擎行为不变。
func EnrichLegsFromChain(specs []LegSpec, chain market.ChainSnapshot) []LegSpec {
	out := make([]LegSpec, len(specs))
	copy(out, specs)
	for i := range out {
		ct, ok := findContract(chain, out[i])
		if !ok {
			continue
		}
		out[i].EntryVolume = ct.Volume
	}
	return out
}

func findContract(chain market.ChainSnapshot, spec LegSpec) (market.ChainContract, bool) {
	if chain.Expiration != "" && chain.Expiration != spec.Expiration {
		return market.ChainContract{}, false
	}
	pool := chain.Calls
	if strings.EqualFold(string(spec.Type), "put") {
		pool = chain.Puts
	}
	for _, ct := range pool {
		if ct.Strike.Equal(spec.Strike) {
			return ct, true
		}
	}
	return market.ChainContract{}, false
}
