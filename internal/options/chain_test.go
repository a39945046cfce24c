package options

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"optlab/internal/market"
	"optlab/internal/pricing"
)

func TestEnrichLegsFromChain(t *testing.T) {
	chain := market.ChainSnapshot{
		Underlying: "AAPL",
		Spot:       decimal.NewFromInt(100),
		Expiration: "2024-03-15",
		Calls: []market.ChainContract{
			{OptionType: "call", Strike: decimal.NewFromInt(105), Volume: 1200},
		},
		Puts: []market.ChainContract{
			{OptionType: "put", Strike: decimal.NewFromInt(95), Volume: 800},
		},
	}
	specs := []LegSpec{
		{Direction: Short, Type: pricing.Call, Strike: decimal.NewFromInt(105), Expiration: "2024-03-15", Contracts: 1},
		{Direction: Long, Type: pricing.Put, Strike: decimal.NewFromInt(95), Expiration: "2024-03-15", Contracts: 1, EntryVolume: 5},
		{Direction: Long, Type: pricing.Call, Strike: decimal.NewFromInt(110), Expiration: "2024-03-15", Contracts: 1, EntryVolume: 7},
	}

	out := EnrichLegsFromChain(specs, chain)
	assert.Equal(t, int64(1200), out[0].EntryVolume)
	assert.Equal(t, int64(800), out[1].EntryVolume)
	// 链里没有的合约保留原值
	assert.Equal(t, int64(7), out[2].EntryVolume)
	// 原切片不被修改
	assert.Equal(t, int64(0), specs[0].EntryVolume)
}

func TestEnrichLegsFromChainExpirationMismatch(t *testing.T) {
	chain := market.ChainSnapshot{
		Expiration: "2024-04-19",
		Calls:      []market.ChainContract{{Strike: decimal.NewFromInt(105), Volume: 999}},
	}
	specs := []LegSpec{
		{Direction: Long, Type: pricing.Call, Strike: decimal.NewFromInt(105), Expiration: "2024-03-15"},
	}
	out := EnrichLegsFromChain(specs, chain)
	assert.Equal(t, int64(0), out[0].EntryVolume)
}

func TestChainSnapshotTotalVolume(t *testing.T) {
	chain := market.ChainSnapshot{
		Calls: []market.ChainContract{{Volume: 100}, {Volume: 50}},
		Puts:  []market.ChainContract{{Volume: 25}},
	}
	assert.Equal(t, int64(175), chain.TotalVolume())
}
