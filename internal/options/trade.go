package options

import (
	"github.com/shopspring/decimal"

	"optlab/internal/pricing"
)

// Direction 期权腿方向，LONG 买入权利，SHORT 卖出义务。
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// LegStatus 期权腿状态机：OPEN 只能迁移到三种关闭态之一。
type LegStatus string

const (
	StatusOpen     LegStatus = "OPEN"
	StatusExited   LegStatus = "CLOSED_EXIT"    // 到期前按理论价平仓
	StatusExpired  LegStatus = "CLOSED_EXPIRED" // 到期无内在价值
	StatusAssigned LegStatus = "CLOSED_ASSIGNED" // 到期有内在价值被行权
)

// ContractMultiplier 每张合约对应 100 股。
var ContractMultiplier = decimal.NewFromInt(100)

// OptionTrade 单条期权腿，关闭后不再修改。
type OptionTrade struct {
	Direction    Direction          `json:"direction"`
	Type         pricing.OptionType `json:"type"`
	Strike       decimal.Decimal    `json:"strike"`
	Expiration   string             `json:"expiration"`
	Contracts    int64              `json:"contracts"`
	EntryDate    string             `json:"entry_date"`
	EntryPremium decimal.Decimal    `json:"entry_premium"`
	EntryVolume  int64              `json:"entry_volume"`
	Status       LegStatus          `json:"status"`
	ExitDate     string             `json:"exit_date,omitempty"`
	ExitPremium  decimal.Decimal    `json:"exit_premium"`
	ExitVolume   int64              `json:"exit_volume"`
	ProfitLoss   decimal.Decimal    `json:"profit_loss"`
}

// Closed 报告该腿是否已处于任一关闭态。
func (t *OptionTrade) Closed() bool { return t.Status != StatusOpen }

// settle 以给定权利金关闭腿并计算方向调整后的盈亏。
func (t *OptionTrade) settle(status LegStatus, date string, premium decimal.Decimal, volume int64) {
	mult := decimal.NewFromInt(t.Contracts).Mul(ContractMultiplier)
	var pl decimal.Decimal
	if t.Direction == Short {
		pl = t.EntryPremium.Sub(premium).Mul(mult)
	} else {
		pl = premium.Sub(t.EntryPremium).Mul(mult)
	}
	t.Status = status
	t.ExitDate = date
	t.ExitPremium = premium
	t.ExitVolume = volume
	t.ProfitLoss = pl.Round(2)
}

// LegSpec 是策略开仓时给出的腿描述，权利金由引擎按定价模型填充。
type LegSpec struct {
	Direction   Direction
	Type        pricing.OptionType
	Strike      decimal.Decimal
	Expiration  string
	Contracts   int64
	EntryVolume int64
}
