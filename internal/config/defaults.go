package config

// 默认值常量
const (
	defaultLogLevel       = "info"
	defaultDataRoot       = "data/bars"
	defaultResultsDir     = "data/results"
	defaultServerAddr     = ":8090"
	defaultInitialCapital = 100000.0
	defaultCommission     = 1.0
	defaultOptCommission  = 0.65
	defaultRiskFreeRate   = 0.05
	defaultVolLookback    = 20
	defaultInterval       = "1d"
	defaultFetchLimit     = 1000
	defaultRosterPath     = "configs/strategies.yaml"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Data.Root == "" {
		c.Data.Root = defaultDataRoot
	}
	if c.Data.ResultsDir == "" {
		c.Data.ResultsDir = defaultResultsDir
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaultServerAddr
	}
	if c.Backtest.InitialCapital <= 0 {
		c.Backtest.InitialCapital = defaultInitialCapital
	}
	if c.Backtest.Commission == 0 {
		c.Backtest.Commission = defaultCommission
	}
	if c.Options.InitialCapital <= 0 {
		c.Options.InitialCapital = defaultInitialCapital
	}
	if c.Options.Commission == 0 {
		c.Options.Commission = defaultOptCommission
	}
	if c.Options.RiskFreeRate == 0 {
		c.Options.RiskFreeRate = defaultRiskFreeRate
	}
	if c.Options.VolLookback <= 0 {
		c.Options.VolLookback = defaultVolLookback
	}
	if c.Binance.Interval == "" {
		c.Binance.Interval = defaultInterval
	}
	if c.Binance.Limit <= 0 {
		c.Binance.Limit = defaultFetchLimit
	}
	if c.Roster.Path == "" {
		c.Roster.Path = defaultRosterPath
	}
}
