package config

// Config 是 optlab 的主配置载体。
type Config struct {
	Log      LogConfig      `toml:"log"`
	Data     DataConfig     `toml:"data"`
	Server   ServerConfig   `toml:"server"`
	Backtest BacktestConfig `toml:"backtest"`
	Options  OptionsConfig  `toml:"options"`
	Binance  BinanceConfig  `toml:"binance"`
	Roster   RosterConfig   `toml:"roster"`
}

// LogConfig 日志级别。
type LogConfig struct {
	Level string `toml:"level"` // debug|info|warn|error
}

// DataConfig 本地数据目录布局。
type DataConfig struct {
	Root       string `toml:"root"`        // K 线缓存根目录
	ResultsDir string `toml:"results_dir"` // 回测结果库目录
}

// ServerConfig HTTP 服务。
type ServerConfig struct {
	Addr    string `toml:"addr"`
	Enabled bool   `toml:"enabled"`
}

// BacktestConfig 股票回测默认参数。
type BacktestConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	Commission     float64 `toml:"commission"`
	AllowShort     bool    `toml:"allow_short"`
}

// OptionsConfig 期权回测默认参数。
type OptionsConfig struct {
	InitialCapital float64 `toml:"initial_capital"`
	Commission     float64 `toml:"commission"` // 每张合约
	RiskFreeRate   float64 `toml:"risk_free_rate"`
	VolLookback    int     `toml:"vol_lookback"`
}

// BinanceConfig 远端行情拉取。
type BinanceConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Interval  string `toml:"interval"`
	Limit     int    `toml:"limit"`
}

// RosterConfig 策略清单文件。
type RosterConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}
