package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验，参数问题在启动期暴露。
func validate(c *Config) error {
	if err := c.Log.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Options.validate(); err != nil {
		return err
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", l.Level)
}

func (b *BacktestConfig) validate() error {
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if b.Commission < 0 {
		return fmt.Errorf("backtest.commission must be >= 0")
	}
	return nil
}

func (o *OptionsConfig) validate() error {
	if o.InitialCapital <= 0 {
		return fmt.Errorf("options.initial_capital must be > 0")
	}
	if o.Commission < 0 {
		return fmt.Errorf("options.commission must be >= 0")
	}
	if o.RiskFreeRate < 0 || o.RiskFreeRate > 1 {
		return fmt.Errorf("options.risk_free_rate must be within [0, 1]")
	}
	return nil
}
