package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"optlab/internal/config"
	"optlab/internal/logger"
	"optlab/internal/source"
	"optlab/internal/store"
)

// App 持有装配完成的服务与配置。
type App struct {
	Cfg     *config.Config
	Service *Service
}

// New 按配置装配应用：K 线缓存、结果库、策略清单与数据源。
func New(cfg *config.Config) (*App, error) {
	logger.SetLevel(cfg.Log.Level)

	cache, err := store.NewBarCache(cfg.Data.Root)
	if err != nil {
		return nil, fmt.Errorf("初始化 K 线缓存失败: %w", err)
	}
	runs, err := store.NewRunStore(filepath.Join(cfg.Data.ResultsDir, "runs.db"))
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("初始化结果库失败: %w", err)
	}
	roster, err := config.NewRoster(cfg.Roster.Path, cfg.Roster.Watch)
	if err != nil {
		_ = cache.Close()
		_ = runs.Close()
		return nil, fmt.Errorf("加载策略清单失败: %w", err)
	}
	roster.OnChange(func(snap config.RosterSnapshot) {
		logger.Infof("策略清单已更新 version=%d strategies=%d", snap.Version, snap.Registry.Len())
	})

	sources := make([]source.Source, 0, 2)
	if csvSrc, err := source.NewCSVSource(filepath.Join(cfg.Data.Root, "csv")); err == nil {
		sources = append(sources, csvSrc)
	}
	if strings.TrimSpace(cfg.Binance.APIKey) != "" {
		sources = append(sources, source.NewBinanceSource(cfg.Binance.APIKey, cfg.Binance.APISecret, cfg.Binance.Interval, cfg.Binance.Limit))
	}

	svc, err := NewService(cfg, roster, cache, runs, sources...)
	if err != nil {
		_ = cache.Close()
		_ = runs.Close()
		return nil, err
	}
	return &App{Cfg: cfg, Service: svc}, nil
}

// Close 释放底层存储。
func (a *App) Close() error {
	if a == nil || a.Service == nil {
		return nil
	}
	return a.Service.Close()
}
