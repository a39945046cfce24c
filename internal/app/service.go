package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"optlab/internal/config"
	"optlab/internal/engine"
	"optlab/internal/indicator"
	"optlab/internal/logger"
	"optlab/internal/market"
	"optlab/internal/options"
	"optlab/internal/signal"
	"optlab/internal/source"
	"optlab/internal/store"
	"optlab/internal/visual"
)

// Service 串起数据源、缓存、回测引擎与结果存储。
type Service struct {
	cfg     *config.Config
	roster  *config.Roster
	cache   *store.BarCache
	runs    *store.RunStore
	sources []source.Source
	siggen  *signal.Generator
}

// NewService 组装服务。sources 按顺序尝试，命中后写入缓存。
func NewService(cfg *config.Config, roster *config.Roster, cache *store.BarCache, runs *store.RunStore, sources ...source.Source) (*Service, error) {
	if roster == nil {
		return nil, fmt.Errorf("roster 不能为空")
	}
	if cache == nil || runs == nil {
		return nil, fmt.Errorf("存储未初始化")
	}
	return &Service{
		cfg:     cfg,
		roster:  roster,
		cache:   cache,
		runs:    runs,
		sources: sources,
		siggen:  signal.NewGenerator(indicator.DefaultBundleParams()),
	}, nil
}

func (s *Service) Close() error {
	var firstErr error
	if err := s.cache.Close(); err != nil {
		firstErr = err
	}
	if err := s.runs.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Runs 暴露结果存储，供 HTTP 层查询。
func (s *Service) Runs() *store.RunStore { return s.runs }

// Roster 当前策略清单。
func (s *Service) Roster() *config.Roster { return s.roster }

// LoadSeries 优先读缓存，缺失时按顺序尝试数据源并回填缓存。
func (s *Service) LoadSeries(ctx context.Context, symbol string) (market.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.Series{}, fmt.Errorf("symbol 必填")
	}
	if series, err := s.cache.LoadSeries(ctx, symbol); err == nil && series.Len() > 0 {
		if err := s.cache.CheckIntegrity(ctx, symbol); err != nil {
			logger.Warnf("缓存校验失败，改走数据源: %v", err)
		} else {
			return series, nil
		}
	}
	var lastErr error
	for _, src := range s.sources {
		series, err := src.Load(ctx, symbol)
		if err != nil {
			lastErr = err
			logger.Warnf("数据源 %s 加载 %s 失败: %v", src.Name(), symbol, err)
			continue
		}
		if _, err := s.cache.PutBars(ctx, symbol, series.Bars); err != nil {
			logger.Warnf("缓存 %s 写入失败: %v", symbol, err)
		}
		return series, nil
	}
	if lastErr != nil {
		return market.Series{}, fmt.Errorf("加载 %s 失败: %w", symbol, lastErr)
	}
	return market.Series{}, fmt.Errorf("没有可用的数据源提供 %s", symbol)
}

// Refresh 强制从外部数据源拉取并覆盖缓存。
func (s *Service) Refresh(ctx context.Context, symbol string) (store.BarManifest, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return store.BarManifest{}, fmt.Errorf("symbol 必填")
	}
	var lastErr error
	for _, src := range s.sources {
		series, err := src.Load(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := s.cache.PutBars(ctx, symbol, series.Bars); err != nil {
			return store.BarManifest{}, err
		}
		return s.cache.Manifest(ctx, symbol)
	}
	if lastErr != nil {
		return store.BarManifest{}, lastErr
	}
	return store.BarManifest{}, fmt.Errorf("没有可用的数据源提供 %s", symbol)
}

// Manifest 查询缓存状态。
func (s *Service) Manifest(ctx context.Context, symbol string) (store.BarManifest, error) {
	return s.cache.Manifest(ctx, symbol)
}

func (s *Service) equityConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if s.cfg.Backtest.InitialCapital > 0 {
		cfg.InitialCapital = decimal.NewFromFloat(s.cfg.Backtest.InitialCapital)
	}
	if s.cfg.Backtest.Commission >= 0 {
		cfg.Commission = decimal.NewFromFloat(s.cfg.Backtest.Commission)
	}
	cfg.AllowShort = s.cfg.Backtest.AllowShort
	return cfg
}

func (s *Service) optionsConfig() options.Config {
	cfg := options.DefaultConfig()
	if s.cfg.Options.InitialCapital > 0 {
		cfg.InitialCapital = decimal.NewFromFloat(s.cfg.Options.InitialCapital)
	}
	if s.cfg.Options.Commission >= 0 {
		cfg.Commission = decimal.NewFromFloat(s.cfg.Options.Commission)
	}
	if s.cfg.Options.RiskFreeRate > 0 {
		cfg.RiskFreeRate = s.cfg.Options.RiskFreeRate
	}
	if s.cfg.Options.VolLookback > 0 {
		cfg.VolLookback = s.cfg.Options.VolLookback
	}
	return cfg
}

// RunEquity 同步执行一次股票回测。
func (s *Service) RunEquity(ctx context.Context, symbol, strategyName string) (*engine.Result, error) {
	strat, ok := s.roster.Registry().Lookup(strategyName)
	if !ok {
		return nil, fmt.Errorf("未知策略: %q", strategyName)
	}
	series, err := s.LoadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(s.equityConfig())
	if err != nil {
		return nil, err
	}
	return eng.Run(series, strat, nil)
}

// RunOptions 同步执行一次期权回测。
func (s *Service) RunOptions(ctx context.Context, symbol, strategyName string) (*options.Result, error) {
	strat, err := buildOptionsStrategy(strategyName)
	if err != nil {
		return nil, err
	}
	series, err := s.LoadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	eng, err := options.New(s.optionsConfig())
	if err != nil {
		return nil, err
	}
	return eng.Run(series, strat, nil)
}

// EvaluateAll 对清单内全部策略并发回测同一标的。
// 每个策略独立引擎实例，结果按清单顺序返回。
func (s *Service) EvaluateAll(ctx context.Context, symbol string) ([]*engine.Result, error) {
	series, err := s.LoadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	bundle := indicator.ComputeBundle(series, indicator.DefaultBundleParams())
	strats := s.roster.Registry().All()
	results := make([]*engine.Result, len(strats))

	g, _ := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i, strat := range strats {
		i, strat := i, strat
		g.Go(func() error {
			eng, err := engine.New(s.equityConfig())
			if err != nil {
				return err
			}
			res, err := eng.Run(series, strat, bundle)
			if err != nil {
				return fmt.Errorf("%s: %w", strat.Name(), err)
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SubmitEquityRun 落库一条 pending 记录后异步执行。
func (s *Service) SubmitEquityRun(ctx context.Context, symbol, strategyName string) (string, error) {
	if _, ok := s.roster.Registry().Lookup(strategyName); !ok {
		return "", fmt.Errorf("未知策略: %q", strategyName)
	}
	cfgJSON, _ := json.Marshal(s.equityConfig())
	id, err := s.runs.Create(ctx, symbol, strategyName, store.RunKindEquity, cfgJSON)
	if err != nil {
		return "", err
	}
	go s.executeRun(id, func(ctx context.Context) (any, any, error) {
		res, err := s.RunEquity(ctx, symbol, strategyName)
		if err != nil {
			return nil, nil, err
		}
		return res, res.Metrics, nil
	})
	return id, nil
}

// SubmitOptionsRun 落库一条 pending 记录后异步执行期权回测。
func (s *Service) SubmitOptionsRun(ctx context.Context, symbol, strategyName string) (string, error) {
	if _, err := buildOptionsStrategy(strategyName); err != nil {
		return "", err
	}
	cfgJSON, _ := json.Marshal(s.optionsConfig())
	id, err := s.runs.Create(ctx, symbol, strategyName, store.RunKindOptions, cfgJSON)
	if err != nil {
		return "", err
	}
	go s.executeRun(id, func(ctx context.Context) (any, any, error) {
		res, err := s.RunOptions(ctx, symbol, strategyName)
		if err != nil {
			return nil, nil, err
		}
		return res, res.Metrics, nil
	})
	return id, nil
}

// executeRun 驱动任务状态机 pending→running→done/failed。
// 请求上下文随响应结束，后台任务用独立 context。
func (s *Service) executeRun(id string, fn func(ctx context.Context) (any, any, error)) {
	ctx := context.Background()
	if err := s.runs.UpdateStatus(ctx, id, store.RunStatusRunning, ""); err != nil {
		logger.Errorf("回测 %s 状态更新失败: %v", id, err)
		return
	}
	result, metrics, err := fn(ctx)
	if err != nil {
		logger.Errorf("回测 %s 执行失败: %v", id, err)
		if ferr := s.runs.Fail(ctx, id, err); ferr != nil {
			logger.Errorf("回测 %s 标记失败出错: %v", id, ferr)
		}
		return
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		_ = s.runs.Fail(ctx, id, err)
		return
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		_ = s.runs.Fail(ctx, id, err)
		return
	}
	if err := s.runs.Complete(ctx, id, resultJSON, metricsJSON); err != nil {
		logger.Errorf("回测 %s 结果落库失败: %v", id, err)
		return
	}
	logger.Infof("回测 %s 完成", id)
}

// Signal 在最新一根 K 线上生成共振信号。
func (s *Service) Signal(ctx context.Context, symbol string) (*signal.Alert, error) {
	series, err := s.LoadSeries(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return s.siggen.Generate(series), nil
}

// Report 把一条已完成的股票回测渲染成 HTML 报告。
func (s *Service) Report(ctx context.Context, runID string, w io.Writer) error {
	rec, err := s.runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	if rec.Status != store.RunStatusDone {
		return fmt.Errorf("回测 %s 尚未完成（状态 %s）", runID, rec.Status)
	}
	if rec.Kind != store.RunKindEquity {
		return fmt.Errorf("仅支持股票回测报告，run kind=%s", rec.Kind)
	}
	var result engine.Result
	if err := json.Unmarshal(rec.ResultJSON, &result); err != nil {
		return fmt.Errorf("解析回测结果失败: %w", err)
	}
	series, err := s.LoadSeries(ctx, rec.Symbol)
	if err != nil {
		return err
	}
	// 回测后缓存可能追加了新 K 线，对齐到当时的区间
	if series.Len() > len(result.EquityCurve) {
		series.Bars = series.Bars[:len(result.EquityCurve)]
	}
	return visual.RenderHTML(w, visual.ReportInput{
		Series:      series,
		Strategy:    rec.Strategy,
		EquityCurve: result.EquityCurve,
		Trades:      result.Trades,
		Metrics:     result.Metrics,
	})
}

// OptionStrategyNames 支持的期权策略。
func OptionStrategyNames() []string {
	return []string{"covered_call", "protective_put", "long_straddle"}
}

func buildOptionsStrategy(name string) (options.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "covered_call":
		return options.NewCoveredCall(0.05, 30, 1)
	case "protective_put":
		return options.NewProtectivePut(0.05, 30, 1)
	case "long_straddle":
		return options.NewLongStraddle(30, 1)
	default:
		return nil, fmt.Errorf("未知期权策略: %q", name)
	}
}
