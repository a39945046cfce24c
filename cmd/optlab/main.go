package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"optlab/internal/app"
	olcfg "optlab/internal/config"
	"optlab/internal/logger"
	"optlab/internal/store"
	api "optlab/internal/transport/http/api"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "配置文件路径（默认取 OPTLAB_CONFIG 或 configs/config.yaml）")
		symbol    = flag.String("symbol", "", "一次性回测的标的")
		stratName = flag.String("strategy", "", "策略名，留空则跑清单内全部策略")
		kind      = flag.String("kind", "equity", "回测类型 equity|options")
		sigOnly   = flag.Bool("signal", false, "仅输出当前信号")
		serve     = flag.Bool("serve", false, "启动 HTTP 服务")
	)
	flag.Parse()

	path := strings.TrimSpace(*cfgPath)
	if path == "" {
		path = os.Getenv("OPTLAB_CONFIG")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	cfg, err := olcfg.Load(path)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve || (cfg.Server.Enabled && *symbol == ""):
		srv, err := api.NewServer(cfg.Server.Addr, a.Service)
		if err != nil {
			log.Fatalf("初始化 HTTP 服务失败: %v", err)
		}
		logger.Infof("HTTP 服务监听 %s", cfg.Server.Addr)
		if err := srv.Start(ctx); err != nil {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	case *sigOnly:
		if *symbol == "" {
			log.Fatal("-signal 需要 -symbol")
		}
		alert, err := a.Service.Signal(ctx, *symbol)
		if err != nil {
			log.Fatalf("信号生成失败: %v", err)
		}
		printJSON(alert)
	case *symbol != "" && *stratName != "":
		runOne(ctx, a, *symbol, *stratName, *kind)
	case *symbol != "":
		runBatch(ctx, a, *symbol)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runOne(ctx context.Context, a *app.App, symbol, stratName, kind string) {
	switch store.RunKind(kind) {
	case store.RunKindEquity:
		res, err := a.Service.RunEquity(ctx, symbol, stratName)
		if err != nil {
			log.Fatalf("回测失败: %v", err)
		}
		printJSON(res.Metrics)
		writeReport(ctx, a, symbol, stratName)
	case store.RunKindOptions:
		res, err := a.Service.RunOptions(ctx, symbol, stratName)
		if err != nil {
			log.Fatalf("期权回测失败: %v", err)
		}
		printJSON(res.Metrics)
	default:
		log.Fatalf("未知回测类型: %q", kind)
	}
}

func runBatch(ctx context.Context, a *app.App, symbol string) {
	results, err := a.Service.EvaluateAll(ctx, symbol)
	if err != nil {
		log.Fatalf("批量回测失败: %v", err)
	}
	for _, res := range results {
		fmt.Printf("%-24s return=%s%% win=%s%% pf=%s maxdd=%s%% sharpe=%s trades=%d\n",
			res.Strategy,
			res.Metrics.TotalReturnPct.StringFixed(2),
			res.Metrics.WinRatePct.StringFixed(2),
			res.Metrics.ProfitFactor.StringFixed(2),
			res.Metrics.MaxDrawdownPct.StringFixed(2),
			res.Metrics.SharpeRatio.StringFixed(2),
			res.Metrics.TotalTrades,
		)
	}
}

// writeReport 把同步回测结果先落库再渲染 HTML 到结果目录。
func writeReport(ctx context.Context, a *app.App, symbol, stratName string) {
	id, err := a.Service.SubmitEquityRun(ctx, symbol, stratName)
	if err != nil {
		logger.Warnf("结果落库失败: %v", err)
		return
	}
	// 异步任务很快，轮询等待完成
	rec, err := waitRun(ctx, a, id)
	if err != nil {
		logger.Warnf("等待回测 %s 完成失败: %v", id, err)
		return
	}
	if rec.Status != store.RunStatusDone {
		logger.Warnf("回测 %s 未完成: %s %s", id, rec.Status, rec.Message)
		return
	}
	out := filepath.Join(a.Cfg.Data.ResultsDir, fmt.Sprintf("%s_%s.html", strings.ToUpper(symbol), stratName))
	f, err := os.Create(out)
	if err != nil {
		logger.Warnf("创建报告文件失败: %v", err)
		return
	}
	defer f.Close()
	if err := a.Service.Report(ctx, id, f); err != nil {
		logger.Warnf("渲染报告失败: %v", err)
		return
	}
	logger.Infof("报告已写入 %s", out)
}

func waitRun(ctx context.Context, a *app.App, id string) (store.RunRecord, error) {
	for {
		rec, err := a.Service.Runs().Get(ctx, id)
		if err != nil {
			return store.RunRecord{}, err
		}
		if rec.Status == store.RunStatusDone || rec.Status == store.RunStatusFailed {
			return rec, nil
		}
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}
