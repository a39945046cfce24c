package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"optlab/internal/logger"
	"optlab/internal/market"
)

const maxKlineLimit = 1000

// BinanceSource 基于 go-binance SDK 拉取现货日线。
type BinanceSource struct {
	client   *binance.Client
	interval string
	limit    int
}

// NewBinanceSource 构造现货日线源，interval 为空时取 1d。
func NewBinanceSource(apiKey, apiSecret, interval string, limit int) *BinanceSource {
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		interval = "1d"
	}
	if limit <= 0 || limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	return &BinanceSource{
		client:   binance.NewClient(apiKey, apiSecret),
		interval: interval,
		limit:    limit,
	}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Load(ctx context.Context, symbol string) (market.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.Series{}, fmt.Errorf("symbol 不能为空")
	}
	kls, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(s.interval).
		Limit(s.limit).
		Do(ctx)
	if err != nil {
		return market.Series{}, fmt.Errorf("拉取 %s K 线失败: %w", symbol, err)
	}

	bars := make([]market.Bar, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		bar, err := klineToBar(kl)
		if err != nil {
			logger.Warnf("跳过异常 K 线 symbol=%s open_time=%d: %v", symbol, kl.OpenTime, err)
			continue
		}
		bars = append(bars, bar)
	}
	return market.NewSeries(symbol, bars)
}

func klineToBar(kl *binance.Kline) (market.Bar, error) {
	open, err := decimal.NewFromString(strings.TrimSpace(kl.Open))
	if err != nil {
		return market.Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := decimal.NewFromString(strings.TrimSpace(kl.High))
	if err != nil {
		return market.Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := decimal.NewFromString(strings.TrimSpace(kl.Low))
	if err != nil {
		return market.Bar{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := decimal.NewFromString(strings.TrimSpace(kl.Close))
	if err != nil {
		return market.Bar{}, fmt.Errorf("close: %w", err)
	}
	vol, err := decimal.NewFromString(strings.TrimSpace(kl.Volume))
	if err != nil {
		return market.Bar{}, fmt.Errorf("volume: %w", err)
	}
	return market.Bar{
		Date:     time.UnixMilli(kl.OpenTime).UTC().Format(market.DateLayout),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		AdjClose: closePx,
		Volume:   vol.IntPart(),
	}, nil
}
