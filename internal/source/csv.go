package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optlab/internal/market"
)

// CSVSource 从目录下的 <SYMBOL>.csv 读取日线。
// 格式: date,open,high,low,close,adj_close,volume（首行表头可选）。
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) (*CSVSource, error) {
	if dir == "" {
		return nil, fmt.Errorf("csv source dir 不能为空")
	}
	return &CSVSource{dir: dir}, nil
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Load(_ context.Context, symbol string) (market.Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.Series{}, fmt.Errorf("symbol 不能为空")
	}
	path := filepath.Join(s.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return market.Series{}, err
	}
	defer f.Close()
	return ParseCSV(symbol, f)
}

// ParseCSV 解析一个 CSV 流为价格序列。
func ParseCSV(symbol string, r io.Reader) (market.Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var bars []market.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return market.Series{}, fmt.Errorf("第 %d 行解析失败: %w", line+1, err)
		}
		line++
		if len(record) < 6 {
			return market.Series{}, fmt.Errorf("第 %d 行字段不足: %d", line, len(record))
		}
		// 跳过表头
		if line == 1 && !isDate(record[0]) {
			continue
		}
		bar, err := parseBar(record)
		if err != nil {
			return market.Series{}, fmt.Errorf("第 %d 行: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return market.NewSeries(symbol, bars)
}

func parseBar(record []string) (market.Bar, error) {
	date := strings.TrimSpace(record[0])
	if !isDate(date) {
		return market.Bar{}, fmt.Errorf("非法日期 %q", record[0])
	}
	open, err := decimal.NewFromString(strings.TrimSpace(record[1]))
	if err != nil {
		return market.Bar{}, fmt.Errorf("open: %w", err)
	}
	high, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return market.Bar{}, fmt.Errorf("high: %w", err)
	}
	low, err := decimal.NewFromString(strings.TrimSpace(record[3]))
	if err != nil {
		return market.Bar{}, fmt.Errorf("low: %w", err)
	}
	closePx, err := decimal.NewFromString(strings.TrimSpace(record[4]))
	if err != nil {
		return market.Bar{}, fmt.Errorf("close: %w", err)
	}

	adj := closePx
	volIdx := 5
	// 7 列时第 6 列是复权价
	if len(record) >= 7 {
		adj, err = decimal.NewFromString(strings.TrimSpace(record[5]))
		if err != nil {
			return market.Bar{}, fmt.Errorf("adj_close: %w", err)
		}
		volIdx = 6
	}
	volume, err := strconv.ParseInt(strings.TrimSpace(record[volIdx]), 10, 64)
	if err != nil {
		return market.Bar{}, fmt.Errorf("volume: %w", err)
	}
	return market.Bar{
		Date:     date,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		AdjClose: adj,
		Volume:   volume,
	}, nil
}

func isDate(s string) bool {
	_, err := time.Parse(market.DateLayout, strings.TrimSpace(s))
	return err == nil
}
