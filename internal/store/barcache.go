package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "github.com/glebarez/go-sqlite"

	"optlab/internal/market"
)

// BarManifest 记录某个 symbol 缓存文件的统计信息。
type BarManifest struct {
	Symbol     string `json:"symbol"`
	MinDate    string `json:"min_date"`
	MaxDate    string `json:"max_date"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// BarCache 按 symbol 分库缓存日线，避免重复拉取远端数据。
type BarCache struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewBarCache(root string) (*BarCache, error) {
	if root == "" {
		return nil, fmt.Errorf("bar cache root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &BarCache{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (c *BarCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for k, db := range c.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.dbs, k)
	}
	return firstErr
}

func (c *BarCache) db(symbol string) (*sql.DB, string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, "", fmt.Errorf("symbol 不能为空")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[symbol]; ok && db != nil {
		return db, c.dbPath(symbol), nil
	}
	path := c.dbPath(symbol)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureBarSchema(db, symbol); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	c.dbs[symbol] = db
	return db, path, nil
}

func (c *BarCache) dbPath(symbol string) string {
	return filepath.Join(c.root, strings.ToUpper(symbol), "daily.db")
}

// PutBars 批量写入日线（重复日期将被覆盖）。
// 价格列存 TEXT，decimal 可无损往返。
func (c *BarCache) PutBars(ctx context.Context, symbol string, bars []market.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	db, _, err := c.db(symbol)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (date, open, high, low, close, adj_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    adj_close=excluded.adj_close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Date,
			b.Open.String(), b.High.String(), b.Low.String(),
			b.Close.String(), b.AdjClose.String(), b.Volume); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := c.refreshManifest(ctx, db); err != nil {
		return count, err
	}
	return count, nil
}

// LoadSeries 读取缓存内全部日线，按日期升序。
func (c *BarCache) LoadSeries(ctx context.Context, symbol string) (market.Series, error) {
	db, _, err := c.db(symbol)
	if err != nil {
		return market.Series{}, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adj_close, volume
		FROM bars ORDER BY date ASC`)
	if err != nil {
		return market.Series{}, err
	}
	defer rows.Close()
	var bars []market.Bar
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return market.Series{}, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return market.Series{}, err
	}
	return market.NewSeries(strings.ToUpper(strings.TrimSpace(symbol)), bars)
}

// RangeSeries 读取 start~end 闭区间内的日线。
func (c *BarCache) RangeSeries(ctx context.Context, symbol, start, end string) (market.Series, error) {
	if start == "" || end == "" {
		return market.Series{}, fmt.Errorf("start/end 不能为空")
	}
	if end < start {
		start, end = end, start
	}
	db, _, err := c.db(symbol)
	if err != nil {
		return market.Series{}, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adj_close, volume
		FROM bars WHERE date BETWEEN ? AND ?
		ORDER BY date ASC`, start, end)
	if err != nil {
		return market.Series{}, err
	}
	defer rows.Close()
	var bars []market.Bar
	for rows.Next() {
		bar, err := scanBar(rows)
		if err != nil {
			return market.Series{}, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return market.Series{}, err
	}
	return market.NewSeries(strings.ToUpper(strings.TrimSpace(symbol)), bars)
}

func (c *BarCache) Manifest(ctx context.Context, symbol string) (BarManifest, error) {
	db, path, err := c.db(symbol)
	if err != nil {
		return BarManifest{}, err
	}
	// manifest 在 PutBars 前只有 (id, symbol)，其余列为 NULL
	row := db.QueryRowContext(ctx, `
		SELECT symbol, COALESCE(min_date, ''), COALESCE(max_date, ''),
		       COALESCE(rows, 0), COALESCE(last_sync_at, 0)
		FROM manifest WHERE id=1`)
	var m BarManifest
	if err := row.Scan(&m.Symbol, &m.MinDate, &m.MaxDate, &m.Rows, &m.LastSyncAt); err != nil {
		return BarManifest{}, err
	}
	m.Path = path
	return m, nil
}

// CheckIntegrity 校验缓存与 manifest 一致：行数、日期区间、日期格式。
// 回测前调用，发现不一致时应重新拉取该标的。
func (c *BarCache) CheckIntegrity(ctx context.Context, symbol string) error {
	db, _, err := c.db(symbol)
	if err != nil {
		return err
	}
	m, err := c.Manifest(ctx, symbol)
	if err != nil {
		return err
	}
	row := db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(MIN(date), ''), COALESCE(MAX(date), '') FROM bars`)
	var (
		rows             int64
		minDate, maxDate string
	)
	if err := row.Scan(&rows, &minDate, &maxDate); err != nil {
		return err
	}
	if rows != m.Rows || minDate != m.MinDate || maxDate != m.MaxDate {
		return fmt.Errorf("%s 缓存与 manifest 不一致: rows %d/%d range %s~%s vs %s~%s",
			symbol, rows, m.Rows, minDate, maxDate, m.MinDate, m.MaxDate)
	}
	if rows > 0 {
		if _, err := time.Parse(market.DateLayout, minDate); err != nil {
			return fmt.Errorf("%s 缓存日期非法: %w", symbol, err)
		}
		if _, err := time.Parse(market.DateLayout, maxDate); err != nil {
			return fmt.Errorf("%s 缓存日期非法: %w", symbol, err)
		}
	}
	return nil
}

func (c *BarCache) refreshManifest(ctx context.Context, db *sql.DB) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_date = (SELECT COALESCE(MIN(date), '') FROM bars),
		    max_date = (SELECT COALESCE(MAX(date), '') FROM bars),
		    rows = (SELECT COUNT(1) FROM bars),
		    last_sync_at = ?
		WHERE id = 1`, now)
	return err
}

func scanBar(rows *sql.Rows) (market.Bar, error) {
	var (
		bar                              market.Bar
		open, high, low, closePx, adjPx string
	)
	if err := rows.Scan(&bar.Date, &open, &high, &low, &closePx, &adjPx, &bar.Volume); err != nil {
		return market.Bar{}, err
	}
	var err error
	if bar.Open, err = decimal.NewFromString(open); err != nil {
		return market.Bar{}, fmt.Errorf("open: %w", err)
	}
	if bar.High, err = decimal.NewFromString(high); err != nil {
		return market.Bar{}, fmt.Errorf("high: %w", err)
	}
	if bar.Low, err = decimal.NewFromString(low); err != nil {
		return market.Bar{}, fmt.Errorf("low: %w", err)
	}
	if bar.Close, err = decimal.NewFromString(closePx); err != nil {
		return market.Bar{}, fmt.Errorf("close: %w", err)
	}
	if bar.AdjClose, err = decimal.NewFromString(adjPx); err != nil {
		return market.Bar{}, fmt.Errorf("adj_close: %w", err)
	}
	return bar, nil
}

func ensureBarSchema(db *sql.DB, symbol string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			date      TEXT PRIMARY KEY,
			open      TEXT NOT NULL,
			high      TEXT NOT NULL,
			low       TEXT NOT NULL,
			close     TEXT NOT NULL,
			adj_close TEXT NOT NULL,
			volume    INTEGER NOT NULL DEFAULT 0,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			symbol TEXT NOT NULL,
			min_date TEXT,
			max_date TEXT,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
		`INSERT INTO manifest (id, symbol) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET symbol=excluded.symbol;`,
	}
	for i, stmt := range stmts {
		var err error
		if i == len(stmts)-1 {
			_, err = db.Exec(stmt, strings.ToUpper(symbol))
		} else {
			_, err = db.Exec(stmt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
