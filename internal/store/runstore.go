package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// RunKind 区分股票回测与期权回测。
type RunKind string

const (
	RunKindEquity  RunKind = "equity"
	RunKindOptions RunKind = "options"
)

// RunStatus 回测任务生命周期。
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusDone    RunStatus = "done"
	RunStatusFailed  RunStatus = "failed"
)

// ErrRunNotFound 查询不到对应回测记录。
var ErrRunNotFound = errors.New("run not found")

// RunRecord 一次回测任务的落库形态。
type RunRecord struct {
	ID          string         `gorm:"column:id;primaryKey" json:"id"`
	Symbol      string         `gorm:"column:symbol;index" json:"symbol"`
	Strategy    string         `gorm:"column:strategy;index" json:"strategy"`
	Kind        RunKind        `gorm:"column:kind;index" json:"kind"`
	Status      RunStatus      `gorm:"column:status;index" json:"status"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	ConfigJSON  datatypes.JSON `gorm:"column:config_json;type:TEXT" json:"config,omitempty"`
	ResultJSON  datatypes.JSON `gorm:"column:result_json;type:TEXT" json:"result,omitempty"`
	MetricsJSON datatypes.JSON `gorm:"column:metrics_json;type:TEXT" json:"metrics,omitempty"`
	CreatedAt   int64          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   int64          `gorm:"column:updated_at" json:"updated_at"`
	FinishedAt  int64          `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (RunRecord) TableName() string { return "runs" }

// RunFilter 列表查询条件。MinMetric 针对 metrics_json 里的数值字段过滤。
type RunFilter struct {
	Symbol    string
	Strategy  string
	Kind      RunKind
	Status    RunStatus
	MetricKey string
	MinMetric float64
	Limit     int
	Offset    int
}

// RunStore 基于 Gorm + SQLite 的回测结果存储。
type RunStore struct {
	db *gorm.DB
}

func NewRunStore(path string) (*RunStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run store 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL 下留一点并发余量给 HTTP 读请求
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create 插入一条 pending 记录并返回生成的 run ID。
func (s *RunStore) Create(ctx context.Context, symbol, strategy string, kind RunKind, configJSON []byte) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("run store 未初始化")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("symbol 必填")
	}
	if strings.TrimSpace(strategy) == "" {
		return "", fmt.Errorf("strategy 必填")
	}
	if len(configJSON) == 0 {
		configJSON = []byte("{}")
	}
	now := time.Now().UnixMilli()
	rec := RunRecord{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Strategy:   strings.TrimSpace(strategy),
		Kind:       kind,
		Status:     RunStatusPending,
		ConfigJSON: datatypes.JSON(configJSON),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

// UpdateStatus 推进任务状态，message 仅在失败时有意义。
func (s *RunStore) UpdateStatus(ctx context.Context, id string, status RunStatus, message string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store 未初始化")
	}
	payload := map[string]interface{}{
		"status":     status,
		"message":    strings.TrimSpace(message),
		"updated_at": time.Now().UnixMilli(),
	}
	res := s.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Complete 写入回测结果并标记 done。
func (s *RunStore) Complete(ctx context.Context, id string, resultJSON, metricsJSON []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store 未初始化")
	}
	if len(resultJSON) == 0 {
		resultJSON = []byte("{}")
	}
	if len(metricsJSON) == 0 {
		metricsJSON = []byte("{}")
	}
	now := time.Now().UnixMilli()
	payload := map[string]interface{}{
		"status":       RunStatusDone,
		"message":      "",
		"result_json":  datatypes.JSON(resultJSON),
		"metrics_json": datatypes.JSON(metricsJSON),
		"updated_at":   now,
		"finished_at":  now,
	}
	res := s.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Fail 标记任务失败并记录原因。
func (s *RunStore) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UnixMilli()
	payload := map[string]interface{}{
		"status":      RunStatusFailed,
		"message":     msg,
		"updated_at":  now,
		"finished_at": now,
	}
	res := s.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).Updates(payload)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Get 按 ID 查询单条记录。
func (s *RunStore) Get(ctx context.Context, id string) (RunRecord, error) {
	if s == nil || s.db == nil {
		return RunRecord{}, fmt.Errorf("run store 未初始化")
	}
	var rec RunRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RunRecord{}, ErrRunNotFound
		}
		return RunRecord{}, err
	}
	return rec, nil
}

// List 按条件查询，按创建时间倒序。
// MetricKey 过滤在内存中用 gjson 完成，metrics_json 的字段集合不受 schema 约束。
func (s *RunStore) List(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store 未初始化")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&RunRecord{})
	if sym := strings.ToUpper(strings.TrimSpace(filter.Symbol)); sym != "" {
		query = query.Where("symbol = ?", sym)
	}
	if st := strings.TrimSpace(filter.Strategy); st != "" {
		query = query.Where("strategy = ?", st)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	var recs []RunRecord
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, err
	}
	key := strings.TrimSpace(filter.MetricKey)
	if key == "" {
		return recs, nil
	}
	out := recs[:0]
	for _, rec := range recs {
		v := gjson.GetBytes(rec.MetricsJSON, key)
		if v.Exists() && v.Float() >= filter.MinMetric {
			out = append(out, rec)
		}
	}
	return out, nil
}
