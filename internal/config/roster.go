package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"optlab/internal/logger"
	"optlab/internal/strategy"
)

// RosterEntry 描述清单文件里的一条策略配置。
type RosterEntry struct {
	Type       string  `yaml:"type"`
	Fast       int     `yaml:"fast,omitempty"`
	Slow       int     `yaml:"slow,omitempty"`
	Signal     int     `yaml:"signal,omitempty"`
	Period     int     `yaml:"period,omitempty"`
	Oversold   float64 `yaml:"oversold,omitempty"`
	Overbought float64 `yaml:"overbought,omitempty"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
}

// RosterFile 映射 strategies 根节点。
type RosterFile struct {
	Strategies []RosterEntry `yaml:"strategies"`
}

// RosterSnapshot 公开的策略注册表快照。
type RosterSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Registry *strategy.Registry
}

// RosterListener 在清单重载时触发。
type RosterListener func(RosterSnapshot)

// Roster 管理策略清单，支持文件热更新。
type Roster struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  RosterSnapshot
	listeners []RosterListener
}

// NewRoster 读取清单文件。watch 为 true 时监听文件变化自动重载。
func NewRoster(path string, watch bool) (*Roster, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("strategy roster requires path")
	}
	r := &Roster{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	if watch {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read strategy roster failed: %w", err)
		}
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := r.reload(); err != nil {
				logger.Errorf("strategy roster reload failed: %v", err)
				return
			}
			r.notifyListeners()
		})
		v.WatchConfig()
		r.v = v
	}
	return r, nil
}

// Snapshot 返回当前策略注册表快照。
func (r *Roster) Snapshot() RosterSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Registry 返回当前注册表。
func (r *Roster) Registry() *strategy.Registry {
	return r.Snapshot().Registry
}

// OnChange 注册重载回调。
func (r *Roster) OnChange(fn RosterListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Roster) reload() error {
	file, err := readRosterFile(r.path)
	if err != nil {
		return err
	}
	reg, err := BuildRegistry(file.Strategies)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snapshot = RosterSnapshot{
		Version:  r.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Registry: reg,
	}
	r.mu.Unlock()
	logger.Infof("strategy roster loaded %d strategies from %s", reg.Len(), filepath.Base(r.path))
	return nil
}

func (r *Roster) notifyListeners() {
	r.mu.RLock()
	snap := r.snapshot
	listeners := append([]RosterListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		go func(cb RosterListener) {
			defer safeRecover("strategy roster listener")
			cb(snap)
		}(fn)
	}
}

func readRosterFile(path string) (RosterFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RosterFile{}, fmt.Errorf("read strategy roster failed: %w", err)
	}
	var file RosterFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return RosterFile{}, fmt.Errorf("parse strategy roster failed: %w", err)
	}
	return file, nil
}

// BuildRegistry 把清单条目构造成策略注册表，任一条目非法整体失败。
func BuildRegistry(entries []RosterEntry) (*strategy.Registry, error) {
	if len(entries) == 0 {
		return strategy.DefaultRegistry()
	}
	items := make([]strategy.Strategy, 0, len(entries))
	for i, e := range entries {
		s, err := buildStrategy(e)
		if err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}
		items = append(items, s)
	}
	return strategy.NewRegistry(items...)
}

func buildStrategy(e RosterEntry) (strategy.Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(e.Type)) {
	case "ma_cross":
		fast, slow := e.Fast, e.Slow
		if fast == 0 {
			fast = 50
		}
		if slow == 0 {
			slow = 200
		}
		return strategy.NewMACross(fast, slow)
	case "rsi":
		period := e.Period
		if period == 0 {
			period = 14
		}
		oversold, overbought := e.Oversold, e.Overbought
		if oversold == 0 && overbought == 0 {
			oversold, overbought = 30, 70
		}
		return strategy.NewRSIReversion(period, oversold, overbought)
	case "macd":
		fast, slow, sig := e.Fast, e.Slow, e.Signal
		if fast == 0 {
			fast = 12
		}
		if slow == 0 {
			slow = 26
		}
		if sig == 0 {
			sig = 9
		}
		return strategy.NewMACDMomentum(fast, slow, sig)
	case "bollinger":
		period := e.Period
		if period == 0 {
			period = 20
		}
		mult := e.Multiplier
		if mult == 0 {
			mult = 2
		}
		return strategy.NewBollingerReversion(period, mult)
	default:
		return nil, fmt.Errorf("unknown strategy type: %q", e.Type)
	}
}

func safeRecover(tag string) {
	if r := recover(); r != nil {
		logger.Errorf("%s panic: %v", tag, r)
	}
}
