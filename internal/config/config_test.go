package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log:
  level: debug
server:
  addr: ":9000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, defaultInitialCapital, cfg.Backtest.InitialCapital)
	assert.Equal(t, defaultOptCommission, cfg.Options.Commission)
	assert.Equal(t, defaultRosterPath, cfg.Roster.Path)
	assert.Equal(t, defaultDataRoot, cfg.Data.Root)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeFile(t, "config.yaml", `
log:
  level: verbose
`)
	_, err := Load(path)
	assert.Error(t, err)

	path = writeFile(t, "config.yaml", `
backtest:
  initial_capital: 1000
  commission: -5
`)
	_, err = Load(path)
	assert.Error(t, err)

	path = writeFile(t, "config.yaml", `
options:
  risk_free_rate: 2.5
`)
	_, err = Load(path)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, validate(cfg))
}

func TestBuildRegistryFromEntries(t *testing.T) {
	reg, err := BuildRegistry([]RosterEntry{
		{Type: "ma_cross", Fast: 10, Slow: 30},
		{Type: "rsi"},
		{Type: "macd"},
		{Type: "bollinger", Period: 20, Multiplier: 2.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())

	_, ok := reg.Lookup("ma_cross_10_30")
	assert.True(t, ok)
	_, ok = reg.Lookup("rsi_14_30_70")
	assert.True(t, ok)
}

func TestBuildRegistryRejectsUnknownType(t *testing.T) {
	_, err := BuildRegistry([]RosterEntry{{Type: "hodl"}})
	assert.Error(t, err)

	_, err = BuildRegistry([]RosterEntry{{Type: "rsi", Oversold: 80, Overbought: 20}})
	assert.Error(t, err)
}

func TestBuildRegistryEmptyUsesDefaults(t *testing.T) {
	reg, err := BuildRegistry(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Len())
}

func TestRosterLoadsFromYAML(t *testing.T) {
	path := writeFile(t, "strategies.yaml", `
strategies:
  - type: ma_cross
    fast: 5
    slow: 20
  - type: rsi
    period: 7
    oversold: 25
    overbought: 75
`)
	roster, err := NewRoster(path, false)
	require.NoError(t, err)

	snap := roster.Snapshot()
	assert.EqualValues(t, 1, snap.Version)
	require.NotNil(t, snap.Registry)
	assert.Equal(t, 2, snap.Registry.Len())
	_, ok := snap.Registry.Lookup("rsi_7_25_75")
	assert.True(t, ok)
}

func TestRosterRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "strategies.yaml", `
strategies:
  - type: rsi
    窗口: 14
`)
	_, err := NewRoster(path, false)
	assert.Error(t, err)
}
