package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "csv", c.Source.Type)
	assert.Equal(t, "SPY", c.Backtest.Benchmark)
	assert.Equal(t, "CASH", c.Backtest.CashMarker)
	assert.Equal(t, 3, c.Regime.Components)
	assert.EqualValues(t, 42, c.Regime.Seed)
	assert.InDelta(t, 1e-3, c.Regime.Tol, 1e-15)
	assert.InDelta(t, 1e-6, c.Regime.RegCovar, 1e-18)
	assert.Equal(t, "assets", c.Report.OutputDir)
	assert.True(t, c.Report.Charts)
	assert.Equal(t, 15*time.Second, c.MarketData.Timeout)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.False(t, c.Kafka.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: production
backtest:
  benchmark: QQQ
  mode: regime
regime:
  components: 4
  refit: true
report:
  charts: false
market_data:
  cache: none
  timeout: 3s
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, "QQQ", c.Backtest.Benchmark)
	assert.Equal(t, "CASH", c.Backtest.CashMarker)
	assert.Equal(t, "regime", c.Backtest.Mode)
	assert.Equal(t, 4, c.Regime.Components)
	assert.True(t, c.Regime.Refit)
	assert.False(t, c.Report.Charts)
	assert.Equal(t, 3*time.Second, c.MarketData.Timeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"mode":              "backtest:\n  mode: yolo\n",
		"components":        "regime:\n  components: 0\n",
		"kafka brokers":     "kafka:\n  enabled: true\n",
		"clickhouse source": "source:\n  type: clickhouse\n",
		"yaml":              "regime: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("BENCHMARK", "IWM")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "IWM", c.Backtest.Benchmark)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, "redis", c.MarketData.Cache)
	assert.Equal(t, "/tmp/out", c.Report.OutputDir)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadWithEnvValidates(t *testing.T) {
	t.Setenv("SOURCE_TYPE", "parquet")
	_, err := LoadWithEnv("")
	assert.Error(t, err)
}
