package clickhouse

import (
	"context"
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptions(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "default", User: "default"}
	for _, opt := range []ClientOption{
		WithHost("ch.local"),
		WithPort(8123),
		WithDatabase("regimelab"),
		WithCredentials("analyst", "secret"),
		WithHTTP(true),
		WithTimeouts(2*time.Second, 0),
		WithMaxExecutionTime(90 * time.Second),
		WithAsyncInsert(true, true),
	} {
		opt(&cfg)
	}

	opts := buildOptions(cfg)
	assert.Equal(t, []string{"ch.local:8123"}, opts.Addr)
	assert.Equal(t, "regimelab", opts.Auth.Database)
	assert.Equal(t, "analyst", opts.Auth.Username)
	assert.Equal(t, "secret", opts.Auth.Password)
	assert.Equal(t, ch.HTTP, opts.Protocol)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 90, opts.Settings["max_execution_time"])
	assert.Equal(t, 1, opts.Settings["wait_for_async_insert"])
}

func TestOptionsIgnoreZeroValues(t *testing.T) {
	cfg := ClientConfig{Port: 9000, Database: "default", User: "default", DialTimeout: time.Second}
	WithPort(0)(&cfg)
	WithDatabase("")(&cfg)
	WithCredentials("", "")(&cfg)
	WithTimeouts(0, 0)(&cfg)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, "default", cfg.User)
	assert.Equal(t, time.Second, cfg.DialTimeout)
	assert.Equal(t, ch.Native, buildOptions(cfg).Protocol)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host is required")
}
