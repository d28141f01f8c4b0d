package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsEncodeAsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "info")

	l.Info("report generated",
		String("run_id", "r-1"),
		Int("days", 5),
		Float64("total", 0.5),
		Duration("duration_ms", 1500*time.Millisecond),
		Bool("refit", true),
		Any("by_status", map[string]int{"held": 3}),
		Strings("tickers", []string{"XLK", "XLF"}),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "report generated", got["message"])
	assert.Equal(t, "r-1", got["run_id"])
	assert.EqualValues(t, 5, got["days"])
	assert.EqualValues(t, 1500, got["duration_ms"])
	assert.Equal(t, true, got["refit"])
	assert.Equal(t, map[string]interface{}{"held": float64(3)}, got["by_status"])
	assert.Equal(t, "XLK, XLF", got["tickers"])
	assert.Equal(t, "boom", got["error"])
}

func TestLevelFiltersAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn").With(String("env", "test"))

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "test", got["env"])
	assert.Equal(t, "warn", got["level"])
}
