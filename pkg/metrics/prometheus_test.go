package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestRecorderCounts(t *testing.T) {
	r := newTestRecorder()
	r.RecordBacktestPath("basket_gated")
	r.RecordBasketDay("held")
	r.RecordBasketDay("held")
	r.RecordBasketDay("invalid")
	r.RecordError("basket_path")
	r.RecordLatency("backtest", 0.2)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.paths.WithLabelValues("basket_gated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.basketDays.WithLabelValues("held")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.basketDays.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("basket_path")))
}

func TestRecorderPush(t *testing.T) {
	var path, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		b, _ := io.ReadAll(req.Body)
		body = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := newTestRecorder()
	r.RecordBacktestPath("regime_gated")
	require.NoError(t, r.Push(context.Background(), srv.URL, "regimelab_report"))
	assert.True(t, strings.HasSuffix(path, "/job/regimelab_report"), path)
	assert.NotEmpty(t, body)
}

func TestRecorderPushFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestRecorder().Push(context.Background(), srv.URL, "job")
	require.Error(t, err)
}
