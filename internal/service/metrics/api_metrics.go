package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "regimelab",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of report API endpoints",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "regimelab",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by report API endpoint and status class",
		},
		[]string{"endpoint", "class"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors)
	})
}

// Observe records one endpoint call; class is empty on success.
func Observe(endpoint string, start time.Time, class string) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if class != "" {
		APIErrors.WithLabelValues(endpoint, class).Inc()
	}
}
