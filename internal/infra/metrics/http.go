package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(httpRequestDurationMs)
}

var httpRequestDurationMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_ms",
		Help:    "HTTP request latency distribution in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
	},
	[]string{"method", "route", "status"},
)

func ObserveHTTPRequest(method, route string, status int, latencyMs float64) {
	httpRequestDurationMs.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latencyMs)
}
