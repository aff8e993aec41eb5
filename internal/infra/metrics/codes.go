package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"elearning-partner-access/internal/domain/model"
)

func init() {
	register(
		redemptionsTotal,
		sessionDurationMinutes,
		codesTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_code_redemptions_total",
			Help: "Redemption attempts by outcome (success/inactive/expired/exhausted/not_found/error).",
		},
		[]string{"outcome"},
	)

	sessionDurationMinutes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "access_code_session_duration_minutes",
			Help:    "Closed session duration distribution in minutes.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120, 240, 480},
		},
	)

	codesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "access_codes_total",
			Help: "Current number of access codes by derived status.",
		},
		[]string{"status"}, // 'active', 'inactive', 'expired', 'exhausted'
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncRedemption(outcome string) {
	redemptionsTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveSessionDuration(minutes int) {
	sessionDurationMinutes.Observe(float64(minutes))
}

func SetCodesTotal(counts map[model.CodeStatus]int) {
	statuses := []model.CodeStatus{
		model.CodeStatusActive,
		model.CodeStatusInactive,
		model.CodeStatusExpired,
		model.CodeStatusExhausted,
	}
	for _, status := range statuses {
		codesTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
