package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions      prometheus.Gauge
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	sessionsReapedTotal prometheus.Counter

	chatTurnTotal    *prometheus.CounterVec
	chatTurnDuration prometheus.Histogram

	deliveryTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current live session count (file backend).",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session persist duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionsReapedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_reaped_total",
					Help: "Total sessions deleted by the reaper.",
				},
			),
			chatTurnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_turn_total",
					Help: "Total chat turns by outcome.",
				},
				[]string{"outcome"},
			),
			chatTurnDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "chat_turn_duration_seconds",
					Help:    "End-to-end chat turn duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			deliveryTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "delivery_total",
					Help: "Outbound message deliveries by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.sessionsReapedTotal,
			m.chatTurnTotal,
			m.chatTurnDuration,
			m.deliveryTotal,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered registers the metric set. Safe to call multiple times.
func EnsureRegistered() {
	getMetrics()
}

// MetricsHandler exposes the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	getMetrics()
	return promhttp.Handler()
}

// SetActiveSessions records the current live session count.
func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

// RecordSessionLoad records a session read duration.
func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

// RecordSessionSave records a session persist duration.
func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

// RecordSessionsReaped counts sessions deleted by the reaper.
func RecordSessionsReaped(count int) {
	getMetrics().sessionsReapedTotal.Add(float64(count))
}

// RecordChatTurn records a completed chat turn.
func RecordChatTurn(outcome string, duration time.Duration) {
	m := getMetrics()
	m.chatTurnTotal.WithLabelValues(outcome).Inc()
	m.chatTurnDuration.Observe(duration.Seconds())
}

// RecordDelivery counts an outbound message delivery attempt.
func RecordDelivery(success bool) {
	status := "ok"
	if !success {
		status = "error"
	}
	getMetrics().deliveryTotal.WithLabelValues(status).Inc()
}
