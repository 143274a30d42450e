// Package metrics provides Prometheus instrumentation for the settlement
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketsCreated counts markets created since process start.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribet_markets_created_total",
		Help: "Total number of markets created",
	})

	// MarketsResolved counts markets resolved since process start.
	MarketsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribet_markets_resolved_total",
		Help: "Total number of markets resolved",
	})

	// BetsTotal counts accepted bets per market.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paribet_bets_total",
		Help: "Total number of bets accepted",
	}, []string{"market_id"})

	// StakeVolume tracks cumulative staked value per market, in base units.
	StakeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paribet_stake_volume_total",
		Help: "Cumulative staked value in base units",
	}, []string{"market_id"})

	// PayoutsTotal counts successful payout claims.
	PayoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribet_payouts_total",
		Help: "Total number of payouts claimed",
	})

	// PayoutVolume tracks cumulative value paid out, in base units.
	PayoutVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paribet_payout_volume_total",
		Help: "Cumulative payout value in base units",
	})

	// RejectedOperations counts precondition failures by operation.
	RejectedOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paribet_rejected_operations_total",
		Help: "Operations rejected by precondition checks",
	}, []string{"operation"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paribet_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paribet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paribet_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
