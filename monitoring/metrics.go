package monitoring

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	purchaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_purchase_outcomes_total",
			Help: "Purchase attempts by final outcome",
		},
		[]string{"outcome"},
	)

	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_gateway_requests_total",
			Help: "Payment gateway calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkout_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	refunds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_refunds_total",
			Help: "Compensating refunds by result",
		},
		[]string{"result"},
	)

	refundQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_refund_queue_depth",
			Help: "Refunds waiting for a retry",
		},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	lockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_account_lockouts_total",
			Help: "Account lockouts applied",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

type Monitor struct {
	redis    redis.Cmdable
	queueKey string
	interval time.Duration
}

// NewMonitor collects gauges that live outside the process, such as the
// depth of the refund retry queue stored under queueKey.
func NewMonitor(redisClient redis.Cmdable, queueKey string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{redis: redisClient, queueKey: queueKey, interval: interval}
}

// Run collects until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	m.collectRefundQueueMetrics(ctx)
	goroutineCount.Set(float64(runtime.NumGoroutine()))
}

func (m *Monitor) collectRefundQueueMetrics(ctx context.Context) {
	depth, err := m.redis.ZCard(ctx, m.queueKey).Result()
	if err != nil {
		slog.Warn("refund queue depth unavailable", "key", m.queueKey, "error", err)
		return
	}
	refundQueueDepth.Set(float64(depth))
}

// Track purchase outcome
func TrackPurchaseOutcome(outcome string) {
	purchaseOutcomes.WithLabelValues(outcome).Inc()
}

func TrackGatewayRequest(operation, result string, d time.Duration) {
	gatewayRequests.WithLabelValues(operation, result).Inc()
	gatewayDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// TrackRefund counts refunds as refunded, already_refunded, failed or queued.
func TrackRefund(result string) {
	refunds.WithLabelValues(result).Inc()
}

func TrackLoginAttempt(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

func TrackLockout() {
	lockouts.Inc()
}
