// Package metrics exposes the Prometheus collectors of the ledger.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-petr/pet-ledger/internal/domain"
)

const namespace = "ledger"

// Metrics holds the ledger collectors registered on a single registry.
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	commitRetries      prometheus.Counter
	settlementDuration *prometheus.HistogramVec
	challengeOutcomes  *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	sweeps             *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transaction_transitions_total",
			Help:      "Transaction status transitions by type and target status.",
		}, []string{"type", "status"}),
		commitRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_retries_total",
			Help:      "Balance commits retried after a version conflict.",
		}),
		settlementDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_duration_seconds",
			Help:      "Provider settlement call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "outcome"}),
		challengeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenge_validations_total",
			Help:      "Verification challenge validations by outcome.",
		}, []string{"outcome"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by delivery result.",
		}, []string{"result"}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_transactions_total",
			Help:      "Transactions handled by the sweeper by action.",
		}, []string{"action"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Transition counts a transaction entering status.
func (m *Metrics) Transition(t domain.TransactionType, status domain.Status) {
	m.transitions.WithLabelValues(string(t), string(status)).Inc()
}

// CommitRetry counts a retried commit.
func (m *Metrics) CommitRetry() {
	m.commitRetries.Inc()
}

// Settlement observes a provider call.
func (m *Metrics) Settlement(provider, outcome string, d time.Duration) {
	m.settlementDuration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// ChallengeOutcome counts a challenge validation result.
func (m *Metrics) ChallengeOutcome(outcome domain.ChallengeOutcome) {
	m.challengeOutcomes.WithLabelValues(string(outcome)).Inc()
}

// Notification counts a notification delivery result.
func (m *Metrics) Notification(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

// Sweep counts a transaction handled by the sweeper.
func (m *Metrics) Sweep(action string) {
	m.sweeps.WithLabelValues(action).Add(1)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
