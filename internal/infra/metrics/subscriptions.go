package metrics

import (
	"telegram-paid-access/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		pendingCreatedTotal,
		pendingDecisionsTotal,
		subscriptionsCreatedTotal,
		subscriptionsExpiredTotal,
		subscriptionsTotal,
		sweepDuration,
	)
}

var (
	pendingCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_requests_created_total",
			Help: "Total number of pending subscription requests created.",
		},
	)

	pendingDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_requests_decided_total",
			Help: "Total approve/reject decisions applied to pending requests.",
		},
		[]string{"decision"}, // 'approved', 'rejected'
	)

	subscriptionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "Total number of subscriptions created by approvals.",
		},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions processed by the expiry sweeper.",
		},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"}, // 'active', 'expired'
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expiry_sweep_duration_seconds",
			Help:    "Wall time of a full expiry sweep.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func IncPendingCreated()             { pendingCreatedTotal.Inc() }
func IncPendingDecision(d string)    { pendingDecisionsTotal.WithLabelValues(d).Inc() }
func IncSubscriptionsCreated()       { subscriptionsCreatedTotal.Inc() }
func IncSubscriptionsExpired(n int)  { subscriptionsExpiredTotal.Add(float64(n)) }
func ObserveSweepDuration(s float64) { sweepDuration.Observe(s) }

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusActive,
		model.SubscriptionStatusExpired,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}
