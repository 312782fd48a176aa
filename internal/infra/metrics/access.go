package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		grantsTotal,
		revocationsTotal,
		telegramRateLimitRetries,
		accessTasksDropped,
	)
}

var (
	grantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_grants_total",
			Help: "Grant operations by outcome.",
		},
		[]string{"outcome"}, // 'success', 'partial', 'error'
	)

	revocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_revocations_total",
			Help: "Revoke operations by outcome.",
		},
		[]string{"outcome"},
	)

	telegramRateLimitRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_retries_total",
			Help: "Telegram API calls retried once after a rate-limit signal.",
		},
	)

	accessTasksDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "access_tasks_dropped_total",
			Help: "Grant/revoke tasks dropped because the worker queue was full.",
		},
	)
)

func IncGrant(outcome string)      { grantsTotal.WithLabelValues(outcome).Inc() }
func IncRevocation(outcome string) { revocationsTotal.WithLabelValues(outcome).Inc() }
func IncRateLimitRetry()           { telegramRateLimitRetries.Inc() }
func IncAccessTaskDropped()        { accessTasksDropped.Inc() }
