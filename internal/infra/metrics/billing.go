package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		billingRunsTotal,
		billingChargesTotal,
		billingRunDuration,
		subscriptionsCancelledTotal,
	)
}

var (
	billingRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_runs_total",
			Help: "Completed billing engine runs.",
		},
	)

	billingChargesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_charges_total",
			Help: "Recurring charge attempts by result (succeeded/failed).",
		},
		[]string{"result"},
	)

	billingRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_run_duration_seconds",
			Help:    "Wall time of one billing engine run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	subscriptionsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_cancelled_total",
			Help: "Subscriptions cancelled after exhausting the charge retry budget.",
		},
	)
)

func IncBillingRun()                     { billingRunsTotal.Inc() }
func IncBillingCharge(result string)     { billingChargesTotal.WithLabelValues(norm(result)).Inc() }
func ObserveBillingRun(seconds float64)  { billingRunDuration.Observe(seconds) }
func IncSubscriptionCancelledByRetries() { subscriptionsCancelledTotal.Inc() }
