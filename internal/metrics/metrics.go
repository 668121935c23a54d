package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SweepMetrics holds the counters for the expiration engine sweeps.
type SweepMetrics struct {
	StatusTransitionsTotal *prometheus.CounterVec
	AlertsCreatedTotal     *prometheus.CounterVec
	AlertsSentTotal        prometheus.Counter
	AlertSendFailuresTotal *prometheus.CounterVec
	RenewalsCompletedTotal prometheus.Counter
	RenewalsFailedTotal    prometheus.Counter
	RenewalRevenueTotal    prometheus.Counter
	SweepDurationSeconds   *prometheus.HistogramVec
}

// NewSweepMetrics registers the sweep metrics on the given registerer.
// Tests pass their own registry to avoid collisions on the default one.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	factory := promauto.With(reg)

	return &SweepMetrics{
		StatusTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_status_transitions_total",
				Help: "Proxy status changes applied by the classifier sweep",
			},
			[]string{"to_status"},
		),

		AlertsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiration_alerts_created_total",
				Help: "Expiration alerts created, by alert type",
			},
			[]string{"alert_type"},
		),

		AlertsSentTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "expiration_alerts_sent_total",
				Help: "Expiration alerts fully delivered on all enabled channels",
			},
		),

		AlertSendFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expiration_alert_send_failures_total",
				Help: "Alert delivery failures, by channel",
			},
			[]string{"channel"},
		),

		RenewalsCompletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_renewals_completed_total",
				Help: "Auto-renewals completed successfully",
			},
		),

		RenewalsFailedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_renewals_failed_total",
				Help: "Auto-renewal attempts that failed",
			},
		),

		RenewalRevenueTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_renewal_revenue_total",
				Help: "Revenue from completed renewals",
			},
		),

		SweepDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expiration_sweep_duration_seconds",
				Help:    "Duration of each expiration engine sweep",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"sweep"},
		),
	}
}
