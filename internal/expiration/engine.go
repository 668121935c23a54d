package expiration

import (
	"time"

	"proxy-bot/internal/db"
	"proxy-bot/internal/metrics"
)

// Sweep names used as the metric label.
const (
	sweepStatus    = "status"
	sweepAlerts    = "alerts"
	sweepDispatch  = "dispatch"
	sweepRenewal   = "renewal"
	sweepAnalytics = "analytics"
)

// Engine runs the expiration and renewal sweeps. All cross-sweep
// coordination goes through record state in the store; the engine itself
// holds no mutable shared state, so overlapping sweeps are safe.
type Engine struct {
	repo     *db.Repository
	panel    ProvisioningClient
	notifier Notifier
	metrics  *metrics.SweepMetrics

	now func() time.Time
}

func NewEngine(repo *db.Repository, panel ProvisioningClient, notifier Notifier, m *metrics.SweepMetrics) *Engine {
	return &Engine{
		repo:     repo,
		panel:    panel,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

func (e *Engine) observeSweep(sweep string, start time.Time) {
	e.metrics.SweepDurationSeconds.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
}
