package expiration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proxy-bot/internal/db"
)

// alertTypeForDays maps the exact days-remaining thresholds to alert types.
var alertTypeForDays = map[int]string{
	7: db.AlertType7Days,
	3: db.AlertType3Days,
	1: db.AlertType1Day,
}

// CreateExpirationAlerts scans non-terminal proxies and ensures exactly one
// alert per crossed threshold. The (proxy, alertType) dedup check makes
// repeated sweeps create nothing new. A failure on one proxy is logged and
// the batch continues. Returns the number of alerts created.
func (e *Engine) CreateExpirationAlerts(ctx context.Context) (int, error) {
	start := e.now()
	defer e.observeSweep(sweepAlerts, start)

	proxies, err := e.repo.NonTerminalProxies()
	if err != nil {
		return 0, fmt.Errorf("list non-terminal proxies: %w", err)
	}

	created := 0
	for i := range proxies {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		p := &proxies[i]
		alertType, ok := alertTypeFor(p, start)
		if !ok {
			continue
		}

		exists, err := e.repo.AlertExists(p.ID, alertType)
		if err != nil {
			slog.Error("Failed to check alert dedup key", "proxy_id", p.ID, "alert_type", alertType, "error", err)
			continue
		}
		if exists {
			continue
		}

		if err := e.createAlert(p, alertType, start); err != nil {
			slog.Error("Failed to create expiration alert", "proxy_id", p.ID, "alert_type", alertType, "error", err)
			continue
		}

		e.metrics.AlertsCreatedTotal.WithLabelValues(alertType).Inc()
		created++
	}

	slog.Info("Alert generation sweep completed", "scanned", len(proxies), "created", created)
	return created, nil
}

// alertTypeFor picks the alert a proxy needs right now, if any: expired
// once past expiry, otherwise an exact match on the 7/3/1 day thresholds.
func alertTypeFor(p *db.Proxy, now time.Time) (string, bool) {
	if p.Status == db.ProxyStatusExpired || p.ExpiresAt.Before(now) {
		return db.AlertTypeExpired, true
	}

	alertType, ok := alertTypeForDays[DaysUntil(p.ExpiresAt, now)]
	return alertType, ok
}

func (e *Engine) createAlert(p *db.Proxy, alertType string, now time.Time) error {
	alert := db.ExpirationAlert{
		ProxyID:   p.ID,
		UserID:    p.UserID,
		AlertType: alertType,
		Status:    db.AlertStatusPending,
		ProxyDetails: db.ProxySnapshot{
			Type:          p.Type,
			ExpiresAt:     p.ExpiresAt,
			DaysRemaining: DaysUntil(p.ExpiresAt, now),
			Price:         p.Package.Price,
		},
		Channels: db.AlertChannels{
			Email: true,
			InApp: true,
			SMS:   false,
		},
		CreatedAt: now,
	}

	if err := e.repo.DB().Create(&alert).Error; err != nil {
		return err
	}

	// Mirror the reminder time on the proxy record for the dashboards
	if err := e.repo.DB().Model(&db.Proxy{}).Where("id = ?", p.ID).
		Update("renewal_reminder_sent_at", now).Error; err != nil {
		slog.Warn("Failed to stamp renewal reminder time", "proxy_id", p.ID, "error", err)
	}
	return nil
}
