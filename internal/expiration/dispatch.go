package expiration

import (
	"context"
	"fmt"
	"log/slog"

	"proxy-bot/internal/db"
	"proxy-bot/internal/notify"
)

// SendPendingAlerts delivers every pending alert across its enabled
// channels. An alert is an atomic send unit: it flips to sent only when all
// enabled channels were delivered, otherwise it stays pending and the whole
// alert is retried on the next sweep. One alert's transport failure never
// blocks the others. Returns the number of alerts fully delivered.
func (e *Engine) SendPendingAlerts(ctx context.Context) (int, error) {
	start := e.now()
	defer e.observeSweep(sweepDispatch, start)

	alerts, err := e.repo.PendingAlerts()
	if err != nil {
		return 0, fmt.Errorf("list pending alerts: %w", err)
	}

	sent := 0
	for i := range alerts {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		alert := &alerts[i]
		if !e.dispatchAlert(ctx, alert) {
			continue
		}

		if err := e.repo.MarkAlertSent(alert.ID, e.now()); err != nil {
			slog.Error("Failed to mark alert as sent", "alert_id", alert.ID, "error", err)
			continue
		}

		e.metrics.AlertsSentTotal.Inc()
		sent++
	}

	slog.Info("Alert dispatch sweep completed", "pending", len(alerts), "sent", sent)
	return sent, nil
}

// dispatchAlert attempts every enabled channel and reports whether all of
// them succeeded.
func (e *Engine) dispatchAlert(ctx context.Context, alert *db.ExpirationAlert) bool {
	subject := alertSubject(alert.AlertType)
	body := alertMessage(alert)

	ok := true
	for _, channel := range enabledChannels(alert.Channels) {
		if err := e.notifier.Send(ctx, channel, alert.User, subject, body); err != nil {
			slog.Error("Failed to deliver alert",
				"alert_id", alert.ID,
				"channel", channel,
				"user_id", alert.UserID,
				"error", err,
			)
			e.metrics.AlertSendFailuresTotal.WithLabelValues(channel).Inc()
			ok = false
		}
	}
	return ok
}

func enabledChannels(ch db.AlertChannels) []string {
	var channels []string
	if ch.Email {
		channels = append(channels, notify.ChannelEmail)
	}
	if ch.InApp {
		channels = append(channels, notify.ChannelInApp)
	}
	if ch.SMS {
		channels = append(channels, notify.ChannelSMS)
	}
	return channels
}

func alertSubject(alertType string) string {
	if alertType == db.AlertTypeExpired {
		return "Your proxy has expired"
	}
	return "Your proxy is about to expire"
}

// alertMessage renders the notification text from the immutable snapshot
// taken at alert creation time.
func alertMessage(alert *db.ExpirationAlert) string {
	details := alert.ProxyDetails

	switch alert.AlertType {
	case db.AlertTypeExpired:
		return fmt.Sprintf(`❌ Your %s proxy #%d has expired on %s.

Renew it now to restore access, or it will stay offline.`,
			details.Type,
			alert.ProxyID,
			details.ExpiresAt.Format("02.01.2006"),
		)
	default:
		return fmt.Sprintf(`⏰ Your %s proxy #%d expires in %d day(s), on %s.

Renewal price: $%.2f. Renew in time to avoid losing access.`,
			details.Type,
			alert.ProxyID,
			details.DaysRemaining,
			details.ExpiresAt.Format("02.01.2006"),
			details.Price,
		)
	}
}
