package expiration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"proxy-bot/internal/db"
)

const (
	// maxRenewalAttempts bounds retries of a failing renewal before it is
	// marked failed for good.
	maxRenewalAttempts = 3

	// panelCallTimeout bounds each provisioning API call so one slow proxy
	// cannot stall the batch.
	panelCallTimeout = 30 * time.Second

	// staleProcessingAge is how long a renewal may sit in processing before
	// it is considered abandoned by a crashed sweep and released for retry.
	staleProcessingAge = time.Hour
)

// Per-day renewal prices by proxy type.
var dayPrices = map[string]float64{
	db.ProxyTypeISP:         0.15,
	db.ProxyTypeResidential: 0.20,
	db.ProxyTypeDatacenter:  0.10,
}

// RenewalCost prices a renewal of the given length for a proxy type.
func RenewalCost(proxyType string, days int) float64 {
	price, ok := dayPrices[proxyType]
	if !ok {
		price = dayPrices[db.ProxyTypeDatacenter]
	}
	return float64(days) * price
}

// ProcessScheduledAutoRenewals renews every eligible proxy. Eligibility:
// auto-renewal enabled, proxy expiring_soon or expired, days remaining at or
// under the configured lead time, and the renewal cap not reached. Each
// record is claimed through a compare-and-set before the provisioning call,
// so two overlapping sweeps can never renew (and charge) the same proxy
// twice. Returns the number of proxies successfully renewed.
func (e *Engine) ProcessScheduledAutoRenewals(ctx context.Context) (int, error) {
	start := e.now()
	defer e.observeSweep(sweepRenewal, start)

	// Renewals stuck in processing since a crashed sweep go back to
	// scheduled; the pre-call reconciliation protects them from a double
	// charge.
	released, err := e.repo.ReleaseStaleRenewals(start.Add(-staleProcessingAge))
	if err != nil {
		slog.Error("Failed to release stale renewals", "error", err)
	} else if released > 0 {
		slog.Warn("Released renewals abandoned in processing", "count", released)
	}

	renewals, err := e.repo.OpenAutoRenewals()
	if err != nil {
		return 0, fmt.Errorf("list open auto-renewals: %w", err)
	}

	renewed := 0
	for i := range renewals {
		if err := ctx.Err(); err != nil {
			return renewed, err
		}

		r := &renewals[i]
		proxy, err := e.repo.ProxyByID(r.ProxyID)
		if err != nil {
			slog.Error("Failed to load proxy for renewal", "renewal_id", r.ID, "proxy_id", r.ProxyID, "error", err)
			continue
		}

		if !eligibleForAutoRenewal(proxy, r, start) {
			continue
		}

		claimed, err := e.repo.ClaimRenewal(r.ID)
		if err != nil {
			slog.Error("Failed to claim renewal", "renewal_id", r.ID, "error", err)
			continue
		}
		if !claimed {
			// Another sweep instance won the transition
			continue
		}

		if e.executeRenewal(ctx, proxy, r) {
			renewed++
		}
	}

	slog.Info("Auto-renewal sweep completed", "candidates", len(renewals), "renewed", renewed)
	return renewed, nil
}

func eligibleForAutoRenewal(p *db.Proxy, r *db.ProxyRenewal, now time.Time) bool {
	if p.Status != db.ProxyStatusExpiringSoon && p.Status != db.ProxyStatusExpired {
		return false
	}
	if DaysUntil(p.ExpiresAt, now) > r.AutoRenewal.DaysBeforeExpiry {
		return false
	}
	if r.AutoRenewal.MaxAutoRenewals > 0 && r.AutoRenewal.TimesAutoRenewed >= r.AutoRenewal.MaxAutoRenewals {
		return false
	}
	return true
}

// executeRenewal runs one claimed renewal end to end and reports success.
// The caller already owns the record (status processing).
func (e *Engine) executeRenewal(ctx context.Context, p *db.Proxy, r *db.ProxyRenewal) bool {
	attempt := r.Attempt + 1
	if err := e.repo.DB().Model(&db.ProxyRenewal{}).Where("id = ?", r.ID).
		Update("attempt", attempt).Error; err != nil {
		slog.Error("Failed to record renewal attempt", "renewal_id", r.ID, "error", err)
	}
	r.Attempt = attempt

	if r.AutoRenewal.RenewalDuration <= 0 {
		e.failRenewal(r, fmt.Errorf("invalid renewal duration: %d", r.AutoRenewal.RenewalDuration), false)
		return false
	}

	// Retry of an earlier attempt: the panel may have renewed already while
	// our store update was lost. Complete without charging again.
	if attempt > 1 {
		callCtx, cancel := context.WithTimeout(ctx, panelCallTimeout)
		info, err := e.panel.GetProxy(callCtx, p.ID)
		cancel()
		if err == nil && info.ExpiresAt.After(p.ExpiresAt) {
			slog.Warn("Panel already renewed proxy, completing without charging",
				"proxy_id", p.ID, "renewal_id", r.ID, "panel_expiry", info.ExpiresAt)
			return e.completeRenewal(p, r, info.ExpiresAt, 0) == nil
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, panelCallTimeout)
	resp, err := e.panel.RenewProxy(callCtx, p.ID, r.AutoRenewal.RenewalDuration)
	cancel()
	if err != nil {
		e.failRenewal(r, err, attempt < maxRenewalAttempts)
		return false
	}

	newExpiry := resp.NewExpiry
	if newExpiry.IsZero() {
		newExpiry = p.ExpiresAt.AddDate(0, 0, r.AutoRenewal.RenewalDuration)
	}
	cost := resp.Cost
	if cost == 0 {
		cost = RenewalCost(p.Type, r.AutoRenewal.RenewalDuration)
	}

	if err := e.completeRenewal(p, r, newExpiry, cost); err != nil {
		// The panel-side renewal already happened; the next sweep picks the
		// record up again and the reconciliation path closes it out.
		slog.Error("Renewal succeeded on panel but store update failed",
			"proxy_id", p.ID, "renewal_id", r.ID, "error", err)
		return false
	}
	return true
}

// completeRenewal applies all renewal side effects in one transaction:
// advance the proxy expiry, append the history event, close the renewal
// record, and arm a successor so auto-renewal keeps running (completed is
// terminal and never re-enters pending).
func (e *Engine) completeRenewal(p *db.Proxy, r *db.ProxyRenewal, newExpiry time.Time, cost float64) error {
	now := e.now()
	times := r.AutoRenewal.TimesAutoRenewed
	if r.RenewalType == db.RenewalTypeAuto {
		times++
	}

	err := e.repo.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.Proxy{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
			"expires_at": newExpiry,
			"status":     db.ProxyStatusActive,
		}).Error; err != nil {
			return fmt.Errorf("advance proxy expiry: %w", err)
		}

		event := db.RenewalEvent{
			ProxyID:            p.ID,
			RenewedAt:          now,
			PreviousExpiryDate: p.ExpiresAt,
			NewExpiryDate:      newExpiry,
			RenewalDuration:    r.AutoRenewal.RenewalDuration,
			RenewalCost:        cost,
		}
		if err := e.repo.AppendRenewalEvent(tx, &event); err != nil {
			return fmt.Errorf("append renewal event: %w", err)
		}

		if err := tx.Model(&db.ProxyRenewal{}).Where("id = ?", r.ID).Updates(map[string]interface{}{
			"status":                  db.RenewalStatusCompleted,
			"completed_at":            now,
			"payment_status":          db.PaymentStatusCompleted,
			"auto_times_auto_renewed": times,
			"cost":                    cost,
			"error_message":           "",
		}).Error; err != nil {
			return fmt.Errorf("complete renewal record: %w", err)
		}

		if r.RenewalType == db.RenewalTypeAuto && r.AutoRenewal.Enabled &&
			(r.AutoRenewal.MaxAutoRenewals == 0 || times < r.AutoRenewal.MaxAutoRenewals) {
			scheduledFor := newExpiry.AddDate(0, 0, -r.AutoRenewal.DaysBeforeExpiry)
			successor := db.ProxyRenewal{
				ProxyID:     p.ID,
				UserID:      r.UserID,
				RenewalType: db.RenewalTypeAuto,
				AutoRenewal: db.AutoRenewalConfig{
					Enabled:          true,
					DaysBeforeExpiry: r.AutoRenewal.DaysBeforeExpiry,
					RenewalDuration:  r.AutoRenewal.RenewalDuration,
					MaxAutoRenewals:  r.AutoRenewal.MaxAutoRenewals,
					TimesAutoRenewed: times,
				},
				Status:        db.RenewalStatusScheduled,
				Cost:          RenewalCost(p.Type, r.AutoRenewal.RenewalDuration),
				PaymentMethod: r.PaymentMethod,
				PaymentStatus: db.PaymentStatusPending,
				RequestedAt:   now,
				ScheduledFor:  &scheduledFor,
			}
			if err := tx.Create(&successor).Error; err != nil {
				return fmt.Errorf("schedule successor renewal: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	e.metrics.RenewalsCompletedTotal.Inc()
	e.metrics.RenewalRevenueTotal.Add(cost)
	slog.Info("Proxy renewed",
		"proxy_id", p.ID,
		"renewal_id", r.ID,
		"new_expiry", newExpiry.Format("2006-01-02"),
		"cost", cost,
	)
	return nil
}

// failRenewal records a failed attempt. Retryable failures drop the record
// back to scheduled for the next sweep; permanent ones (or an exhausted
// attempt bound) close it as failed.
func (e *Engine) failRenewal(r *db.ProxyRenewal, cause error, retryable bool) {
	e.metrics.RenewalsFailedTotal.Inc()

	status := db.RenewalStatusFailed
	updates := map[string]interface{}{
		"error_message": cause.Error(),
	}
	if retryable {
		status = db.RenewalStatusScheduled
	} else {
		updates["payment_status"] = db.PaymentStatusFailed
	}
	updates["status"] = status

	if err := e.repo.DB().Model(&db.ProxyRenewal{}).Where("id = ?", r.ID).
		Updates(updates).Error; err != nil {
		slog.Error("Failed to record renewal failure", "renewal_id", r.ID, "error", err)
		return
	}

	slog.Error("Proxy renewal failed",
		"proxy_id", r.ProxyID,
		"renewal_id", r.ID,
		"attempt", r.Attempt,
		"retryable", retryable,
		"error", cause,
	)
}
