package expiration

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"proxy-bot/internal/db"
)

var (
	ErrProxyNotFound    = errors.New("proxy not found")
	ErrProxyCancelled   = errors.New("proxy is cancelled")
	ErrInvalidDuration  = errors.New("renewal duration must be positive")
	ErrRenewalNotOpen   = errors.New("renewal is not open for processing")
	ErrAlertNotSendable = errors.New("alert is not in a sendable state")
)

// RequestManualRenewal creates a priced manual renewal record for a proxy.
// The record starts pending; it runs once the surrounding system marks it
// paid and calls ExecuteRenewalByID.
func (e *Engine) RequestManualRenewal(ctx context.Context, proxyID int64, durationDays int) (*db.ProxyRenewal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if durationDays <= 0 {
		return nil, ErrInvalidDuration
	}

	proxy, err := e.repo.ProxyByID(proxyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProxyNotFound
		}
		return nil, fmt.Errorf("load proxy %d: %w", proxyID, err)
	}
	if proxy.Status == db.ProxyStatusCancelled {
		return nil, ErrProxyCancelled
	}

	renewal := db.ProxyRenewal{
		ProxyID:     proxy.ID,
		UserID:      proxy.UserID,
		RenewalType: db.RenewalTypeManual,
		AutoRenewal: db.AutoRenewalConfig{
			RenewalDuration: durationDays,
		},
		Status:        db.RenewalStatusPending,
		Cost:          RenewalCost(proxy.Type, durationDays),
		PaymentStatus: db.PaymentStatusPending,
		RequestedAt:   e.now(),
	}
	if err := e.repo.DB().Create(&renewal).Error; err != nil {
		return nil, fmt.Errorf("create manual renewal: %w", err)
	}
	return &renewal, nil
}

// ExecuteRenewalByID claims one specific renewal (manual or auto) and runs
// it immediately, outside the sweep cadence.
func (e *Engine) ExecuteRenewalByID(ctx context.Context, renewalID uint) error {
	var renewal db.ProxyRenewal
	if err := e.repo.DB().First(&renewal, "id = ?", renewalID).Error; err != nil {
		return fmt.Errorf("load renewal %d: %w", renewalID, err)
	}

	proxy, err := e.repo.ProxyByID(renewal.ProxyID)
	if err != nil {
		return fmt.Errorf("load proxy %d: %w", renewal.ProxyID, err)
	}

	claimed, err := e.repo.ClaimRenewal(renewal.ID)
	if err != nil {
		return fmt.Errorf("claim renewal %d: %w", renewal.ID, err)
	}
	if !claimed {
		return ErrRenewalNotOpen
	}

	if !e.executeRenewal(ctx, proxy, &renewal) {
		return fmt.Errorf("renewal %d did not complete", renewal.ID)
	}
	return nil
}

// CancelProxy puts a proxy into its terminal cancelled state and closes any
// renewals still open for it. The record itself is kept for audit and
// analytics.
func (e *Engine) CancelProxy(ctx context.Context, proxyID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.repo.DB().Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.Proxy{}).Where("id = ?", proxyID).
			Update("status", db.ProxyStatusCancelled)
		if res.Error != nil {
			return fmt.Errorf("cancel proxy %d: %w", proxyID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProxyNotFound
		}

		return tx.Model(&db.ProxyRenewal{}).
			Where("proxy_id = ? AND status IN ?", proxyID,
				[]string{db.RenewalStatusPending, db.RenewalStatusScheduled, db.RenewalStatusProcessing}).
			Update("status", db.RenewalStatusCancelled).Error
	})
}

// AcknowledgeAlert marks a delivered alert as acknowledged by the user.
func (e *Engine) AcknowledgeAlert(ctx context.Context, alertID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := e.repo.DB().Model(&db.ExpirationAlert{}).
		Where("id = ? AND status = ?", alertID, db.AlertStatusSent).
		Updates(map[string]interface{}{
			"status":          db.AlertStatusAcknowledged,
			"acknowledged_at": e.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotSendable
	}
	return nil
}

// DismissAlert hides an alert without acknowledging it.
func (e *Engine) DismissAlert(ctx context.Context, alertID uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res := e.repo.DB().Model(&db.ExpirationAlert{}).
		Where("id = ? AND status IN ?", alertID, []string{db.AlertStatusPending, db.AlertStatusSent}).
		Update("status", db.AlertStatusDismissed)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlertNotSendable
	}
	return nil
}
