package expiration

import (
	"context"
	"fmt"

	"proxy-bot/internal/db"
)

// UserExpirationSummary is the dashboard projection of one user's proxies.
type UserExpirationSummary struct {
	UserID int64

	Active       []db.Proxy
	ExpiringSoon []db.Proxy
	Expired      []db.Proxy

	ActiveCount       int
	ExpiringSoonCount int
	ExpiredCount      int
	Total             int
}

// GetUserExpirationSummary partitions a user's proxies into
// active/expiring-soon/expired buckets. Statuses are computed live against
// the clock so the projection is accurate between classifier sweeps; it
// never writes anything back.
func (e *Engine) GetUserExpirationSummary(ctx context.Context, userID int64) (*UserExpirationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proxies, err := e.repo.ProxiesByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list proxies for user %d: %w", userID, err)
	}

	now := e.now()
	summary := &UserExpirationSummary{
		UserID: userID,
		Total:  len(proxies),
	}

	for _, p := range proxies {
		switch ClassifyStatus(p.ExpiresAt, p.Status, now) {
		case db.ProxyStatusActive:
			summary.Active = append(summary.Active, p)
			summary.ActiveCount++
		case db.ProxyStatusExpiringSoon:
			summary.ExpiringSoon = append(summary.ExpiringSoon, p)
			summary.ExpiringSoonCount++
		case db.ProxyStatusExpired:
			summary.Expired = append(summary.Expired, p)
			summary.ExpiredCount++
		}
	}

	return summary, nil
}
