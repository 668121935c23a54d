package expiration

import (
	"math"
	"time"

	"proxy-bot/internal/db"
)

// ExpiringSoonWindow is how far ahead of expiry a proxy counts as
// expiring_soon.
const ExpiringSoonWindow = 7 * 24 * time.Hour

// DaysUntil returns the number of whole days until expiry, rounded up.
// Negative once the expiry is in the past.
func DaysUntil(expiresAt, now time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

// ClassifyStatus computes the status a proxy should hold at the given
// moment. Terminal statuses (cancelled, renewed) are sticky and returned
// unchanged.
func ClassifyStatus(expiresAt time.Time, status string, now time.Time) string {
	if db.IsTerminalProxyStatus(status) {
		return status
	}

	switch {
	case expiresAt.Before(now):
		return db.ProxyStatusExpired
	case expiresAt.Sub(now) <= ExpiringSoonWindow:
		return db.ProxyStatusExpiringSoon
	default:
		return db.ProxyStatusActive
	}
}
