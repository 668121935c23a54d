package expiration

import (
	"testing"
	"time"

	"proxy-bot/internal/db"
)

func TestClassifyStatus(t *testing.T) {
	now := testNow

	tests := []struct {
		name      string
		expiresAt time.Time
		status    string
		expected  string
	}{
		{
			name:      "Past expiry becomes expired",
			expiresAt: now.Add(-1 * time.Hour),
			status:    db.ProxyStatusExpiringSoon,
			expected:  db.ProxyStatusExpired,
		},
		{
			name:      "Active proxy past expiry becomes expired",
			expiresAt: now.Add(-30 * 24 * time.Hour),
			status:    db.ProxyStatusActive,
			expected:  db.ProxyStatusExpired,
		},
		{
			name:      "Three days out becomes expiring_soon",
			expiresAt: now.Add(3 * 24 * time.Hour),
			status:    db.ProxyStatusActive,
			expected:  db.ProxyStatusExpiringSoon,
		},
		{
			name:      "Exactly seven days is still expiring_soon",
			expiresAt: now.Add(7 * 24 * time.Hour),
			status:    db.ProxyStatusActive,
			expected:  db.ProxyStatusExpiringSoon,
		},
		{
			name:      "Just over seven days stays active",
			expiresAt: now.Add(7*24*time.Hour + time.Hour),
			status:    db.ProxyStatusActive,
			expected:  db.ProxyStatusActive,
		},
		{
			name:      "Cancelled is sticky",
			expiresAt: now.Add(-1 * time.Hour),
			status:    db.ProxyStatusCancelled,
			expected:  db.ProxyStatusCancelled,
		},
		{
			name:      "Renewed is sticky",
			expiresAt: now.Add(2 * 24 * time.Hour),
			status:    db.ProxyStatusRenewed,
			expected:  db.ProxyStatusRenewed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyStatus(tt.expiresAt, tt.status, now)
			if result != tt.expected {
				t.Errorf("ClassifyStatus(%v, %s) = %s, want %s", tt.expiresAt, tt.status, result, tt.expected)
			}

			// Pure function: re-running with the same inputs never flips the
			// answer again.
			again := ClassifyStatus(tt.expiresAt, result, now)
			if again != tt.expected {
				t.Errorf("re-classification changed status: %s -> %s", result, again)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	now := testNow

	tests := []struct {
		name      string
		expiresAt time.Time
		expected  int
	}{
		{"Exactly three days", now.Add(3 * 24 * time.Hour), 3},
		{"Partial day rounds up", now.Add(2*24*time.Hour + time.Minute), 3},
		{"One hour left rounds to one day", now.Add(time.Hour), 1},
		{"Already expired is negative or zero", now.Add(-25 * time.Hour), -1},
		{"Expired one hour ago is zero", now.Add(-1 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(tt.expiresAt, now); got != tt.expected {
				t.Errorf("DaysUntil(%v) = %d, want %d", tt.expiresAt, got, tt.expected)
			}
		})
	}
}
