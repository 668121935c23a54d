package expiration

import (
	"context"
	"math"
	"testing"
	"time"

	"proxy-bot/internal/db"
)

func TestGenerateExpirationAnalytics(t *testing.T) {
	engine, repo, _, _ := setupTestEngine(t)
	user := createTestUser(t, repo)

	// isp: 1 renewed, 1 expired -> 50% renewal rate
	createTestProxy(t, repo, 201, user.TgID, db.ProxyTypeISP, db.ProxyStatusRenewed, testNow.AddDate(0, 0, 30))
	createTestProxy(t, repo, 202, user.TgID, db.ProxyTypeISP, db.ProxyStatusExpired, testNow.Add(-24*time.Hour))

	// datacenter: 2 expired, none renewed -> 0%
	createTestProxy(t, repo, 203, user.TgID, db.ProxyTypeDatacenter, db.ProxyStatusExpired, testNow.Add(-48*time.Hour))
	createTestProxy(t, repo, 204, user.TgID, db.ProxyTypeDatacenter, db.ProxyStatusExpired, testNow.Add(-72*time.Hour))

	// residential: active and expiring only, no renewal/expiry -> excluded
	// from the rate average
	createTestProxy(t, repo, 205, user.TgID, db.ProxyTypeResidential, db.ProxyStatusActive, testNow.AddDate(0, 0, 20))
	createTestProxy(t, repo, 206, user.TgID, db.ProxyTypeResidential, db.ProxyStatusExpiringSoon, testNow.Add(48*time.Hour))

	completedAt := testNow.Add(-3 * time.Hour)
	renewals := []db.ProxyRenewal{
		{ProxyID: 201, UserID: user.TgID, RenewalType: db.RenewalTypeAuto, Status: db.RenewalStatusCompleted, Cost: 6.0, PaymentStatus: db.PaymentStatusCompleted, CompletedAt: &completedAt},
		{ProxyID: 203, UserID: user.TgID, RenewalType: db.RenewalTypeManual, Status: db.RenewalStatusCompleted, Cost: 3.0, PaymentStatus: db.PaymentStatusCompleted, CompletedAt: &completedAt},
	}
	for i := range renewals {
		if err := repo.DB().Create(&renewals[i]).Error; err != nil {
			t.Fatalf("failed to create completed renewal: %v", err)
		}
	}

	if err := engine.GenerateExpirationAnalytics(context.Background()); err != nil {
		t.Fatalf("GenerateExpirationAnalytics failed: %v", err)
	}

	day := testNow.UTC().Truncate(24 * time.Hour)
	snapshot, err := repo.AnalyticsByDate(day)
	if err != nil {
		t.Fatalf("failed to load analytics snapshot: %v", err)
	}

	if snapshot.ISP.Total != 2 || snapshot.ISP.Renewed != 1 || snapshot.ISP.Expired != 1 {
		t.Errorf("unexpected isp counters: %+v", snapshot.ISP)
	}
	if snapshot.Datacenter.Total != 2 || snapshot.Datacenter.Expired != 2 {
		t.Errorf("unexpected datacenter counters: %+v", snapshot.Datacenter)
	}
	if snapshot.Residential.Total != 2 || snapshot.Residential.ExpiringSoon != 1 {
		t.Errorf("unexpected residential counters: %+v", snapshot.Residential)
	}

	if snapshot.TotalActiveProxies != 1 {
		t.Errorf("expected 1 active proxy, got %d", snapshot.TotalActiveProxies)
	}
	if snapshot.TotalExpiringProxies != 1 {
		t.Errorf("expected 1 expiring proxy, got %d", snapshot.TotalExpiringProxies)
	}
	if snapshot.TotalExpiredProxies != 3 {
		t.Errorf("expected 3 expired proxies, got %d", snapshot.TotalExpiredProxies)
	}

	// (50% + 0%) / 2, residential contributes no rate
	if math.Abs(snapshot.AverageRenewalRate-25.0) > 1e-9 {
		t.Errorf("expected average renewal rate 25.0, got %v", snapshot.AverageRenewalRate)
	}

	if math.Abs(snapshot.RenewalRevenue-9.0) > 1e-9 {
		t.Errorf("expected renewal revenue 9.0, got %v", snapshot.RenewalRevenue)
	}
	if math.Abs(snapshot.AverageRenewalValue-4.5) > 1e-9 {
		t.Errorf("expected average renewal value 4.5, got %v", snapshot.AverageRenewalValue)
	}
}

func TestGenerateExpirationAnalyticsUpsertsByDate(t *testing.T) {
	engine, repo, _, _ := setupTestEngine(t)
	user := createTestUser(t, repo)
	createTestProxy(t, repo, 210, user.TgID, db.ProxyTypeISP, db.ProxyStatusActive, testNow.AddDate(0, 0, 30))

	if err := engine.GenerateExpirationAnalytics(context.Background()); err != nil {
		t.Fatalf("first analytics run failed: %v", err)
	}

	// The population changed between runs; the second run must replace the
	// snapshot rather than add a row.
	createTestProxy(t, repo, 211, user.TgID, db.ProxyTypeISP, db.ProxyStatusExpired, testNow.Add(-24*time.Hour))

	if err := engine.GenerateExpirationAnalytics(context.Background()); err != nil {
		t.Fatalf("second analytics run failed: %v", err)
	}

	var count int64
	if err := repo.DB().Model(&db.ExpirationAnalytics{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count snapshots: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 snapshot row, got %d", count)
	}

	day := testNow.UTC().Truncate(24 * time.Hour)
	snapshot, err := repo.AnalyticsByDate(day)
	if err != nil {
		t.Fatalf("failed to load analytics snapshot: %v", err)
	}
	if snapshot.ISP.Total != 2 {
		t.Errorf("expected snapshot to carry the second run's totals, got %d", snapshot.ISP.Total)
	}
	if snapshot.TotalExpiredProxies != 1 {
		t.Errorf("expected 1 expired proxy after second run, got %d", snapshot.TotalExpiredProxies)
	}
}

func TestAverageRenewalRate(t *testing.T) {
	tests := []struct {
		name  string
		types []*db.TypeCounters
		want  float64
	}{
		{"no data", []*db.TypeCounters{{}, {}, {}}, 0},
		{"single type full renewal", []*db.TypeCounters{{Renewed: 3}}, 100},
		{"mixed", []*db.TypeCounters{{Renewed: 1, Expired: 1}, {Expired: 2}, {}}, 25},
		{"all expired", []*db.TypeCounters{{Expired: 5}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := averageRenewalRate(tt.types...); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("averageRenewalRate() = %v, want %v", got, tt.want)
			}
		})
	}
}
