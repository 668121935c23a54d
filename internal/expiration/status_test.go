package expiration

import (
	"context"
	"testing"
	"time"

	"proxy-bot/internal/db"
)

func TestUpdateProxyStatuses(t *testing.T) {
	engine, repo, _, _ := setupTestEngine(t)
	user := createTestUser(t, repo)

	createTestProxy(t, repo, 1, user.TgID, db.ProxyTypeResidential, db.ProxyStatusActive, testNow.Add(3*24*time.Hour))
	createTestProxy(t, repo, 2, user.TgID, db.ProxyTypeISP, db.ProxyStatusExpiringSoon, testNow.Add(-1*time.Hour))
	createTestProxy(t, repo, 3, user.TgID, db.ProxyTypeDatacenter, db.ProxyStatusActive, testNow.Add(30*24*time.Hour))
	createTestProxy(t, repo, 4, user.TgID, db.ProxyTypeISP, db.ProxyStatusCancelled, testNow.Add(-24*time.Hour))

	changed, err := engine.UpdateProxyStatuses(context.Background())
	if err != nil {
		t.Fatalf("UpdateProxyStatuses failed: %v", err)
	}
	if changed != 2 {
		t.Errorf("expected 2 status changes, got %d", changed)
	}

	expected := map[int64]string{
		1: db.ProxyStatusExpiringSoon,
		2: db.ProxyStatusExpired,
		3: db.ProxyStatusActive,
		4: db.ProxyStatusCancelled,
	}
	for id, want := range expected {
		proxy, err := repo.ProxyByID(id)
		if err != nil {
			t.Fatalf("failed to load proxy %d: %v", id, err)
		}
		if proxy.Status != want {
			t.Errorf("proxy %d status = %s, want %s", id, proxy.Status, want)
		}
	}

	// Idempotence: nothing changed, so a second sweep writes nothing.
	changed, err = engine.UpdateProxyStatuses(context.Background())
	if err != nil {
		t.Fatalf("second UpdateProxyStatuses failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("expected 0 changes on repeated sweep, got %d", changed)
	}
}

func TestUpdateProxyStatusesNeverRevertsTerminal(t *testing.T) {
	engine, repo, _, _ := setupTestEngine(t)
	user := createTestUser(t, repo)

	// Renewed proxy whose expiry is long past: the classifier must not
	// touch it.
	createTestProxy(t, repo, 10, user.TgID, db.ProxyTypeResidential, db.ProxyStatusRenewed, testNow.Add(-48*time.Hour))

	if _, err := engine.UpdateProxyStatuses(context.Background()); err != nil {
		t.Fatalf("UpdateProxyStatuses failed: %v", err)
	}

	proxy, err := repo.ProxyByID(10)
	if err != nil {
		t.Fatalf("failed to load proxy: %v", err)
	}
	if proxy.Status != db.ProxyStatusRenewed {
		t.Errorf("terminal status was reverted to %s", proxy.Status)
	}
}
