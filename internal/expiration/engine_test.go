package expiration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"proxy-bot/internal/db"
	"proxy-bot/internal/gates/megapanel"
	"proxy-bot/internal/metrics"
)

// Fixed clock for deterministic sweeps.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakePanel struct {
	mu         sync.Mutex
	renewCalls int
	renewErr   error
	newExpiry  time.Time
	cost       float64

	proxyInfo *megapanel.ProxyInfo
	getErr    error
}

func (f *fakePanel) RenewProxy(ctx context.Context, proxyID int64, durationDays int) (*megapanel.RenewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.renewCalls++
	if f.renewErr != nil {
		return nil, f.renewErr
	}
	return &megapanel.RenewResponse{
		ProxyID:   proxyID,
		NewExpiry: f.newExpiry,
		Cost:      f.cost,
	}, nil
}

func (f *fakePanel) GetProxy(ctx context.Context, proxyID int64) (*megapanel.ProxyInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.proxyInfo != nil {
		return f.proxyInfo, nil
	}
	return nil, errors.New("proxy not found on panel")
}

func (f *fakePanel) RenewCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewCalls
}

type sentMessage struct {
	Channel string
	UserID  int64
	Body    string
}

type fakeNotifier struct {
	mu           sync.Mutex
	sent         []sentMessage
	failChannels map[string]bool
}

func (f *fakeNotifier) Send(ctx context.Context, channel string, user db.User, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failChannels[channel] {
		return errors.New("transport down")
	}
	f.sent = append(f.sent, sentMessage{Channel: channel, UserID: user.TgID, Body: body})
	return nil
}

func (f *fakeNotifier) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func setupTestEngine(t *testing.T) (*Engine, *db.Repository, *fakePanel, *fakeNotifier) {
	t.Helper()

	repo, err := db.NewRepository(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	// A fresh in-memory sqlite database per connection: keep the pool on a
	// single connection so every goroutine sees the same schema and data.
	sqlDB, err := repo.DB().DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := repo.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	panel := &fakePanel{}
	notifier := &fakeNotifier{}
	engine := NewEngine(repo, panel, notifier, metrics.NewSweepMetrics(prometheus.NewRegistry()))
	engine.now = func() time.Time { return testNow }

	return engine, repo, panel, notifier
}

func createTestUser(t *testing.T, repo *db.Repository) db.User {
	t.Helper()

	user := db.User{
		TgID:     900001,
		Username: "testuser",
		Email:    "testuser@example.com",
		Phone:    "+12025550101",
	}
	if err := repo.DB().Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestProxy(t *testing.T, repo *db.Repository, id int64, userID int64, proxyType, status string, expiresAt time.Time) db.Proxy {
	t.Helper()

	proxy := db.Proxy{
		ID:     id,
		UserID: userID,
		Type:   proxyType,
		Credentials: db.Credentials{
			Host:     "proxy.example.net",
			Port:     8000,
			Protocol: "http",
			Username: "u",
			Password: "p",
		},
		Package: db.PackageDetails{
			Name:         "Golden",
			DurationDays: 30,
			Price:        6.0,
		},
		PurchaseDate: testNow.AddDate(0, -1, 0),
		ExpiresAt:    expiresAt,
		Status:       status,
	}
	if err := repo.DB().Create(&proxy).Error; err != nil {
		t.Fatalf("failed to create test proxy %d: %v", id, err)
	}
	return proxy
}
