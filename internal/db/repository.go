package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

// NewRepository opens the store. A postgres:// DSN selects the postgres
// driver, anything else is treated as a sqlite file path.
func NewRepository(dsn string) (*Repository, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate() error {
	return Migrate(r.db)
}

// NonTerminalProxies returns every proxy whose status may still be changed
// by the classifier or the renewal sweep.
func (r *Repository) NonTerminalProxies() ([]Proxy, error) {
	var proxies []Proxy
	err := r.db.
		Where("status IN ?", []string{ProxyStatusActive, ProxyStatusExpiringSoon, ProxyStatusExpired}).
		Find(&proxies).Error
	return proxies, err
}

// ExpiringProxies returns non-terminal proxies whose expiry falls inside
// [from, from+days].
func (r *Repository) ExpiringProxies(from time.Time, days int) ([]Proxy, error) {
	to := from.Add(time.Duration(days) * 24 * time.Hour)

	var proxies []Proxy
	err := r.db.
		Where("expires_at >= ? AND expires_at <= ?", from, to).
		Where("status IN ?", []string{ProxyStatusActive, ProxyStatusExpiringSoon}).
		Find(&proxies).Error
	return proxies, err
}

func (r *Repository) ProxiesByTypeAndStatus(proxyType, status string) ([]Proxy, error) {
	var proxies []Proxy
	err := r.db.Where("type = ? AND status = ?", proxyType, status).Find(&proxies).Error
	return proxies, err
}

func (r *Repository) ProxiesByUser(userID int64) ([]Proxy, error) {
	var proxies []Proxy
	err := r.db.Where("user_id = ?", userID).Order("expires_at").Find(&proxies).Error
	return proxies, err
}

func (r *Repository) ProxyByID(id int64) (*Proxy, error) {
	var proxy Proxy
	if err := r.db.First(&proxy, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &proxy, nil
}

func (r *Repository) UpdateProxyStatus(id int64, status string) error {
	return r.db.Model(&Proxy{}).Where("id = ?", id).Update("status", status).Error
}

// AlertExists checks the (proxy, alertType) dedup key.
func (r *Repository) AlertExists(proxyID int64, alertType string) (bool, error) {
	var count int64
	err := r.db.Model(&ExpirationAlert{}).
		Where("proxy_id = ? AND alert_type = ?", proxyID, alertType).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) PendingAlerts() ([]ExpirationAlert, error) {
	var alerts []ExpirationAlert
	err := r.db.
		Where("status = ?", AlertStatusPending).
		Preload("User").
		Find(&alerts).Error
	return alerts, err
}

func (r *Repository) MarkAlertSent(id uint, sentAt time.Time) error {
	return r.db.Model(&ExpirationAlert{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":  AlertStatusSent,
		"sent_at": sentAt,
	}).Error
}

// OpenAutoRenewals returns auto-renewal records still waiting to run.
func (r *Repository) OpenAutoRenewals() ([]ProxyRenewal, error) {
	var renewals []ProxyRenewal
	err := r.db.
		Where("renewal_type = ? AND auto_enabled = ?", RenewalTypeAuto, true).
		Where("status IN ?", []string{RenewalStatusPending, RenewalStatusScheduled}).
		Find(&renewals).Error
	return renewals, err
}

// ClaimRenewal performs the compare-and-set transition
// pending/scheduled -> processing. Only the caller that observes
// RowsAffected == 1 owns the renewal and may call the provisioning API.
func (r *Repository) ClaimRenewal(id uint) (bool, error) {
	res := r.db.Model(&ProxyRenewal{}).
		Where("id = ? AND status IN ?", id, []string{RenewalStatusPending, RenewalStatusScheduled}).
		Update("status", RenewalStatusProcessing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseStaleRenewals drops renewals abandoned in processing (a crashed
// sweep never finished them) back to scheduled so they can be claimed again.
func (r *Repository) ReleaseStaleRenewals(before time.Time) (int64, error) {
	res := r.db.Model(&ProxyRenewal{}).
		Where("status = ? AND updated_at < ?", RenewalStatusProcessing, before).
		Update("status", RenewalStatusScheduled)
	return res.RowsAffected, res.Error
}

func (r *Repository) RenewalsCompletedBetween(from, to time.Time) ([]ProxyRenewal, error) {
	var renewals []ProxyRenewal
	err := r.db.
		Where("status = ? AND completed_at >= ? AND completed_at < ?", RenewalStatusCompleted, from, to).
		Find(&renewals).Error
	return renewals, err
}

// UpsertAnalytics writes the single snapshot for its date, replacing any
// earlier run of the same day.
func (r *Repository) UpsertAnalytics(snapshot *ExpirationAnalytics) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		UpdateAll: true,
	}).Create(snapshot).Error
}

func (r *Repository) AnalyticsByDate(date time.Time) (*ExpirationAnalytics, error) {
	var snapshot ExpirationAnalytics
	if err := r.db.First(&snapshot, "date = ?", date).Error; err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// AppendRenewalEvent records one renewal in the proxy's append-only history.
func (r *Repository) AppendRenewalEvent(tx *gorm.DB, event *RenewalEvent) error {
	if event.ProxyID == 0 {
		return fmt.Errorf("renewal event without proxy reference")
	}
	return tx.Create(event).Error
}
