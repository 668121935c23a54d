package db

import (
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&Proxy{},
		&RenewalEvent{},
		&ExpirationAlert{},
		&ProxyRenewal{},
		&ExpirationAnalytics{},
	)
	if err != nil {
		return err
	}

	return ensureAlertDedupIndex(db)
}

// ensureAlertDedupIndex double-checks the (proxy_id, alert_type) unique
// index on databases migrated before the dedup key existed. AutoMigrate
// creates it on fresh schemas.
func ensureAlertDedupIndex(db *gorm.DB) error {
	migrator := db.Migrator()
	if migrator.HasIndex(&ExpirationAlert{}, "idx_alerts_proxy_type") {
		return nil
	}
	return migrator.CreateIndex(&ExpirationAlert{}, "idx_alerts_proxy_type")
}
