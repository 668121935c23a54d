package db

import "time"

// Proxy types
const (
	ProxyTypeISP         = "isp"
	ProxyTypeResidential = "residential"
	ProxyTypeDatacenter  = "datacenter"
)

var ProxyTypes = []string{ProxyTypeISP, ProxyTypeResidential, ProxyTypeDatacenter}

// Proxy statuses. Cancelled and renewed are terminal: the classifier never
// overwrites them with a time-derived status.
const (
	ProxyStatusActive       = "active"
	ProxyStatusExpiringSoon = "expiring_soon"
	ProxyStatusExpired      = "expired"
	ProxyStatusRenewed      = "renewed"
	ProxyStatusCancelled    = "cancelled"
)

// Alert types
const (
	AlertType7Days   = "7_days_before"
	AlertType3Days   = "3_days_before"
	AlertType1Day    = "1_day_before"
	AlertTypeExpired = "expired"
	AlertTypeCustom  = "custom"
)

// Alert statuses
const (
	AlertStatusPending      = "pending"
	AlertStatusSent         = "sent"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusDismissed    = "dismissed"
)

// Renewal types
const (
	RenewalTypeAuto    = "auto_renewal"
	RenewalTypeManual  = "manual_renewal"
	RenewalTypeUpgrade = "upgrade"
)

// Renewal statuses
const (
	RenewalStatusPending    = "pending"
	RenewalStatusScheduled  = "scheduled"
	RenewalStatusProcessing = "processing"
	RenewalStatusCompleted  = "completed"
	RenewalStatusFailed     = "failed"
	RenewalStatusCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// User - customers buying proxies through the bot
type User struct {
	TgID      int64 `gorm:"primaryKey"`
	Username  string
	Email     string
	Phone     string
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

type Credentials struct {
	Host     string `gorm:"not null"`
	Port     int    `gorm:"not null"`
	Protocol string `gorm:"default:http;check:cred_protocol IN ('http','https','socks5')"`
	Username string
	Password string
}

type PackageDetails struct {
	Name         string
	DurationDays int
	Price        float64
}

type UsageStats struct {
	TotalRequests int64
	BandwidthGB   float64
	LastUsedAt    *time.Time
	TotalSessions int64
}

type LocationInfo struct {
	Country string
	City    string
	ISP     string
	IP      string
}

type RotationConfig struct {
	Enabled      bool `gorm:"default:false"`
	IntervalSec  int
	LastRotation *time.Time
}

// Proxy - one purchased proxy subscription. ID is the panel-side numeric
// proxy id. Rows are never deleted: expired and cancelled proxies stay for
// audit and analytics.
type Proxy struct {
	ID     int64  `gorm:"primaryKey"`
	UserID int64  `gorm:"index;not null"`
	Type   string `gorm:"index;not null;default:residential;check:type IN ('isp','residential','datacenter')"`

	Credentials Credentials    `gorm:"embedded;embeddedPrefix:cred_"`
	Package     PackageDetails `gorm:"embedded;embeddedPrefix:pkg_"`

	PurchaseDate          time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
	ExpiresAt             time.Time `gorm:"index;not null"`
	RenewalReminderSentAt *time.Time

	Status string `gorm:"index;default:active;check:status IN ('active','expiring_soon','expired','renewed','cancelled')"`

	Stats    UsageStats     `gorm:"embedded;embeddedPrefix:stats_"`
	Location LocationInfo   `gorm:"embedded;embeddedPrefix:loc_"`
	Rotation RotationConfig `gorm:"embedded;embeddedPrefix:rot_"`

	Tags  string
	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	User           User           `gorm:"foreignKey:UserID;references:TgID"`
	RenewalHistory []RenewalEvent `gorm:"foreignKey:ProxyID"`
}

// RenewalEvent - one entry of a proxy's renewal history, append-only
type RenewalEvent struct {
	ID                 uint      `gorm:"primaryKey"`
	ProxyID            int64     `gorm:"index;not null"`
	RenewedAt          time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	PreviousExpiryDate time.Time
	NewExpiryDate      time.Time
	RenewalDuration    int
	RenewalCost        float64
}

// ProxySnapshot - proxy details captured when an alert is created,
// immutable afterwards
type ProxySnapshot struct {
	Type          string
	ExpiresAt     time.Time
	DaysRemaining int
	Price         float64
}

// AlertChannels flags are always written explicitly: a schema default on a
// bool would override a false value on insert.
type AlertChannels struct {
	Email bool
	InApp bool
	SMS   bool
}

// ExpirationAlert - one expiration notice for one proxy at one threshold.
// The unique index on (proxy_id, alert_type) is the dedup key.
type ExpirationAlert struct {
	ID        uint   `gorm:"primaryKey"`
	ProxyID   int64  `gorm:"not null;uniqueIndex:idx_alerts_proxy_type"`
	UserID    int64  `gorm:"index;not null"`
	AlertType string `gorm:"not null;uniqueIndex:idx_alerts_proxy_type;check:alert_type IN ('7_days_before','3_days_before','1_day_before','expired','custom')"`
	Status    string `gorm:"index;default:pending;check:status IN ('pending','sent','acknowledged','dismissed')"`

	ProxyDetails ProxySnapshot `gorm:"embedded;embeddedPrefix:snap_"`
	Channels     AlertChannels `gorm:"embedded;embeddedPrefix:ch_"`

	CreatedAt      time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	SentAt         *time.Time
	AcknowledgedAt *time.Time

	// Relations
	User  User  `gorm:"foreignKey:UserID;references:TgID"`
	Proxy Proxy `gorm:"foreignKey:ProxyID"`
}

// AutoRenewalConfig - per-renewal auto-renewal settings.
// MaxAutoRenewals = 0 means unlimited.
type AutoRenewalConfig struct {
	Enabled          bool `gorm:"default:false"`
	DaysBeforeExpiry int  `gorm:"default:3"`
	RenewalDuration  int
	MaxAutoRenewals  int `gorm:"default:0"`
	TimesAutoRenewed int `gorm:"default:0"`
}

// ProxyRenewal - one renewal request/execution record. Status moves forward
// only: pending/scheduled -> processing -> completed or failed, except a
// retryable failure drops processing back to scheduled until the attempt
// bound is hit.
type ProxyRenewal struct {
	ID          uint   `gorm:"primaryKey"`
	ProxyID     int64  `gorm:"index;not null"`
	UserID      int64  `gorm:"index;not null"`
	RenewalType string `gorm:"default:manual_renewal;check:renewal_type IN ('auto_renewal','manual_renewal','upgrade')"`

	AutoRenewal AutoRenewalConfig `gorm:"embedded;embeddedPrefix:auto_"`

	Status string `gorm:"index;default:pending;check:status IN ('pending','scheduled','processing','completed','failed','cancelled')"`

	Cost          float64 `gorm:"not null"`
	PaymentMethod string
	PaymentStatus string `gorm:"default:pending;check:payment_status IN ('pending','completed','failed')"`

	RequestedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	ScheduledFor *time.Time
	CompletedAt  *time.Time

	Attempt      int `gorm:"default:0"`
	ErrorMessage string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Relations
	User  User  `gorm:"foreignKey:UserID;references:TgID"`
	Proxy Proxy `gorm:"foreignKey:ProxyID"`
}

type TypeCounters struct {
	Total        int
	ExpiringSoon int
	Expired      int
	Renewed      int
}

// ExpirationAnalytics - one rollup per calendar day, upserted by date
type ExpirationAnalytics struct {
	ID   uint      `gorm:"primaryKey"`
	Date time.Time `gorm:"uniqueIndex;not null"`

	ISP         TypeCounters `gorm:"embedded;embeddedPrefix:isp_"`
	Residential TypeCounters `gorm:"embedded;embeddedPrefix:res_"`
	Datacenter  TypeCounters `gorm:"embedded;embeddedPrefix:dc_"`

	TotalActiveProxies   int
	TotalExpiringProxies int
	TotalExpiredProxies  int
	AverageRenewalRate   float64
	RenewalRevenue       float64
	AverageRenewalValue  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminalProxyStatus reports whether a proxy status must never be
// reverted by time-derived reclassification.
func IsTerminalProxyStatus(status string) bool {
	return status == ProxyStatusCancelled || status == ProxyStatusRenewed
}
