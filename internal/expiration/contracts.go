package expiration

import (
	"context"

	"proxy-bot/internal/db"
	"proxy-bot/internal/gates/megapanel"
)

// ProvisioningClient is the slice of the panel API the engine needs.
// *megapanel.Client satisfies it.
type ProvisioningClient interface {
	// RenewProxy extends a proxy and returns the new expiry and charged cost
	RenewProxy(ctx context.Context, proxyID int64, durationDays int) (*megapanel.RenewResponse, error)

	// GetProxy returns the panel's current view of a proxy
	GetProxy(ctx context.Context, proxyID int64) (*megapanel.ProxyInfo, error)
}

// Notifier delivers one message to one user over one channel.
// *notify.Service satisfies it.
type Notifier interface {
	Send(ctx context.Context, channel string, user db.User, subject, body string) error
}
