package expiration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proxy-bot/internal/db"
)

// GenerateExpirationAnalytics rolls the current proxy population and the
// day's completed renewals into the single snapshot for today's date. The
// upsert is keyed by date, so re-running the sweep replaces the snapshot
// with fresher numbers instead of adding a second row.
func (e *Engine) GenerateExpirationAnalytics(ctx context.Context) error {
	start := e.now()
	defer e.observeSweep(sweepAnalytics, start)

	if err := ctx.Err(); err != nil {
		return err
	}

	day := start.UTC().Truncate(24 * time.Hour)

	var proxies []db.Proxy
	if err := e.repo.DB().Find(&proxies).Error; err != nil {
		return fmt.Errorf("list proxies: %w", err)
	}

	snapshot := db.ExpirationAnalytics{Date: day}

	byType := map[string]*db.TypeCounters{
		db.ProxyTypeISP:         &snapshot.ISP,
		db.ProxyTypeResidential: &snapshot.Residential,
		db.ProxyTypeDatacenter:  &snapshot.Datacenter,
	}

	for i := range proxies {
		p := &proxies[i]
		counters, ok := byType[p.Type]
		if !ok {
			continue
		}

		counters.Total++
		switch p.Status {
		case db.ProxyStatusActive:
			snapshot.TotalActiveProxies++
		case db.ProxyStatusExpiringSoon:
			counters.ExpiringSoon++
			snapshot.TotalExpiringProxies++
		case db.ProxyStatusExpired:
			counters.Expired++
			snapshot.TotalExpiredProxies++
		case db.ProxyStatusRenewed:
			counters.Renewed++
		}
	}

	snapshot.AverageRenewalRate = averageRenewalRate(
		&snapshot.ISP,
		&snapshot.Residential,
		&snapshot.Datacenter,
	)

	renewals, err := e.repo.RenewalsCompletedBetween(day, day.Add(24*time.Hour))
	if err != nil {
		return fmt.Errorf("list today's completed renewals: %w", err)
	}
	for i := range renewals {
		snapshot.RenewalRevenue += renewals[i].Cost
	}
	if len(renewals) > 0 {
		snapshot.AverageRenewalValue = snapshot.RenewalRevenue / float64(len(renewals))
	}

	if err := e.repo.UpsertAnalytics(&snapshot); err != nil {
		return fmt.Errorf("upsert analytics snapshot: %w", err)
	}

	slog.Info("Analytics sweep completed",
		"date", day.Format("2006-01-02"),
		"proxies", len(proxies),
		"renewals_today", len(renewals),
		"revenue", snapshot.RenewalRevenue,
	)
	return nil
}

// averageRenewalRate averages renewed/(renewed+expired) across the types
// that have any renewal or expiry at all; 0 when none do.
func averageRenewalRate(types ...*db.TypeCounters) float64 {
	var sum float64
	counted := 0

	for _, t := range types {
		denominator := t.Renewed + t.Expired
		if denominator == 0 {
			continue
		}
		sum += float64(t.Renewed) / float64(denominator) * 100
		counted++
	}

	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}
