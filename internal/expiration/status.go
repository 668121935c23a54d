package expiration

import (
	"context"
	"fmt"
	"log/slog"
)

// UpdateProxyStatuses reclassifies every non-terminal proxy against the
// current time. Unchanged statuses are left alone, so re-running the sweep
// on unchanged inputs writes nothing. Returns the number of proxies whose
// status changed.
func (e *Engine) UpdateProxyStatuses(ctx context.Context) (int, error) {
	start := e.now()
	defer e.observeSweep(sweepStatus, start)

	proxies, err := e.repo.NonTerminalProxies()
	if err != nil {
		return 0, fmt.Errorf("list non-terminal proxies: %w", err)
	}

	changed := 0
	for i := range proxies {
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		p := &proxies[i]
		next := ClassifyStatus(p.ExpiresAt, p.Status, start)
		if next == p.Status {
			continue
		}

		if err := e.repo.UpdateProxyStatus(p.ID, next); err != nil {
			slog.Error("Failed to update proxy status", "proxy_id", p.ID, "status", next, "error", err)
			continue
		}

		e.metrics.StatusTransitionsTotal.WithLabelValues(next).Inc()
		changed++
	}

	slog.Info("Proxy status sweep completed", "scanned", len(proxies), "changed", changed)
	return changed, nil
}
