// Package worker holds background maintenance jobs.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
)

// Pruner deletes stored state of nodes that are no longer configured once
// it is older than the retention period.
type Pruner struct {
	store      storage.Store
	configured map[domain.NodeID]bool
	retention  time.Duration
	log        *slog.Logger
	now        func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(store storage.Store, nodes []domain.NodeConfig, retention time.Duration, log *slog.Logger) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	configured := make(map[domain.NodeID]bool, len(nodes))
	for _, n := range nodes {
		configured[n.Moniker] = true
	}
	return &Pruner{
		store:      store,
		configured: configured,
		retention:  retention,
		log:        log.With("component", "pruner"),
		now:        time.Now,
	}
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return
	}

	// 10% of the retention period, clamped to [1m, 1h].
	interval := min(p.retention/10, time.Hour)
	interval = max(interval, time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass and returns the number of nodes removed.
func (p *Pruner) Prune(ctx context.Context) int {
	snaps, err := p.store.ListSnapshots(ctx)
	if err != nil {
		p.log.Error("Failed to list snapshots", "error", err)
		return 0
	}

	threshold := p.now().Add(-p.retention)
	removed := 0
	for _, snap := range snaps {
		if p.configured[snap.NodeID] || snap.UpdatedAt.After(threshold) {
			continue
		}
		if err := p.store.DeleteNodeAlerts(ctx, snap.NodeID); err != nil {
			p.log.Error("Failed to prune alerts", "node", snap.NodeID, "error", err)
			continue
		}
		if err := p.store.DeleteSnapshot(ctx, snap.NodeID); err != nil {
			p.log.Error("Failed to prune snapshot", "node", snap.NodeID, "error", err)
			continue
		}
		p.log.Info("Pruned state of removed node", "node", snap.NodeID, "last_update", snap.UpdatedAt)
		removed++
	}
	return removed
}
