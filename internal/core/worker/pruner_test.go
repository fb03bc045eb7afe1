package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
	"github.com/vietddude/nodewatch/internal/infra/storage/memory"
)

func TestPruner_RemovesOnlyStaleUnconfiguredNodes(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	store := memory.NewStorage()

	seed := func(id domain.NodeID, updated time.Time) {
		t.Helper()
		if err := store.SaveSnapshot(ctx, domain.NodeSnapshot{NodeID: id, Status: domain.StatusDown, UpdatedAt: updated}); err != nil {
			t.Fatal(err)
		}
		if err := store.SaveAlert(ctx, domain.AlertRecord{Key: domain.AlertKey{NodeID: id, Status: domain.StatusDown}, SentAt: updated}); err != nil {
			t.Fatal(err)
		}
	}
	seed("kept", now.Add(-30*24*time.Hour)) // configured, old
	seed("recent", now.Add(-time.Hour))     // removed, fresh
	seed("gone", now.Add(-8*24*time.Hour))  // removed, stale

	p := NewPruner(store, []domain.NodeConfig{{Moniker: "kept"}}, 7*24*time.Hour, nil)
	p.now = func() time.Time { return now }

	if n := p.Prune(ctx); n != 1 {
		t.Fatalf("expected 1 node pruned, got %d", n)
	}

	if _, err := store.GetSnapshot(ctx, "gone"); err != storage.ErrSnapshotNotFound {
		t.Errorf("expected gone snapshot deleted, got %v", err)
	}
	for _, id := range []domain.NodeID{"kept", "recent"} {
		if _, err := store.GetSnapshot(ctx, id); err != nil {
			t.Errorf("expected %s to survive: %v", id, err)
		}
	}

	recs, _ := store.LoadAlerts(ctx)
	for _, r := range recs {
		if r.Key.NodeID == "gone" {
			t.Errorf("expected alerts of gone deleted, found %v", r.Key)
		}
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 alert records left, got %d", len(recs))
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	p := NewPruner(memory.NewStorage(), nil, 0, nil)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return when retention is disabled")
	}
}
