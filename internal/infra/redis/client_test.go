package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
)

func TestKeys(t *testing.T) {
	if got := alertKey("val1", "DOWN"); got != "nodewatch:alert:val1:DOWN" {
		t.Errorf("alertKey = %q", got)
	}
	if got := nodeKey("val1"); got != "nodewatch:node:val1" {
		t.Errorf("nodeKey = %q", got)
	}
}

func TestNewClient_BadURL(t *testing.T) {
	if _, err := NewClient(Config{URL: "not-a-url"}); err == nil {
		t.Fatal("expected parse error")
	}
}

// TestClient_Live runs against a real server when NODEWATCH_TEST_REDIS_URL is set.
func TestClient_Live(t *testing.T) {
	url := os.Getenv("NODEWATCH_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NODEWATCH_TEST_REDIS_URL not set")
	}

	c, err := NewClient(Config{URL: url, AlertTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	node := domain.NodeID("test-" + time.Now().Format("150405.000"))
	defer func() {
		_ = c.DeleteNodeAlerts(ctx, node)
		_ = c.rdb.Del(ctx, nodeKey(string(node))).Err()
	}()

	sentAt := time.Now().UTC().Truncate(time.Millisecond)
	key := domain.AlertKey{NodeID: node, Status: domain.StatusStalled}
	if err := c.SaveAlert(ctx, domain.AlertRecord{Key: key, SentAt: sentAt}); err != nil {
		t.Fatalf("SaveAlert: %v", err)
	}

	recs, err := c.LoadAlerts(ctx)
	if err != nil {
		t.Fatalf("LoadAlerts: %v", err)
	}
	found := false
	for _, r := range recs {
		if r.Key == key && r.SentAt.Equal(sentAt) {
			found = true
		}
	}
	if !found {
		t.Errorf("record for %s not loaded", key)
	}

	if err := c.DeleteNodeAlerts(ctx, node); err != nil {
		t.Fatalf("DeleteNodeAlerts: %v", err)
	}

	if _, err := c.GetSnapshot(ctx, node); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	if err := c.SaveSnapshot(ctx, domain.NodeSnapshot{NodeID: node, Status: domain.StatusDown, LastHeight: 7}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	snap, err := c.GetSnapshot(ctx, node)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Status != domain.StatusDown || snap.LastHeight != 7 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}
