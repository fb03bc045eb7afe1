package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
)

var _ storage.Store = (*Client)(nil)

// SaveSnapshot stores the snapshot as JSON without expiry.
func (c *Client) SaveSnapshot(ctx context.Context, snap domain.NodeSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, nodeKey(string(snap.NodeID)), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}
	return nil
}

func (c *Client) GetSnapshot(ctx context.Context, node domain.NodeID) (*domain.NodeSnapshot, error) {
	val, err := c.rdb.Get(ctx, nodeKey(string(node))).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot failed: %w", err)
	}

	var snap domain.NodeSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (c *Client) ListSnapshots(ctx context.Context) ([]domain.NodeSnapshot, error) {
	keys, err := c.scanKeys(ctx, keyPrefix+":node:*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget snapshots failed: %w", err)
	}

	out := make([]domain.NodeSnapshot, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var snap domain.NodeSnapshot
		if err := json.Unmarshal([]byte(s), &snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (c *Client) DeleteSnapshot(ctx context.Context, node domain.NodeID) error {
	if err := c.rdb.Del(ctx, nodeKey(string(node))).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
