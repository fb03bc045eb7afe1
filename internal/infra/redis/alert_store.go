package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

// alertValue is the stored form of an AlertRecord. The key is repeated in
// the value so monikers containing ':' round-trip.
type alertValue struct {
	NodeID string    `json:"node_id"`
	Status string    `json:"status"`
	SentAt time.Time `json:"sent_at"`
}

// LoadAlerts returns every unexpired alert record.
func (c *Client) LoadAlerts(ctx context.Context) ([]domain.AlertRecord, error) {
	keys, err := c.scanKeys(ctx, keyPrefix+":alert:*")
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget alerts failed: %w", err)
	}

	out := make([]domain.AlertRecord, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var av alertValue
		if err := json.Unmarshal([]byte(s), &av); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, domain.AlertRecord{
			Key:    domain.AlertKey{NodeID: domain.NodeID(av.NodeID), Status: domain.Status(av.Status)},
			SentAt: av.SentAt,
		})
	}
	return out, nil
}

// SaveAlert stores the record with the configured TTL.
func (c *Client) SaveAlert(ctx context.Context, rec domain.AlertRecord) error {
	data, err := json.Marshal(alertValue{
		NodeID: string(rec.Key.NodeID),
		Status: string(rec.Key.Status),
		SentAt: rec.SentAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert record: %w", err)
	}

	key := alertKey(string(rec.Key.NodeID), string(rec.Key.Status))
	if err := c.rdb.Set(ctx, key, data, c.alertTTL).Err(); err != nil {
		return fmt.Errorf("failed to set alert record: %w", err)
	}
	return nil
}

// DeleteNodeAlerts removes the records of every status of a node.
func (c *Client) DeleteNodeAlerts(ctx context.Context, node domain.NodeID) error {
	keys := make([]string, 0, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		keys = append(keys, alertKey(string(node), string(s)))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete alert records: %w", err)
	}
	return nil
}
