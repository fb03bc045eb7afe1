// Package redis stores alert records and node snapshots in Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix       = "nodewatch"
	defaultAlertTTL = 24 * time.Hour
)

// Client wraps the Redis connection shared by the stores.
type Client struct {
	rdb      *redis.Client
	alertTTL time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	AlertTTL time.Duration `yaml:"alert_ttl"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.AlertTTL
	if ttl <= 0 {
		ttl = defaultAlertTTL
	}
	return &Client{rdb: rdb, alertTTL: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func alertKey(node, status string) string {
	return fmt.Sprintf("%s:alert:%s:%s", keyPrefix, node, status)
}

func nodeKey(node string) string {
	return fmt.Sprintf("%s:node:%s", keyPrefix, node)
}

// scanKeys collects every key matching pattern without blocking the server.
func (c *Client) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s failed: %w", pattern, err)
	}
	return keys, nil
}
