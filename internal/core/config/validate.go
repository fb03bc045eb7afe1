package config

import (
	"fmt"
	"net/url"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *AppConfig) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("no nodes configured")
	}

	seen := make(map[string]struct{}, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if n.Moniker == "" {
			return fmt.Errorf("node #%d: moniker is required", i)
		}
		if _, dup := seen[n.Moniker]; dup {
			return fmt.Errorf("node %q: duplicate moniker", n.Moniker)
		}
		seen[n.Moniker] = struct{}{}

		if err := checkURL(n.RPCURL); err != nil {
			return fmt.Errorf("node %q: rpc_url: %w", n.Moniker, err)
		}
		if n.APIURL != "" {
			if err := checkURL(n.APIURL); err != nil {
				return fmt.Errorf("node %q: api_url: %w", n.Moniker, err)
			}
		}
		if n.ValidatorAddress != "" && n.APIURL == "" {
			return fmt.Errorf("node %q: validator_address requires api_url", n.Moniker)
		}

		r := n.Resolve(cfg.Defaults)
		if r.PollInterval <= 0 || r.PollTimeout <= 0 {
			return fmt.Errorf("node %q: poll_interval and poll_timeout must be positive", n.Moniker)
		}
		if r.FailureThreshold < 1 {
			return fmt.Errorf("node %q: failure_threshold must be at least 1", n.Moniker)
		}
		if r.StallThreshold <= 0 {
			return fmt.Errorf("node %q: stall_threshold must be positive", n.Moniker)
		}
	}

	if cfg.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}

	switch cfg.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis.URL == "" {
			return fmt.Errorf("storage backend redis requires redis.url")
		}
	case BackendPostgres:
		if cfg.Database.URL == "" {
			return fmt.Errorf("storage backend postgres requires database.url")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when bot_token is set")
	}
	if cfg.Webhook.URL != "" {
		if err := checkURL(cfg.Webhook.URL); err != nil {
			return fmt.Errorf("webhook.url: %w", err)
		}
	}
	return nil
}

func checkURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
