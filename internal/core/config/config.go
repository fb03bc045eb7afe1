package config

import (
	"time"

	"github.com/vietddude/nodewatch/internal/alerting/dispatch"
	"github.com/vietddude/nodewatch/internal/core/domain"
	redisclient "github.com/vietddude/nodewatch/internal/infra/redis"
	"github.com/vietddude/nodewatch/internal/infra/notify"
	"github.com/vietddude/nodewatch/internal/infra/storage/postgres"
	"github.com/vietddude/nodewatch/internal/monitoring/release"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig          `yaml:"server"`
	Logging  LoggingConfig         `yaml:"logging"`
	Defaults NodeDefaults          `yaml:"defaults"`
	Nodes    []NodeConfig          `yaml:"nodes"`
	Telegram notify.TelegramConfig `yaml:"telegram"`
	Webhook  notify.WebhookConfig  `yaml:"webhook"`
	Dispatch dispatch.Config       `yaml:"dispatch"`
	Storage  StorageConfig         `yaml:"storage"`
	Redis    redisclient.Config    `yaml:"redis"`
	Database postgres.Config       `yaml:"database"`
	GitHub   release.Config        `yaml:"github"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// StorageConfig selects where alert records and node snapshots live.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Retention is how long state of nodes removed from the config is
	// kept before the pruner deletes it. Zero disables pruning.
	Retention time.Duration `yaml:"retention"`
}

// NodeDefaults apply to every node that does not override them.
type NodeDefaults struct {
	PollInterval          time.Duration `yaml:"poll_interval"`
	PollTimeout           time.Duration `yaml:"poll_timeout"`
	StallThreshold        time.Duration `yaml:"stall_threshold"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	AlertCooldown         time.Duration `yaml:"alert_cooldown"`
	MissedBlocksThreshold int64         `yaml:"missed_blocks_threshold"`
}

// NodeConfig holds settings for a monitored node. Zero values fall back to
// NodeDefaults.
type NodeConfig struct {
	Moniker          string `yaml:"moniker"`
	RPCURL           string `yaml:"rpc_url"`
	APIURL           string `yaml:"api_url"`
	ValidatorAddress string `yaml:"validator_address"`

	PollInterval          time.Duration `yaml:"poll_interval"`
	PollTimeout           time.Duration `yaml:"poll_timeout"`
	StallThreshold        time.Duration `yaml:"stall_threshold"`
	FailureThreshold      int           `yaml:"failure_threshold"`
	AlertCooldown         time.Duration `yaml:"alert_cooldown"`
	MissedBlocksThreshold int64         `yaml:"missed_blocks_threshold"`
}

// Resolve merges the node settings with defaults into the domain form.
func (n NodeConfig) Resolve(d NodeDefaults) domain.NodeConfig {
	out := domain.NodeConfig{
		Moniker:               domain.NodeID(n.Moniker),
		RPCURL:                n.RPCURL,
		APIURL:                n.APIURL,
		ValidatorAddress:      n.ValidatorAddress,
		PollInterval:          n.PollInterval,
		PollTimeout:           n.PollTimeout,
		StallThreshold:        n.StallThreshold,
		FailureThreshold:      n.FailureThreshold,
		AlertCooldown:         n.AlertCooldown,
		MissedBlocksThreshold: n.MissedBlocksThreshold,
	}
	if out.PollInterval == 0 {
		out.PollInterval = d.PollInterval
	}
	if out.PollTimeout == 0 {
		out.PollTimeout = d.PollTimeout
	}
	if out.StallThreshold == 0 {
		out.StallThreshold = d.StallThreshold
	}
	if out.FailureThreshold == 0 {
		out.FailureThreshold = d.FailureThreshold
	}
	if out.AlertCooldown == 0 {
		out.AlertCooldown = d.AlertCooldown
	}
	if out.MissedBlocksThreshold == 0 {
		out.MissedBlocksThreshold = d.MissedBlocksThreshold
	}
	return out
}

// ResolvedNodes returns every configured node with defaults applied.
func (c *AppConfig) ResolvedNodes() []domain.NodeConfig {
	nodes := make([]domain.NodeConfig, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		nodes = append(nodes, n.Resolve(c.Defaults))
	}
	return nodes
}
