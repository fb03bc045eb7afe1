package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/nodewatch/internal/core/config"
	"github.com/vietddude/nodewatch/internal/infra/notify"
	redisclient "github.com/vietddude/nodewatch/internal/infra/redis"
	"github.com/vietddude/nodewatch/internal/infra/rpc"
	"github.com/vietddude/nodewatch/internal/infra/storage"
	"github.com/vietddude/nodewatch/internal/infra/storage/memory"
	"github.com/vietddude/nodewatch/internal/infra/storage/postgres"
)

// OpenStore connects the storage backend selected in cfg.
func OpenStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		c, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis storage")
		return c, nil
	case config.BackendPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		slog.Info("Using PostgreSQL storage", "driver", cfg.Database.Driver)
		return db, nil
	default:
		slog.Info("Using Memory storage")
		return memory.NewStorage(), nil
	}
}

// BuildNotifier returns the notifier for the configured channels.
func BuildNotifier(cfg *config.AppConfig) notify.Notifier {
	return notify.Build(cfg.Telegram, cfg.Webhook, notify.NewLogNotifier(slog.Default()))
}

// NewStatusClient returns an RPC client whose transport timeout covers the
// slowest configured node.
func NewStatusClient(cfg *config.AppConfig) *rpc.Client {
	timeout := 5 * time.Second
	for _, n := range cfg.ResolvedNodes() {
		if n.PollTimeout > timeout {
			timeout = n.PollTimeout
		}
	}
	return rpc.NewClient(timeout)
}

// NewFromConfig builds a Monitor with production dependencies.
func NewFromConfig(ctx context.Context, cfg *config.AppConfig) (*Monitor, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m, err := NewMonitor(Deps{
		Nodes:     cfg.ResolvedNodes(),
		Source:    NewStatusClient(cfg),
		Notifier:  BuildNotifier(cfg),
		Store:     store,
		Dispatch:  cfg.Dispatch,
		Release:   cfg.GitHub,
		Retention: cfg.Storage.Retention,
		Port:      cfg.Server.Port,
		Logger:    slog.Default(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return m, nil
}
