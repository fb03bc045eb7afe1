// Package scheduler polls every configured node on its own interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/rpc"
	"github.com/vietddude/nodewatch/internal/monitoring/metrics"
)

// StatusSource fetches the current status of one node.
type StatusSource interface {
	GetStatus(ctx context.Context, node domain.NodeConfig) (*domain.NodeStatus, error)
}

// ObservationFunc receives each observation. It is called from the node's
// own goroutine, so calls for one node never overlap.
type ObservationFunc func(id domain.NodeID, obs domain.Observation)

// ErrPanic wraps a panic raised while polling.
var ErrPanic = errors.New("poll panicked")

// Scheduler runs one polling loop per node.
type Scheduler struct {
	source StatusSource
	log    *slog.Logger
	now    func() time.Time
}

// New creates a scheduler.
func New(source StatusSource, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		source: source,
		log:    log.With("component", "scheduler"),
		now:    time.Now,
	}
}

// Run polls every node until ctx is cancelled and returns once all loops
// have exited.
func (s *Scheduler) Run(ctx context.Context, nodes []domain.NodeConfig, onObservation ObservationFunc) error {
	var g errgroup.Group
	for _, node := range nodes {
		g.Go(func() error {
			s.loop(ctx, node, onObservation)
			return nil
		})
	}
	s.log.Info("Scheduler started", "nodes", len(nodes))
	err := g.Wait()
	s.log.Info("Scheduler stopped")
	return err
}

// loop polls immediately, then on every tick. A poll slower than the
// interval causes ticks to be dropped, never queued.
func (s *Scheduler) loop(ctx context.Context, node domain.NodeConfig, onObservation ObservationFunc) {
	ticker := time.NewTicker(node.PollInterval)
	defer ticker.Stop()

	for {
		obs := s.PollOnce(ctx, node)
		if ctx.Err() != nil {
			return
		}
		onObservation(node.Moniker, obs)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PollOnce performs exactly one bounded poll and never returns an error:
// failures are carried in the observation.
func (s *Scheduler) PollOnce(ctx context.Context, node domain.NodeConfig) (obs domain.Observation) {
	observedAt := s.now()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Poll panicked", "node", node.Moniker, "panic", r)
			obs = domain.NewFailedObservation(node.Moniker, observedAt, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		s.record(node.Moniker, obs, time.Since(start))
	}()

	pollCtx, cancel := context.WithTimeout(ctx, node.PollTimeout)
	defer cancel()

	status, err := s.source.GetStatus(pollCtx, node)
	if err != nil {
		s.log.Debug("Poll failed", "node", node.Moniker, "error", err)
		return domain.NewFailedObservation(node.Moniker, observedAt, err)
	}

	return domain.NewObservation(node.Moniker, observedAt, status.Height, status.CatchingUp, status.Validator)
}

func (s *Scheduler) record(id domain.NodeID, obs domain.Observation, latency time.Duration) {
	node := string(id)
	metrics.PollLatency.WithLabelValues(node).Observe(latency.Seconds())

	result := "ok"
	if obs.Failed() {
		result = "error"
		if kind := rpc.KindOf(obs.Err); kind != "" {
			result = string(kind)
		} else if errors.Is(obs.Err, context.DeadlineExceeded) {
			result = string(rpc.KindTimeout)
		}
	} else if obs.Height != nil {
		metrics.NodeHeight.WithLabelValues(node).Set(float64(*obs.Height))
	}
	metrics.PollsTotal.WithLabelValues(node, result).Inc()
}
