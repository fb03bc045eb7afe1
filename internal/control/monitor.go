// Package control wires polling, health tracking, alert gating and delivery
// into a running daemon.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/nodewatch/internal/alerting/dispatch"
	"github.com/vietddude/nodewatch/internal/alerting/gate"
	"github.com/vietddude/nodewatch/internal/alerting/message"
	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/core/worker"
	corehealth "github.com/vietddude/nodewatch/internal/core/health"
	"github.com/vietddude/nodewatch/internal/infra/notify"
	"github.com/vietddude/nodewatch/internal/infra/storage"
	"github.com/vietddude/nodewatch/internal/monitoring/health"
	"github.com/vietddude/nodewatch/internal/monitoring/metrics"
	"github.com/vietddude/nodewatch/internal/monitoring/release"
	"github.com/vietddude/nodewatch/internal/monitoring/scheduler"
)

const storeTimeout = 3 * time.Second

// Deps are the collaborators of a Monitor.
type Deps struct {
	Nodes    []domain.NodeConfig
	Source   scheduler.StatusSource
	Notifier notify.Notifier
	Store    storage.Store
	Dispatch dispatch.Config
	Release  release.Config
	// Retention of state left by removed nodes; 0 keeps it forever.
	Retention time.Duration
	// Port of the health/metrics server; 0 disables it.
	Port   int
	Logger *slog.Logger
}

// Monitor is the running daemon.
type Monitor struct {
	nodes     []domain.NodeConfig
	nodeByID  map[domain.NodeID]domain.NodeConfig
	trackers  map[domain.NodeID]*corehealth.Tracker
	lastEvent map[domain.NodeID]*eventSlot
	store     storage.Store
	gate      *gate.Gate
	dispatch  *dispatch.Dispatcher
	scheduler *scheduler.Scheduler
	release   *release.Monitor
	pruner    *worker.Pruner
	server    *health.Server
	log       *slog.Logger
	now       func() time.Time

	mu          sync.RWMutex
	snapshots   map[domain.NodeID]domain.NodeSnapshot
	subscribers []func(domain.HealthEvent)

	cancel context.CancelFunc
	done   chan struct{}
}

// eventSlot holds the latest transition of one node. Only that node's
// polling goroutine touches it.
type eventSlot struct {
	ev *domain.HealthEvent
}

// NewMonitor creates a monitor. Nothing runs until Start.
func NewMonitor(deps Deps) (*Monitor, error) {
	if len(deps.Nodes) == 0 {
		return nil, errors.New("no nodes to monitor")
	}
	if deps.Source == nil || deps.Notifier == nil || deps.Store == nil {
		return nil, errors.New("source, notifier and store are required")
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	m := &Monitor{
		nodes:     deps.Nodes,
		nodeByID:  make(map[domain.NodeID]domain.NodeConfig, len(deps.Nodes)),
		trackers:  make(map[domain.NodeID]*corehealth.Tracker, len(deps.Nodes)),
		lastEvent: make(map[domain.NodeID]*eventSlot, len(deps.Nodes)),
		store:     deps.Store,
		scheduler: scheduler.New(deps.Source, log),
		log:       log.With("component", "monitor"),
		now:       time.Now,
		snapshots: make(map[domain.NodeID]domain.NodeSnapshot, len(deps.Nodes)),
	}
	for _, n := range deps.Nodes {
		if _, dup := m.nodeByID[n.Moniker]; dup {
			return nil, fmt.Errorf("duplicate node %q", n.Moniker)
		}
		m.nodeByID[n.Moniker] = n
		m.trackers[n.Moniker] = corehealth.NewTracker(n)
		m.lastEvent[n.Moniker] = &eventSlot{}
	}

	m.gate = gate.New(deps.Store, log)
	m.dispatch = dispatch.New(deps.Dispatch, deps.Notifier, m.gate, log)
	m.pruner = worker.NewPruner(deps.Store, deps.Nodes, deps.Retention, log)

	if deps.Release.Enabled() {
		m.release = release.NewMonitor(deps.Release, m, m.gate, log)
	}
	if deps.Port > 0 {
		var pinger health.Pinger
		if p, ok := deps.Store.(health.Pinger); ok {
			pinger = p
		}
		m.server = health.NewServer(health.NewMonitor(m, pinger), deps.Port)
	}
	return m, nil
}

// Subscribe registers fn to receive every health-change event. fn is called
// from the node's polling goroutine and must not block.
func (m *Monitor) Subscribe(fn func(domain.HealthEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Start restores persisted state and launches every component.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.gate.Load(ctx); err != nil {
		m.log.Warn("Failed to load alert records", "error", err)
	}
	m.restore(ctx)

	m.dispatch.Start()

	if m.server != nil {
		go func() {
			if err := m.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.log.Error("Health server failed", "error", err)
			}
		}()
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	if c, ok := m.store.(interface{ StartMetricsCollector(context.Context) }); ok {
		c.StartMetricsCollector(runCtx)
	}
	if m.release != nil {
		go m.release.Run(runCtx)
	}
	go m.pruner.Start(runCtx)

	go func() {
		defer close(m.done)
		_ = m.scheduler.Run(runCtx, m.nodes, m.handleObservation)
	}()

	m.log.Info("Monitor started", "nodes", len(m.nodes))
	return nil
}

// Stop halts polling, drains pending notifications and closes the store.
func (m *Monitor) Stop(ctx context.Context) error {
	m.log.Info("Stopping monitor...")
	if m.cancel != nil {
		m.cancel()
		select {
		case <-m.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var errs []error
	if err := m.dispatch.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher: %w", err))
	}
	if m.server != nil {
		if err := m.server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
	}
	if err := m.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}

// restore rebuilds trackers from stored snapshots so a restart does not
// re-alert ongoing conditions.
func (m *Monitor) restore(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	snaps, err := m.store.ListSnapshots(ctx)
	if err != nil {
		m.log.Warn("Failed to load node snapshots", "error", err)
		return
	}
	for _, snap := range snaps {
		node, ok := m.nodeByID[snap.NodeID]
		if !ok {
			continue
		}
		m.trackers[snap.NodeID] = corehealth.RestoreTracker(node, snap)
		m.setSnapshot(snap)
		metrics.SetNodeStatus(snap.NodeID, snap.Status)
		m.log.Info("Restored node state", "node", snap.NodeID, "status", snap.Status, "height", snap.LastHeight)
	}
}

// handleObservation is called sequentially per node by the scheduler.
func (m *Monitor) handleObservation(id domain.NodeID, obs domain.Observation) {
	tracker, ok := m.trackers[id]
	if !ok {
		return
	}
	node := m.nodeByID[id]

	res, err := tracker.Apply(obs)
	if err != nil {
		m.log.Warn("Observation rejected", "node", id, "error", err)
		return
	}
	if obs.Failed() {
		m.log.Debug("Poll failed", "node", id, "failures", tracker.State().ConsecutiveFailures, "error", obs.Err)
	}
	metrics.SetNodeStatus(id, res.Status)

	slot := m.lastEvent[id]
	key := domain.AlertKey{NodeID: id, Status: res.Status}

	switch {
	case res.Event != nil:
		ev := *res.Event
		slot.ev = &ev
		metrics.TransitionsTotal.WithLabelValues(string(id), string(ev.Previous), string(ev.Current)).Inc()
		m.log.Info("Node status changed",
			"node", id, "from", ev.Previous, "to", ev.Current, "recovered", ev.Recovered, "details", ev.Details)
		m.publish(ev)

		if ev.Current == domain.StatusUp {
			m.gate.Resolve(id)
		}
		m.Alert(key, true, node.AlertCooldown, message.Transition(ev), obs.ObservedAt)

	case slot.ev != nil && slot.ev.Current == res.Status && m.gate.Pending(key):
		// The transition alert never went out; send it again.
		m.Alert(key, false, node.AlertCooldown, message.Transition(*slot.ev), obs.ObservedAt)

	case res.Status.IsProblem():
		state := tracker.State()
		m.Alert(key, false, node.AlertCooldown,
			message.Reminder(id, res.Status, state.LastTransitionAt, res.Details, obs.ObservedAt), obs.ObservedAt)
	}

	m.persist(tracker.Snapshot(m.now()))
}

// Alert passes key through the gate and queues the text when due.
func (m *Monitor) Alert(key domain.AlertKey, transition bool, cooldown time.Duration, text string, now time.Time) {
	if m.gate.NotifyIfDue(key, transition, cooldown, now) == gate.Suppress {
		metrics.AlertsSuppressed.WithLabelValues(string(key.NodeID), string(key.Status)).Inc()
		return
	}
	if err := m.dispatch.Enqueue(dispatch.Job{Key: key, Text: text, DecidedAt: now}); err != nil {
		m.log.Warn("Alert not queued", "key", key.String(), "error", err)
	}
}

func (m *Monitor) publish(ev domain.HealthEvent) {
	m.mu.RLock()
	subs := m.subscribers
	m.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (m *Monitor) persist(snap domain.NodeSnapshot) {
	m.setSnapshot(snap)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.SaveSnapshot(ctx, snap); err != nil {
		m.log.Warn("Failed to save node snapshot", "node", snap.NodeID, "error", err)
	}
}

func (m *Monitor) setSnapshot(snap domain.NodeSnapshot) {
	m.mu.Lock()
	m.snapshots[snap.NodeID] = snap
	m.mu.Unlock()
}

// Snapshots returns the latest state of every node that has been observed
// or restored, ordered by node.
func (m *Monitor) Snapshots() []domain.NodeSnapshot {
	m.mu.RLock()
	out := make([]domain.NodeSnapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}
