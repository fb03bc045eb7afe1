// Package health serves the daemon's own health and the monitored nodes'
// state over HTTP.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

// SystemStatus represents the aggregate state of the monitored fleet.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// NodeHealth is the per-node entry of a report.
type NodeHealth struct {
	NodeID              string       `json:"node_id"`
	Status              string       `json:"status"`
	Health              SystemStatus `json:"health"`
	LastHeight          int64        `json:"last_height"`
	LastIncreaseAt      time.Time    `json:"last_increase_at"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastObservedAt      time.Time    `json:"last_observed_at"`
	ValidatorIssue      bool         `json:"validator_issue"`
	LastError           string       `json:"last_error,omitempty"`
}

// HealthReport contains the full report.
type HealthReport struct {
	SystemStatus SystemStatus          `json:"system_status"`
	StoreError   string                `json:"store_error,omitempty"`
	Nodes        map[string]NodeHealth `json:"nodes"`
}

// SnapshotSource provides the current state of every node.
type SnapshotSource interface {
	Snapshots() []domain.NodeSnapshot
}

// Pinger checks a backing store.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor builds health reports from the live node snapshots.
type Monitor struct {
	source SnapshotSource
	store  Pinger

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport HealthReport
	cacheFor   time.Duration
	now        func() time.Time
}

// NewMonitor creates a health monitor. store may be nil.
func NewMonitor(source SnapshotSource, store Pinger) *Monitor {
	return &Monitor{
		source:   source,
		store:    store,
		cacheFor: 2 * time.Second,
		now:      time.Now,
	}
}

func classify(s domain.Status) SystemStatus {
	switch s {
	case domain.StatusDown:
		return StatusCritical
	case domain.StatusUp:
		return StatusHealthy
	default:
		return StatusDegraded
	}
}

// CheckHealth returns the current report. Results are cached briefly so
// scrapers hammering the endpoint do not ping the store each time.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastCheck.IsZero() && now.Sub(m.lastCheck) < m.cacheFor {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Nodes:        make(map[string]NodeHealth),
	}

	// Worst node wins
	for _, snap := range m.source.Snapshots() {
		h := classify(snap.Status)
		report.Nodes[string(snap.NodeID)] = NodeHealth{
			NodeID:              string(snap.NodeID),
			Status:              string(snap.Status),
			Health:              h,
			LastHeight:          snap.LastHeight,
			LastIncreaseAt:      snap.LastIncreaseAt,
			ConsecutiveFailures: snap.ConsecutiveFailures,
			LastObservedAt:      snap.LastObservedAt,
			ValidatorIssue:      snap.ValidatorIssue,
			LastError:           snap.LastError,
		}
		if h == StatusCritical {
			report.SystemStatus = StatusCritical
		} else if h == StatusDegraded && report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
	}

	if m.store != nil {
		if err := m.store.Health(ctx); err != nil {
			report.StoreError = err.Error()
		}
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}
