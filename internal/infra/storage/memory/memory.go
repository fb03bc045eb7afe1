// Package memory keeps alert records and snapshots in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
)

var _ storage.Store = (*Storage)(nil)

type Storage struct {
	alerts    map[domain.AlertKey]domain.AlertRecord
	snapshots map[domain.NodeID]domain.NodeSnapshot
	mu        sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		alerts:    make(map[domain.AlertKey]domain.AlertRecord),
		snapshots: make(map[domain.NodeID]domain.NodeSnapshot),
	}
}

// -----------------------------------------------------------------------------
// Alert records
// -----------------------------------------------------------------------------

func (s *Storage) LoadAlerts(ctx context.Context) ([]domain.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AlertRecord, 0, len(s.alerts))
	for _, rec := range s.alerts {
		out = append(out, rec)
	}
	return out, nil
}

func (s *Storage) SaveAlert(ctx context.Context, rec domain.AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[rec.Key] = rec
	return nil
}

func (s *Storage) DeleteNodeAlerts(ctx context.Context, node domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.alerts {
		if k.NodeID == node {
			delete(s.alerts, k)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

func (s *Storage) SaveSnapshot(ctx context.Context, snap domain.NodeSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.NodeID] = snap
	return nil
}

func (s *Storage) GetSnapshot(ctx context.Context, node domain.NodeID) (*domain.NodeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[node]
	if !ok {
		return nil, storage.ErrSnapshotNotFound
	}
	return &snap, nil
}

func (s *Storage) ListSnapshots(ctx context.Context) ([]domain.NodeSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NodeSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

func (s *Storage) DeleteSnapshot(ctx context.Context, node domain.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, node)
	return nil
}

func (s *Storage) Close() error { return nil }
