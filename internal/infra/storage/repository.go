package storage

import (
	"context"
	"errors"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

var (
	// ErrSnapshotNotFound is returned when a node has no persisted state.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// AlertStore persists the last-sent time of each alert key so throttling
// survives a restart.
type AlertStore interface {
	// LoadAlerts returns every stored record.
	LoadAlerts(ctx context.Context) ([]domain.AlertRecord, error)

	// SaveAlert upserts the record for rec.Key.
	SaveAlert(ctx context.Context, rec domain.AlertRecord) error

	// DeleteNodeAlerts removes every record of a node.
	DeleteNodeAlerts(ctx context.Context, node domain.NodeID) error
}

// StateStore persists node health snapshots.
type StateStore interface {
	// SaveSnapshot upserts the snapshot of snap.NodeID.
	SaveSnapshot(ctx context.Context, snap domain.NodeSnapshot) error

	// GetSnapshot returns ErrSnapshotNotFound when the node is unknown.
	GetSnapshot(ctx context.Context, node domain.NodeID) (*domain.NodeSnapshot, error)

	// ListSnapshots returns every stored snapshot ordered by node.
	ListSnapshots(ctx context.Context) ([]domain.NodeSnapshot, error)

	// DeleteSnapshot removes the snapshot of a node. Deleting an unknown
	// node is not an error.
	DeleteSnapshot(ctx context.Context, node domain.NodeID) error
}

// Store bundles both stores of one backend.
type Store interface {
	AlertStore
	StateStore
	Close() error
}
