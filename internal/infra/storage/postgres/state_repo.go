package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
	"github.com/vietddude/nodewatch/internal/infra/storage"
)

var _ storage.Store = (*DB)(nil)

type snapshotRow struct {
	NodeID              string       `db:"node_id"`
	Status              string       `db:"status"`
	Condition           string       `db:"condition"`
	LastHeight          int64        `db:"last_height"`
	LastIncreaseAt      sql.NullTime `db:"last_increase_at"`
	ConsecutiveFailures int          `db:"consecutive_failures"`
	LastTransitionAt    sql.NullTime `db:"last_transition_at"`
	LastObservedAt      sql.NullTime `db:"last_observed_at"`
	ValidatorIssue      bool         `db:"validator_issue"`
	LastError           string       `db:"last_error"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

const snapshotColumns = `node_id, status, condition, last_height, last_increase_at,
	consecutive_failures, last_transition_at, last_observed_at, validator_issue,
	last_error, updated_at`

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func toSnapshotRow(s domain.NodeSnapshot) snapshotRow {
	return snapshotRow{
		NodeID:              string(s.NodeID),
		Status:              string(s.Status),
		Condition:           string(s.Condition),
		LastHeight:          s.LastHeight,
		LastIncreaseAt:      nullTime(s.LastIncreaseAt),
		ConsecutiveFailures: s.ConsecutiveFailures,
		LastTransitionAt:    nullTime(s.LastTransitionAt),
		LastObservedAt:      nullTime(s.LastObservedAt),
		ValidatorIssue:      s.ValidatorIssue,
		LastError:           s.LastError,
		UpdatedAt:           s.UpdatedAt,
	}
}

func (r snapshotRow) toDomain() domain.NodeSnapshot {
	return domain.NodeSnapshot{
		NodeID:              domain.NodeID(r.NodeID),
		Status:              domain.Status(r.Status),
		Condition:           domain.Status(r.Condition),
		LastHeight:          r.LastHeight,
		LastIncreaseAt:      r.LastIncreaseAt.Time,
		ConsecutiveFailures: r.ConsecutiveFailures,
		LastTransitionAt:    r.LastTransitionAt.Time,
		LastObservedAt:      r.LastObservedAt.Time,
		ValidatorIssue:      r.ValidatorIssue,
		LastError:           r.LastError,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (db *DB) SaveSnapshot(ctx context.Context, snap domain.NodeSnapshot) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO node_snapshots (`+snapshotColumns+`)
		VALUES (:node_id, :status, :condition, :last_height, :last_increase_at,
			:consecutive_failures, :last_transition_at, :last_observed_at,
			:validator_issue, :last_error, :updated_at)
		ON CONFLICT (node_id) DO UPDATE SET
			status = excluded.status,
			condition = excluded.condition,
			last_height = excluded.last_height,
			last_increase_at = excluded.last_increase_at,
			consecutive_failures = excluded.consecutive_failures,
			last_transition_at = excluded.last_transition_at,
			last_observed_at = excluded.last_observed_at,
			validator_issue = excluded.validator_issue,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		toSnapshotRow(snap))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (db *DB) GetSnapshot(ctx context.Context, node domain.NodeID) (*domain.NodeSnapshot, error) {
	var row snapshotRow
	err := db.GetContext(ctx, &row,
		`SELECT `+snapshotColumns+` FROM node_snapshots WHERE node_id = $1`, string(node))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	snap := row.toDomain()
	return &snap, nil
}

func (db *DB) ListSnapshots(ctx context.Context) ([]domain.NodeSnapshot, error) {
	var rows []snapshotRow
	if err := db.SelectContext(ctx, &rows,
		`SELECT `+snapshotColumns+` FROM node_snapshots ORDER BY node_id`); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	out := make([]domain.NodeSnapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (db *DB) DeleteSnapshot(ctx context.Context, node domain.NodeID) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM node_snapshots WHERE node_id = $1`, string(node)); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}
