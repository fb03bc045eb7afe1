package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/nodewatch/internal/core/domain"
)

type alertRow struct {
	NodeID string    `db:"node_id"`
	Status string    `db:"status"`
	SentAt time.Time `db:"sent_at"`
}

// LoadAlerts returns every stored alert record.
func (db *DB) LoadAlerts(ctx context.Context) ([]domain.AlertRecord, error) {
	var rows []alertRow
	if err := db.SelectContext(ctx, &rows, `SELECT node_id, status, sent_at FROM alert_records`); err != nil {
		return nil, fmt.Errorf("failed to load alert records: %w", err)
	}

	out := make([]domain.AlertRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AlertRecord{
			Key:    domain.AlertKey{NodeID: domain.NodeID(r.NodeID), Status: domain.Status(r.Status)},
			SentAt: r.SentAt,
		})
	}
	return out, nil
}

func (db *DB) SaveAlert(ctx context.Context, rec domain.AlertRecord) error {
	_, err := db.NamedExecContext(ctx, `
		INSERT INTO alert_records (node_id, status, sent_at)
		VALUES (:node_id, :status, :sent_at)
		ON CONFLICT (node_id, status) DO UPDATE SET
			sent_at = excluded.sent_at`,
		alertRow{NodeID: string(rec.Key.NodeID), Status: string(rec.Key.Status), SentAt: rec.SentAt})
	if err != nil {
		return fmt.Errorf("failed to save alert record: %w", err)
	}
	return nil
}

func (db *DB) DeleteNodeAlerts(ctx context.Context, node domain.NodeID) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM alert_records WHERE node_id = $1`, string(node)); err != nil {
		return fmt.Errorf("failed to delete alert records: %w", err)
	}
	return nil
}
