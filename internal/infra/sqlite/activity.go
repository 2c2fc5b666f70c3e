package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/budgetpool/budgetpool/internal/domain"
)

// ─── Activity Log Operations ────────────────────────────────────────────────
// DB satisfies domain.ActivitySink. The engine only ever writes; reads serve
// the admin review screens.

// Record appends one audit record.
func (d *DB) Record(ctx context.Context, entry domain.ActivityLogEntry) error {
	detailsJSON := ""
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
		detailsJSON = string(b)
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, action, details_json, actor_id, actor_role, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.Action), detailsJSON, entry.Actor.ID, string(entry.Actor.Role),
		entry.Timestamp.Format(time.RFC3339Nano))
	return err
}

// RecentActivity returns the newest audit records first, up to limit.
func (d *DB) RecentActivity(ctx context.Context, limit int) ([]domain.ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, action, details_json, actor_id, actor_role, ts
		FROM activity_logs ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ActivityLogEntry
	for rows.Next() {
		var e domain.ActivityLogEntry
		var action, role, detailsJSON, tsStr string
		if err := rows.Scan(&e.ID, &action, &detailsJSON, &e.Actor.ID, &role, &tsStr); err != nil {
			return nil, err
		}
		e.Action = domain.ActivityAction(action)
		e.Actor.Role = domain.Role(role)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", tsStr, err)
		}
		if detailsJSON != "" {
			if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
