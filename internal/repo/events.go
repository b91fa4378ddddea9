package repo

import (
	"context"
	"database/sql"

	"creetonbiz/internal/domain"
)

// ListEvents returns the most recent events, newest first. A zero limit
// means no limit. userID filters when non-empty.
func (r *Repo) ListEvents(ctx context.Context, userID string, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,user_id,entity_kind,entity_id,payload_json FROM events`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		var uid, entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &uid, &e.EntityKind, &entityID, &e.Payload); err != nil {
			return nil, err
		}
		e.UserID = fromNull(uid)
		e.EntityID = fromNull(entityID)
		events = append(events, e)
	}
	return events, rows.Err()
}
