package repo

import (
	"context"
	"strings"

	"skytrack/internal/domain"
)

func (q queries) AppendEvent(ctx context.Context, evt domain.Event) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		evt.TS, evt.Type, evt.EntityKind, evt.EntityID, nullable(evt.ActorID), evt.Payload)
	return storageErr("append event", err)
}

// ListEvents returns the newest events first unless f.AfterID is set.
func (q queries) ListEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != 0 {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.AfterID > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, f.AfterID)
	}
	query := `SELECT id,ts,type,entity_kind,entity_id,COALESCE(actor_id,''),payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if f.AfterID > 0 {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list events", err)
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, storageErr("scan event", err)
		}
		res = append(res, e)
	}
	return res, storageErr("list events", rows.Err())
}
