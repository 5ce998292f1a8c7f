package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	"folio/internal/model"

	"github.com/google/uuid"
)

func (s *Service) appendEvent(ctx context.Context, tx *sql.Tx, typ, entityID string, payload any) error {
	pb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(event_id, workspace_id, type, entity_id, payload_json, created_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), s.workspaceID, typ, entityID, string(pb), s.now().UTC().UnixMilli())
	return err
}

// Events returns the most recent events, oldest first. limit <= 0 returns all of them.
func (s *Service) Events(ctx context.Context, limit int) ([]model.Event, error) {
	q := `SELECT event_id, created_at_unixms, type, entity_id, payload_json
	      FROM events
	      ORDER BY created_at_unixms DESC, rowid DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, q+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Event{}
	for rows.Next() {
		var id, typ, entityID, payloadJSON string
		var tsMs int64
		if err := rows.Scan(&id, &tsMs, &typ, &entityID, &payloadJSON); err != nil {
			return nil, err
		}
		var payload any
		_ = json.Unmarshal([]byte(payloadJSON), &payload)
		out = append(out, model.Event{
			ID:       id,
			TS:       time.UnixMilli(tsMs).UTC(),
			Type:     typ,
			EntityID: entityID,
			Payload:  payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
