package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultActor is recorded when a write carries no authenticated actor.
const DefaultActor = "local-user"

// Writer appends to the persisted events table.
type Writer struct {
	Now    func() time.Time
	Rebind func(string) string
}

type EventPayload map[string]any

type actorKey struct{}

// WithActor attaches the acting principal to ctx for the event log.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFromContext returns the actor set by WithActor, or DefaultActor.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	query := `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`
	if w.Rebind != nil {
		query = w.Rebind(query)
	}
	_, err = tx.ExecContext(ctx, query, ts, evtType, entityKind, nullable(entityID), ActorFromContext(ctx), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
