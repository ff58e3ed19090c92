package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	ReleaseCreated      = "release.created"
	ReleaseStatus       = "release.status"
	PhaseSet            = "phase.set"
	ResourceCreated     = "resource.created"
	ResourceStatus      = "resource.status"
	ScopeItemCreated    = "scope_item.created"
	EstimateCreated     = "estimate.created"
	AllocationGenerated = "allocation.generated"
)

// Entity kinds an event can point at.
const (
	KindRelease   = "release"
	KindResource  = "resource"
	KindScopeItem = "scope_item"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction so it commits or rolls back with the change.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
