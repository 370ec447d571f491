package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"skytrack/internal/domain"
)

const (
	FlightCreated      = "flight.created"
	FlightUpdated      = "flight.updated"
	FlightDeleted      = "flight.deleted"
	PlaneCreated       = "plane.created"
	PlaneUpdated       = "plane.updated"
	PlaneStatusChanged = "plane.status_changed"
	CrewCreated        = "crew.created"
	CrewUpdated        = "crew.updated"
	CrewDeleted        = "crew.deleted"
	CrewAssigned       = "crew.assigned"
	CrewUnassigned     = "crew.unassigned"
)

// Appender is the slice of a repo gateway the writer needs.
type Appender interface {
	AppendEvent(ctx context.Context, evt domain.Event) error
}

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event through dst, which is normally the gateway of the
// transaction performing the change.
func (w Writer) Append(ctx context.Context, dst Appender, evtType, entityKind string, entityID int64, actorID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return dst.AppendEvent(ctx, domain.Event{
		TS:         now().UTC().Format(time.RFC3339),
		Type:       evtType,
		EntityKind: entityKind,
		EntityID:   entityID,
		ActorID:    actorID,
		Payload:    string(data),
	})
}
