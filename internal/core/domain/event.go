package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const CurrentEventSchemaVersion = 1

type EventType string

const (
	EventCompanyCreated        EventType = "company.created"
	EventCompanyUpdated        EventType = "company.updated"
	EventCompanyDeleted        EventType = "company.deleted"
	EventCorrespondenceCreated EventType = "correspondence.created"
	EventCorrespondenceUpdated EventType = "correspondence.updated"
	EventCorrespondenceDeleted EventType = "correspondence.deleted"
)

// Event is what the application bus carries after a mutation has been applied.
// Exactly one of Company or Correspondence is set.
type Event struct {
	Type           EventType
	Company        *Company
	Correspondence *Correspondence
	Audit          AuditEntry
	// Implicit marks a company created as a side effect of correspondence
	// intake rather than by an explicit user action.
	Implicit bool
}

// EventEnvelope is the wire shape delivered to outbox subscribers.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   int64           `json:"aggregate_id"`
	AuditID       int64           `json:"audit_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Actor         string          `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

const (
	OutboxPending    = "pending"
	OutboxDispatched = "dispatched"
	OutboxDead       = "dead"
)

// EventTypeFor names the event emitted for an audited mutation.
func EventTypeFor(kind EntityKind, action Action) EventType {
	var verb string
	switch action {
	case ActionCreate:
		verb = "created"
	case ActionUpdate:
		verb = "updated"
	case ActionDelete:
		verb = "deleted"
	default:
		verb = strings.ToLower(string(action))
	}
	return EventType(kind.Label() + "." + verb)
}
