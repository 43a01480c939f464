package models

import "encoding/json"

// Hub event names. The leads hub and the messaging hub each carry their own
// subset; consumers subscribe by name.
const (
	EventLeadCreated      = "lead:created"
	EventLeadUpdated      = "lead:updated"
	EventLeadDeleted      = "lead:deleted"
	EventLeadConsolidated = "lead:consolidated"

	EventMessageReceived = "message:received"
	EventMessageSent     = "message:sent"
	EventMessageStatus   = "message:status"
)

// EventEnvelope is the wire frame every hub message travels in.
type EventEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// LeadDeletedPayload is the payload of a lead:deleted event.
type LeadDeletedPayload struct {
	ID string `json:"id"`
}
