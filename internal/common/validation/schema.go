// Package validation checks hub event payloads against JSON schemas before
// they reach any cache. A malformed push is dropped, never applied.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"leadflow/internal/common/errors"
	"leadflow/internal/models"
)

const leadPayloadSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"address": {"type": "string"},
		"city": {"type": "string"},
		"state": {"type": "string"},
		"zip": {"type": "string"},
		"listingPrice": {"type": "number", "minimum": 0},
		"mao": {"type": "number"},
		"spreadPercent": {"type": "number"},
		"status": {
			"type": "string",
			"enum": ["new", "contacted", "responding", "negotiating", "under_contract", "archived"]
		},
		"followUpDate": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"followUpDue": {"type": "boolean"},
		"leadScore": {"type": "integer", "minimum": 0, "maximum": 10},
		"version": {"type": "integer", "minimum": 0}
	},
	"required": ["id"]
}`

const leadDeletedSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1}
	},
	"required": ["id"]
}`

const messagePayloadSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"leadId": {"type": "string", "minLength": 1},
		"direction": {"type": "string", "enum": ["inbound", "outbound"]},
		"body": {"type": "string"},
		"status": {"type": "string", "enum": ["queued", "sent", "delivered", "failed"]}
	},
	"required": ["id", "leadId"]
}`

var eventSchemas = map[string]*gojsonschema.Schema{}

func init() {
	compile := func(event, raw string) {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid schema for %s: %v", event, err))
		}
		eventSchemas[event] = s
	}

	compile(models.EventLeadCreated, leadPayloadSchema)
	compile(models.EventLeadUpdated, leadPayloadSchema)
	compile(models.EventLeadConsolidated, leadPayloadSchema)
	compile(models.EventLeadDeleted, leadDeletedSchema)
	compile(models.EventMessageReceived, messagePayloadSchema)
	compile(models.EventMessageSent, messagePayloadSchema)
	compile(models.EventMessageStatus, messagePayloadSchema)
}

// ValidateEventPayload checks the raw payload of a named hub event. Unknown
// event names pass through untouched so new server events degrade to no-ops
// on old clients rather than errors.
func ValidateEventPayload(event string, payload []byte) error {
	schema, ok := eventSchemas[event]
	if !ok {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return errors.NewBadEventPayloadError(event, err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.NewBadEventPayloadError(event, strings.Join(msgs, "; "))
	}
	return nil
}
