package outbox

import "example.com/mergington/internal/events"

const participantAddedSchema = `{
  "type": "object",
  "title": "ParticipantAdded",
  "properties": {
    "event_id": {"type": "string"},
    "activity_name": {"type": "string"},
    "email": {"type": "string"},
    "participant_count": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity_name", "email", "participant_count", "occurred_at"],
  "additionalProperties": false
}`

const participantRemovedSchema = `{
  "type": "object",
  "title": "ParticipantRemoved",
  "properties": {
    "event_id": {"type": "string"},
    "activity_name": {"type": "string"},
    "email": {"type": "string"},
    "participant_count": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity_name", "email", "participant_count", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeParticipantAdded:   {Schema: participantAddedSchema},
	events.TypeParticipantRemoved: {Schema: participantRemovedSchema},
}
