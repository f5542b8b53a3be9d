package outbox

// JSON schemas registered for the progression topics. One subject per
// topic; payload variants are discriminated by the event_type header.

const sessionEventsSchema = `{
  "type": "object",
  "title": "SessionEvent",
  "properties": {
    "session_id": {"type": "string"},
    "template_id": {"type": "string"},
    "name": {"type": "string"},
    "day": {"type": "integer"},
    "first_activity_id": {"type": "string"},
    "start_date": {"type": "string", "format": "date-time"},
    "end_date": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["session_id", "template_id"],
  "additionalProperties": false
}`

const activityProgressSchema = `{
  "type": "object",
  "title": "ActivityProgressEvent",
  "properties": {
    "session_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "day": {"type": "integer"},
    "actual_start": {"type": "string", "format": "date-time"},
    "actual_end": {"type": "string", "format": "date-time"},
    "actual_duration_min": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["session_id", "activity_id", "day"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps a schema subject to its definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	"session_events-value":    {Schema: sessionEventsSchema},
	"activity_progress-value": {Schema: activityProgressSchema},
}
