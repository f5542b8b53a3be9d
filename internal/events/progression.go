// Package events defines the payloads published for session progression.
package events

import "time"

// Event type identifiers recorded in the outbox and stamped on Kafka
// message headers.
const (
	TypeSessionStarted    = "session.started"
	TypeSessionDayStarted = "session.day_started"
	TypeSessionCompleted  = "session.completed"
	TypeActivityCompleted = "activity.completed"
	TypeActivityReopened  = "activity.reopened"
)

// SessionStarted is emitted when a new session is created from a template.
type SessionStarted struct {
	SessionID  string    `json:"session_id"`
	TemplateID string    `json:"template_id"`
	Name       string    `json:"name"`
	StartDate  time.Time `json:"start_date"`
}

// SessionDayStarted is emitted when a session's day begins.
type SessionDayStarted struct {
	SessionID       string    `json:"session_id"`
	TemplateID      string    `json:"template_id"`
	Day             int       `json:"day"`
	FirstActivityID string    `json:"first_activity_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// SessionCompleted is emitted when a session advances past its final day.
type SessionCompleted struct {
	SessionID  string    `json:"session_id"`
	TemplateID string    `json:"template_id"`
	EndDate    time.Time `json:"end_date"`
}

// ActivityCompleted is emitted when the progression cursor moves off an
// activity, whether by advance, skip, or end-of-day close-out.
type ActivityCompleted struct {
	SessionID         string    `json:"session_id"`
	ActivityID        string    `json:"activity_id"`
	Day               int       `json:"day"`
	ActualStart       time.Time `json:"actual_start"`
	ActualEnd         time.Time `json:"actual_end"`
	ActualDurationMin int       `json:"actual_duration_min"`
}

// ActivityReopened is emitted when an undo reverts a completed activity
// back to in-progress.
type ActivityReopened struct {
	SessionID  string    `json:"session_id"`
	ActivityID string    `json:"activity_id"`
	Day        int       `json:"day"`
	OccurredAt time.Time `json:"occurred_at"`
}
