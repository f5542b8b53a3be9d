// Package domain defines the schedule model and storage contract for the
// session progression service.
package domain

import (
	"strings"
	"time"
)

// Template is a reusable multi-day activity plan. It owns its activities;
// deleting a template cascades to them.
type Template struct {
	ID           string
	Name         string
	Description  string
	DurationDays int
	CreatedAt    time.Time
}

// Validate checks template invariants.
func (t Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return NewError(KindValidation, "template name is required")
	}
	if t.DurationDays < 1 {
		return NewError(KindValidation, "template duration must be at least one day")
	}
	return nil
}

// Activity is an immutable planned entry in a template's day-group.
// Per-session completion and timing live in ActivityProgress, never here.
// Position is the insertion sequence within the template and is the stable
// secondary sort key when two activities share a start time.
type Activity struct {
	ID          string
	TemplateID  string
	Day         int
	Position    int
	Name        string
	Description string
	StartTime   TimeOfDay
	DurationMin int
}

// PlannedEnd returns the planned end time derived from start and duration.
func (a Activity) PlannedEnd() TimeOfDay {
	return a.StartTime.AddMinutes(a.DurationMin)
}

// Validate checks activity invariants against the owning template's length.
func (a Activity) Validate(templateDays int) error {
	if strings.TrimSpace(a.Name) == "" {
		return NewError(KindValidation, "activity name is required")
	}
	if a.Day < 1 || a.Day > templateDays {
		return Errorf(KindValidation, "activity day %d is outside the template range 1-%d", a.Day, templateDays)
	}
	if a.DurationMin <= 0 {
		return NewError(KindValidation, "activity duration must be positive")
	}
	if !a.StartTime.Valid() {
		return Errorf(KindValidation, "activity start time %d is not a valid minute of day", int(a.StartTime))
	}
	return nil
}

// Session is one live run of a template with its own progression cursor.
// CurrentActivityID is a weak reference into the template's activities for
// CurrentDay; nil means no activity is in progress.
type Session struct {
	ID                string
	TemplateID        string
	Name              string
	CurrentDay        int
	DayStarted        bool
	CurrentActivityID *string
	StartDate         time.Time
	EndDate           *time.Time
}

// Complete reports whether the session has finished its final day.
func (s Session) Complete() bool {
	return s.EndDate != nil
}

// ActivityProgress records one session's observed history for one
// activity. Rows are keyed (SessionID, ActivityID) so concurrent sessions
// over the same template never interfere.
type ActivityProgress struct {
	SessionID         string
	ActivityID        string
	Completed         bool
	ActualStart       *time.Time
	ActualEnd         *time.Time
	ActualDurationMin *int
}

// UserStatus is a viewer's personal take on an activity, independent of
// the session's objective progress.
type UserStatus string

const (
	UserStatusPending    UserStatus = "pending"
	UserStatusInProgress UserStatus = "in_progress"
	UserStatusCompleted  UserStatus = "completed"
	UserStatusSkipped    UserStatus = "skipped"
)

// Valid reports whether the status is one of the known values.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusPending, UserStatusInProgress, UserStatusCompleted, UserStatusSkipped:
		return true
	}
	return false
}

// ActivityStatus is a per-user status row keyed (UserID, ActivityID).
type ActivityStatus struct {
	UserID     string
	ActivityID string
	Status     UserStatus
	UpdatedAt  time.Time
}
