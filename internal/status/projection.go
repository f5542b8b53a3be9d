// Package status assembles presentation view models from the engine's
// objective session state and a viewer's personal status overrides.
package status

import (
	"time"

	"example.com/ontrak/internal/domain"
	"example.com/ontrak/internal/progression"
)

// ActivityView merges an activity definition with the session's recorded
// progress and, when a viewer is known, their personal status.
type ActivityView struct {
	ActivityID        string     `json:"activity_id"`
	Day               int        `json:"day"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	StartTime         string     `json:"start_time"`
	PlannedEnd        string     `json:"planned_end"`
	DurationMin       int        `json:"duration_min"`
	Completed         bool       `json:"completed"`
	ActualStart       *time.Time `json:"actual_start,omitempty"`
	ActualEnd         *time.Time `json:"actual_end,omitempty"`
	ActualDurationMin *int       `json:"actual_duration_min,omitempty"`
	UserStatus        string     `json:"user_status,omitempty"`
}

// SessionStatusView is the full status projection returned to clients.
type SessionStatusView struct {
	SessionID       string         `json:"session_id"`
	TemplateID      string         `json:"template_id"`
	Name            string         `json:"name"`
	CurrentDay      int            `json:"current_day"`
	DayStarted      bool           `json:"day_started"`
	SessionComplete bool           `json:"session_complete"`
	Current         *ActivityView  `json:"current_activity"`
	Next            *ActivityView  `json:"next_activity"`
	DayActivities   []ActivityView `json:"day_activities"`
	IsLastActivity  bool           `json:"is_last_activity"`
}

// BuildActivity projects one activity. progress and personal may be absent.
func BuildActivity(activity domain.Activity, progress *domain.ActivityProgress, personal domain.UserStatus) ActivityView {
	view := ActivityView{
		ActivityID:  activity.ID,
		Day:         activity.Day,
		Name:        activity.Name,
		Description: activity.Description,
		StartTime:   activity.StartTime.String(),
		PlannedEnd:  activity.PlannedEnd().String(),
		DurationMin: activity.DurationMin,
	}
	if progress != nil {
		view.Completed = progress.Completed
		view.ActualStart = progress.ActualStart
		view.ActualEnd = progress.ActualEnd
		view.ActualDurationMin = progress.ActualDurationMin
	}
	view.UserStatus = string(effectiveStatus(progress, personal))
	return view
}

// Build projects the engine's status result. personal maps activity id to
// the viewer's saved status and may be nil for anonymous projections.
func Build(st progression.Status, personal map[string]domain.UserStatus) SessionStatusView {
	view := SessionStatusView{
		SessionID:       st.Session.ID,
		TemplateID:      st.Session.TemplateID,
		Name:            st.Session.Name,
		CurrentDay:      st.Session.CurrentDay,
		DayStarted:      st.Session.DayStarted,
		SessionComplete: st.Session.Complete(),
		IsLastActivity:  st.IsLastActivity,
		DayActivities:   make([]ActivityView, 0, len(st.DayActivities)),
	}

	for _, activity := range st.DayActivities {
		view.DayActivities = append(view.DayActivities, project(activity, st.Progress, personal))
	}
	if st.Current != nil {
		current := project(*st.Current, st.Progress, personal)
		view.Current = &current
	}
	if st.Next != nil {
		next := project(*st.Next, st.Progress, personal)
		view.Next = &next
	}
	return view
}

func project(activity domain.Activity, progress map[string]domain.ActivityProgress, personal map[string]domain.UserStatus) ActivityView {
	var progressRow *domain.ActivityProgress
	if row, ok := progress[activity.ID]; ok {
		progressRow = &row
	}
	return BuildActivity(activity, progressRow, personal[activity.ID])
}

// effectiveStatus prefers the viewer's saved status; otherwise it derives
// one from the session's objective progress.
func effectiveStatus(progress *domain.ActivityProgress, personal domain.UserStatus) domain.UserStatus {
	if personal.Valid() {
		return personal
	}
	if progress == nil {
		return domain.UserStatusPending
	}
	switch {
	case progress.Completed:
		return domain.UserStatusCompleted
	case progress.ActualStart != nil && progress.ActualEnd == nil:
		return domain.UserStatusInProgress
	default:
		return domain.UserStatusPending
	}
}
