package domain

import (
	"context"
	"time"
)

// SessionCursor marks a position in the session listing, which is ordered
// newest first by (start_date, id).
type SessionCursor struct {
	StartDate time.Time
	ID        string
}

// ProgressionEvent is recorded in the outbox within the same transaction
// as the progression write it describes.
type ProgressionEvent struct {
	Type      string
	SessionID string
	Payload   any
}

// Repository captures persistence operations for templates, sessions, and
// per-session progress. Lookups return (nil, nil) when the entity does not
// exist; callers translate that into KindNotFound. Each method is a single
// atomic storage round-trip.
type Repository interface {
	CreateTemplate(ctx context.Context, tpl Template, activities []Activity) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	DeleteTemplate(ctx context.Context, id string) error
	ReplaceDayActivities(ctx context.Context, templateID string, day int, activities []Activity) error
	ListActivitiesForDay(ctx context.Context, templateID string, day int) ([]Activity, error)
	GetActivity(ctx context.Context, id string) (*Activity, error)

	CreateSession(ctx context.Context, sess Session, events []ProgressionEvent) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, cursor *SessionCursor, limit int) ([]Session, *SessionCursor, error)
	DeleteSession(ctx context.Context, id string) error

	// ApplyProgression persists the session cursor, any touched progress
	// rows, and the outbox events for one engine call in one transaction.
	ApplyProgression(ctx context.Context, sess Session, progress []ActivityProgress, events []ProgressionEvent) error
	ListDayProgress(ctx context.Context, sessionID, templateID string, day int) (map[string]ActivityProgress, error)

	UpsertActivityStatus(ctx context.Context, status ActivityStatus) error
	ListUserStatuses(ctx context.Context, userID string, activityIDs []string) (map[string]UserStatus, error)
}
