// Package postgres provides pgx-backed persistence for templates,
// sessions, per-session progress, and outbox events.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ontrak/internal/domain"
	"example.com/ontrak/internal/events"
)

// Repository implements domain.Repository over a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateTemplate persists the template and its activities in one transaction.
func (r *Repository) CreateTemplate(ctx context.Context, tpl domain.Template, activities []domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertTemplate = `INSERT INTO templates (template_id, name, description, duration_days, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	if _, err := tx.Exec(ctx, insertTemplate, tpl.ID, tpl.Name, tpl.Description, tpl.DurationDays, tpl.CreatedAt); err != nil {
		return err
	}

	for _, activity := range activities {
		if err := insertActivity(ctx, tx, activity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertActivity(ctx context.Context, tx pgx.Tx, activity domain.Activity) error {
	const stmt = `INSERT INTO activities (activity_id, template_id, day, position, name, description, start_minute, duration_min)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := tx.Exec(ctx, stmt,
		activity.ID,
		activity.TemplateID,
		activity.Day,
		activity.Position,
		activity.Name,
		activity.Description,
		int(activity.StartTime),
		activity.DurationMin,
	)
	return err
}

// GetTemplate retrieves a template by id, or nil when absent.
func (r *Repository) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	const query = `SELECT template_id, name, description, duration_days, created_at
        FROM templates WHERE template_id=$1`

	var tpl domain.Template
	row := r.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.DurationDays, &tpl.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tpl, nil
}

// ListTemplates returns all templates, newest first.
func (r *Repository) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	const query = `SELECT template_id, name, description, duration_days, created_at
        FROM templates ORDER BY created_at DESC, template_id DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]domain.Template, 0)
	for rows.Next() {
		var tpl domain.Template
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.DurationDays, &tpl.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// DeleteTemplate removes a template; activities, sessions, and progress
// cascade at the schema level.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE template_id=$1`, id)
	return err
}

// ReplaceDayActivities swaps a day-group for a new activity list in one
// transaction. Progress rows for the removed activities cascade away.
func (r *Repository) ReplaceDayActivities(ctx context.Context, templateID string, day int, activities []domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM activities WHERE template_id=$1 AND day=$2`, templateID, day); err != nil {
		return err
	}
	for _, activity := range activities {
		if err := insertActivity(ctx, tx, activity); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListActivitiesForDay returns one day-group in canonical order.
func (r *Repository) ListActivitiesForDay(ctx context.Context, templateID string, day int) ([]domain.Activity, error) {
	const query = `SELECT activity_id, template_id, day, position, name, description, start_minute, duration_min
        FROM activities WHERE template_id=$1 AND day=$2
        ORDER BY start_minute, position, activity_id`

	rows, err := r.pool.Query(ctx, query, templateID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// GetActivity retrieves an activity by id, or nil when absent.
func (r *Repository) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	const query = `SELECT activity_id, template_id, day, position, name, description, start_minute, duration_min
        FROM activities WHERE activity_id=$1`

	activity, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var activity domain.Activity
	var startMinute int
	err := row.Scan(
		&activity.ID,
		&activity.TemplateID,
		&activity.Day,
		&activity.Position,
		&activity.Name,
		&activity.Description,
		&startMinute,
		&activity.DurationMin,
	)
	activity.StartTime = domain.TimeOfDay(startMinute)
	return activity, err
}

// CreateSession persists the session and its outbox events in one transaction.
func (r *Repository) CreateSession(ctx context.Context, sess domain.Session, evts []domain.ProgressionEvent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertSession = `INSERT INTO sessions (session_id, template_id, name, current_day, day_started, current_activity_id, start_date, end_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = tx.Exec(ctx, insertSession,
		sess.ID,
		sess.TemplateID,
		sess.Name,
		sess.CurrentDay,
		sess.DayStarted,
		sess.CurrentActivityID,
		sess.StartDate,
		sess.EndDate,
	)
	if err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, evts); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetSession retrieves a session by id, or nil when absent.
func (r *Repository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	const query = `SELECT session_id, template_id, name, current_day, day_started, current_activity_id, start_date, end_date
        FROM sessions WHERE session_id=$1`

	var sess domain.Session
	row := r.pool.QueryRow(ctx, query, id)
	err := row.Scan(
		&sess.ID,
		&sess.TemplateID,
		&sess.Name,
		&sess.CurrentDay,
		&sess.DayStarted,
		&sess.CurrentActivityID,
		&sess.StartDate,
		&sess.EndDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// ListSessions pages sessions newest first by (start_date, session_id).
func (r *Repository) ListSessions(ctx context.Context, cursor *domain.SessionCursor, limit int) ([]domain.Session, *domain.SessionCursor, error) {
	args := []interface{}{limit}
	query := `SELECT session_id, template_id, name, current_day, day_started, current_activity_id, start_date, end_date
        FROM sessions`

	if cursor != nil {
		query += ` WHERE (start_date, session_id) < ($2, $3)`
		args = append(args, cursor.StartDate, cursor.ID)
	}
	query += ` ORDER BY start_date DESC, session_id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0, limit)
	for rows.Next() {
		var sess domain.Session
		err := rows.Scan(
			&sess.ID,
			&sess.TemplateID,
			&sess.Name,
			&sess.CurrentDay,
			&sess.DayStarted,
			&sess.CurrentActivityID,
			&sess.StartDate,
			&sess.EndDate,
		)
		if err != nil {
			return nil, nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.SessionCursor
	if len(sessions) == limit {
		last := sessions[len(sessions)-1]
		next = &domain.SessionCursor{StartDate: last.StartDate, ID: last.ID}
	}
	return sessions, next, nil
}

// DeleteSession removes a session; its progress rows cascade.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id=$1`, id)
	return err
}

// ApplyProgression writes the session cursor, touched progress rows, and
// outbox events atomically.
func (r *Repository) ApplyProgression(ctx context.Context, sess domain.Session, progress []domain.ActivityProgress, evts []domain.ProgressionEvent) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const updateSession = `UPDATE sessions
        SET current_day=$2, day_started=$3, current_activity_id=$4, end_date=$5
        WHERE session_id=$1`
	tag, err := tx.Exec(ctx, updateSession,
		sess.ID,
		sess.CurrentDay,
		sess.DayStarted,
		sess.CurrentActivityID,
		sess.EndDate,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s vanished during progression write", sess.ID)
	}

	const upsertProgress = `INSERT INTO activity_progress (session_id, activity_id, completed, actual_start, actual_end, actual_duration_min)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (session_id, activity_id) DO UPDATE
        SET completed=EXCLUDED.completed,
            actual_start=EXCLUDED.actual_start,
            actual_end=EXCLUDED.actual_end,
            actual_duration_min=EXCLUDED.actual_duration_min`
	for _, row := range progress {
		_, err := tx.Exec(ctx, upsertProgress,
			row.SessionID,
			row.ActivityID,
			row.Completed,
			row.ActualStart,
			row.ActualEnd,
			row.ActualDurationMin,
		)
		if err != nil {
			return err
		}
	}

	if err := insertOutbox(ctx, tx, evts); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListDayProgress returns the session's progress rows for one day-group,
// keyed by activity id.
func (r *Repository) ListDayProgress(ctx context.Context, sessionID, templateID string, day int) (map[string]domain.ActivityProgress, error) {
	const query = `SELECT p.session_id, p.activity_id, p.completed, p.actual_start, p.actual_end, p.actual_duration_min
        FROM activity_progress p
        JOIN activities a ON a.activity_id = p.activity_id
        WHERE p.session_id=$1 AND a.template_id=$2 AND a.day=$3`

	rows, err := r.pool.Query(ctx, query, sessionID, templateID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	progress := make(map[string]domain.ActivityProgress)
	for rows.Next() {
		var row domain.ActivityProgress
		err := rows.Scan(
			&row.SessionID,
			&row.ActivityID,
			&row.Completed,
			&row.ActualStart,
			&row.ActualEnd,
			&row.ActualDurationMin,
		)
		if err != nil {
			return nil, err
		}
		progress[row.ActivityID] = row
	}
	return progress, rows.Err()
}

// UpsertActivityStatus writes one per-user status row.
func (r *Repository) UpsertActivityStatus(ctx context.Context, status domain.ActivityStatus) error {
	const stmt = `INSERT INTO user_activity_status (user_id, activity_id, status, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, activity_id) DO UPDATE
        SET status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, stmt, status.UserID, status.ActivityID, string(status.Status), status.UpdatedAt)
	return err
}

// ListUserStatuses returns the user's statuses for the given activities,
// keyed by activity id.
func (r *Repository) ListUserStatuses(ctx context.Context, userID string, activityIDs []string) (map[string]domain.UserStatus, error) {
	statuses := make(map[string]domain.UserStatus)
	if len(activityIDs) == 0 {
		return statuses, nil
	}

	const query = `SELECT activity_id, status FROM user_activity_status
        WHERE user_id=$1 AND activity_id = ANY($2)`
	rows, err := r.pool.Query(ctx, query, userID, activityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var activityID, raw string
		if err := rows.Scan(&activityID, &raw); err != nil {
			return nil, err
		}
		statuses[activityID] = domain.UserStatus(raw)
	}
	return statuses, rows.Err()
}

func insertOutbox(ctx context.Context, tx pgx.Tx, evts []domain.ProgressionEvent) error {
	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`

	for _, evt := range evts {
		meta, ok := eventCatalog[evt.Type]
		if !ok {
			return fmt.Errorf("unknown event type: %s", evt.Type)
		}

		body, err := json.Marshal(evt.Payload)
		if err != nil {
			return err
		}

		// Partitioning by session id keeps one session's events ordered.
		_, err = tx.Exec(ctx, stmt,
			"session",
			evt.SessionID,
			evt.Type,
			meta.Topic,
			meta.SchemaSubject,
			evt.SessionID,
			body,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeSessionStarted:    {Topic: "session_events", SchemaSubject: "session_events-value"},
	events.TypeSessionDayStarted: {Topic: "session_events", SchemaSubject: "session_events-value"},
	events.TypeSessionCompleted:  {Topic: "session_events", SchemaSubject: "session_events-value"},
	events.TypeActivityCompleted: {Topic: "activity_progress", SchemaSubject: "activity_progress-value"},
	events.TypeActivityReopened:  {Topic: "activity_progress", SchemaSubject: "activity_progress-value"},
}
