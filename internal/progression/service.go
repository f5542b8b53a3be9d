// Package progression owns the session lifecycle: starting sessions and
// days, advancing through a day's activities, undoing, and closing days
// out, with actual timings recorded as it goes.
package progression

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/ontrak/internal/domain"
	"example.com/ontrak/internal/events"
	"example.com/ontrak/internal/observability"
	"example.com/ontrak/internal/schedule"
)

// Clock supplies the current time for all actual_* stamping. Injectable
// for tests.
type Clock func() time.Time

// Service is the progression engine. Operations on the same session are
// serialized through a per-session mutex; different sessions proceed in
// parallel.
type Service struct {
	repo     domain.Repository
	ordering schedule.Ordering
	now      Clock

	locks sync.Map // session id -> *sync.Mutex
}

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.now = clock
	}
}

// NewService constructs the engine over the given repository.
func NewService(repo domain.Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		ordering: schedule.NewOrdering(repo),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lockSession(sessionID string) func() {
	value, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) getSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, domain.NotFoundf("session %s not found", sessionID)
	}
	return sess, nil
}

// StartSession creates a new run of the template with the cursor on day 1.
func (s *Service) StartSession(ctx context.Context, templateID, name string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.KindValidation, "session name is required")
	}

	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, domain.NotFoundf("template %s not found", templateID)
	}

	sess := domain.Session{
		ID:         uuid.NewString(),
		TemplateID: tpl.ID,
		Name:       name,
		CurrentDay: 1,
		StartDate:  s.now(),
	}

	err = s.repo.CreateSession(ctx, sess, []domain.ProgressionEvent{{
		Type:      events.TypeSessionStarted,
		SessionID: sess.ID,
		Payload: events.SessionStarted{
			SessionID:  sess.ID,
			TemplateID: sess.TemplateID,
			Name:       sess.Name,
			StartDate:  sess.StartDate,
		},
	}})
	if err != nil {
		return nil, err
	}

	observability.RecordSessionStarted()
	return &sess, nil
}

// StartDayResult reports the outcome of StartDay. AlreadyStarted is a
// non-fatal signal, not an error.
type StartDayResult struct {
	AlreadyStarted bool
	Current        *domain.Activity
}

// StartDay begins the session's current day and puts the cursor on the
// day's first activity, stamping its actual start. A day with no
// activities starts with no current activity and is immediately eligible
// for EndDay. Calling StartDay on an already-started day is a no-op.
func (s *Service) StartDay(ctx context.Context, sessionID string) (*StartDayResult, error) {
	defer s.lockSession(sessionID)()

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Complete() {
		return nil, domain.NewError(domain.KindValidation, "session is already complete")
	}
	if sess.DayStarted {
		current, err := s.currentActivity(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &StartDayResult{AlreadyStarted: true, Current: current}, nil
	}

	now := s.now()
	sess.DayStarted = true

	first, err := s.ordering.FirstOfDay(ctx, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}

	var progress []domain.ActivityProgress
	dayStarted := events.SessionDayStarted{
		SessionID:  sess.ID,
		TemplateID: sess.TemplateID,
		Day:        sess.CurrentDay,
		OccurredAt: now,
	}
	if first != nil {
		sess.CurrentActivityID = &first.ID
		progress = append(progress, domain.ActivityProgress{
			SessionID:   sess.ID,
			ActivityID:  first.ID,
			ActualStart: &now,
		})
		dayStarted.FirstActivityID = first.ID
	}

	evts := []domain.ProgressionEvent{{
		Type:      events.TypeSessionDayStarted,
		SessionID: sess.ID,
		Payload:   dayStarted,
	}}
	if err := s.repo.ApplyProgression(ctx, *sess, progress, evts); err != nil {
		return nil, err
	}

	observability.RecordProgressionWrite(now)
	return &StartDayResult{Current: first}, nil
}

// AdvanceResult reports the outcome of AdvanceToNext and Skip.
type AdvanceResult struct {
	CompletedActivity domain.Activity
	CompletedProgress domain.ActivityProgress
	Current           *domain.Activity
	IsLastActivity    bool
}

// AdvanceToNext completes the current activity, stamping its actual end
// and duration, and moves the cursor to the next activity of the day. On
// the day's last activity the cursor clears and IsLastActivity is set.
func (s *Service) AdvanceToNext(ctx context.Context, sessionID string) (*AdvanceResult, error) {
	defer s.lockSession(sessionID)()
	return s.advance(ctx, sessionID)
}

// Skip behaves exactly like AdvanceToNext: the skipped activity is still
// marked completed with actual timestamps so the audit trail stays whole.
func (s *Service) Skip(ctx context.Context, sessionID string) (*AdvanceResult, error) {
	defer s.lockSession(sessionID)()
	return s.advance(ctx, sessionID)
}

func (s *Service) advance(ctx context.Context, sessionID string) (*AdvanceResult, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CurrentActivityID == nil {
		return nil, domain.NewError(domain.KindNoCurrentActivity, "no current activity to advance")
	}

	current, err := s.repo.GetActivity(ctx, *sess.CurrentActivityID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.NotFoundf("activity %s not found", *sess.CurrentActivityID)
	}

	activities, err := s.ordering.DayActivities(ctx, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}
	progressByActivity, err := s.repo.ListDayProgress(ctx, sess.ID, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}

	now := s.now()
	completed := s.closeOut(progressOf(progressByActivity, sess.ID, current.ID), now)
	changes := []domain.ActivityProgress{completed}

	evts := []domain.ProgressionEvent{{
		Type:      events.TypeActivityCompleted,
		SessionID: sess.ID,
		Payload:   completedEvent(*sess, *current, completed),
	}}

	next := schedule.NextAfter(activities, *current)
	if next != nil {
		sess.CurrentActivityID = &next.ID
		started := progressOf(progressByActivity, sess.ID, next.ID)
		started.ActualStart = &now
		changes = append(changes, started)
	} else {
		sess.CurrentActivityID = nil
	}

	if err := s.repo.ApplyProgression(ctx, *sess, changes, evts); err != nil {
		return nil, err
	}

	observability.RecordActivityCompleted()
	observability.RecordProgressionWrite(now)
	return &AdvanceResult{
		CompletedActivity: *current,
		CompletedProgress: completed,
		Current:           next,
		IsLastActivity:    next == nil,
	}, nil
}

// UndoResult reports the activity the cursor rolled back to.
type UndoResult struct {
	Current domain.Activity
}

// Undo rolls the cursor back exactly one step. The activity that was
// current loses its recorded timings entirely; the previous activity is
// reopened (completed flag and end timing cleared, actual start kept) and
// becomes current again.
func (s *Service) Undo(ctx context.Context, sessionID string) (*UndoResult, error) {
	defer s.lockSession(sessionID)()

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.DayStarted {
		return nil, domain.NewError(domain.KindNothingToUndo, "day has not started")
	}

	activities, err := s.ordering.DayActivities(ctx, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}

	current := findByID(activities, sess.CurrentActivityID)
	var previous *domain.Activity
	if current != nil {
		previous = schedule.PreviousBefore(activities, *current)
	} else {
		// Cursor cleared past the last activity; undo reopens it.
		previous = schedule.Last(activities)
	}
	if previous == nil {
		return nil, domain.NewError(domain.KindNothingToUndo, "no previous activity to undo to")
	}

	progressByActivity, err := s.repo.ListDayProgress(ctx, sess.ID, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}

	var changes []domain.ActivityProgress
	if current != nil {
		// Wipe the in-progress record; the activity has not happened yet.
		changes = append(changes, domain.ActivityProgress{SessionID: sess.ID, ActivityID: current.ID})
	}

	reopened := progressOf(progressByActivity, sess.ID, previous.ID)
	reopened.Completed = false
	reopened.ActualEnd = nil
	reopened.ActualDurationMin = nil
	changes = append(changes, reopened)

	sess.CurrentActivityID = &previous.ID

	now := s.now()
	evts := []domain.ProgressionEvent{{
		Type:      events.TypeActivityReopened,
		SessionID: sess.ID,
		Payload: events.ActivityReopened{
			SessionID:  sess.ID,
			ActivityID: previous.ID,
			Day:        sess.CurrentDay,
			OccurredAt: now,
		},
	}}

	if err := s.repo.ApplyProgression(ctx, *sess, changes, evts); err != nil {
		return nil, err
	}

	observability.RecordUndo()
	observability.RecordProgressionWrite(now)
	return &UndoResult{Current: *previous}, nil
}

// EndDayResult reports the day counter after the call and whether the
// session finished.
type EndDayResult struct {
	CurrentDay      int
	SessionComplete bool
}

// EndDay closes out any still-open current activity, advances the day
// counter, and completes the session once the counter passes the
// template's duration. The engine does not gate repeated calls; the
// caller's flow decides when a day actually ends.
func (s *Service) EndDay(ctx context.Context, sessionID string) (*EndDayResult, error) {
	defer s.lockSession(sessionID)()

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Complete() {
		return nil, domain.NewError(domain.KindValidation, "session is already complete")
	}

	tpl, err := s.repo.GetTemplate(ctx, sess.TemplateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, domain.NotFoundf("template %s not found", sess.TemplateID)
	}

	now := s.now()
	var changes []domain.ActivityProgress
	var evts []domain.ProgressionEvent

	if sess.CurrentActivityID != nil {
		progressByActivity, err := s.repo.ListDayProgress(ctx, sess.ID, sess.TemplateID, sess.CurrentDay)
		if err != nil {
			return nil, err
		}
		open := progressOf(progressByActivity, sess.ID, *sess.CurrentActivityID)
		if open.ActualEnd == nil {
			closed := s.closeOut(open, now)
			changes = append(changes, closed)
			current, err := s.repo.GetActivity(ctx, *sess.CurrentActivityID)
			if err != nil {
				return nil, err
			}
			if current != nil {
				evts = append(evts, domain.ProgressionEvent{
					Type:      events.TypeActivityCompleted,
					SessionID: sess.ID,
					Payload:   completedEvent(*sess, *current, closed),
				})
			}
		}
	}

	sess.CurrentDay++
	sess.DayStarted = false
	sess.CurrentActivityID = nil

	complete := sess.CurrentDay > tpl.DurationDays
	if complete {
		sess.EndDate = &now
		evts = append(evts, domain.ProgressionEvent{
			Type:      events.TypeSessionCompleted,
			SessionID: sess.ID,
			Payload: events.SessionCompleted{
				SessionID:  sess.ID,
				TemplateID: sess.TemplateID,
				EndDate:    now,
			},
		})
	}

	if err := s.repo.ApplyProgression(ctx, *sess, changes, evts); err != nil {
		return nil, err
	}

	if complete {
		observability.RecordSessionCompleted()
	}
	observability.RecordProgressionWrite(now)
	return &EndDayResult{CurrentDay: sess.CurrentDay, SessionComplete: complete}, nil
}

// Status is the engine's read projection for one session.
type Status struct {
	Session        domain.Session
	Current        *domain.Activity
	Next           *domain.Activity
	DayActivities  []domain.Activity
	Progress       map[string]domain.ActivityProgress
	IsLastActivity bool
}

// Status reads the session's progression state without mutating anything.
func (s *Service) Status(ctx context.Context, sessionID string) (*Status, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	activities, err := s.ordering.DayActivities(ctx, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}
	progressByActivity, err := s.repo.ListDayProgress(ctx, sess.ID, sess.TemplateID, sess.CurrentDay)
	if err != nil {
		return nil, err
	}

	current := findByID(activities, sess.CurrentActivityID)
	var next *domain.Activity
	if current != nil {
		next = schedule.NextAfter(activities, *current)
	}

	return &Status{
		Session:        *sess,
		Current:        current,
		Next:           next,
		DayActivities:  activities,
		Progress:       progressByActivity,
		IsLastActivity: current != nil && next == nil,
	}, nil
}

// DeleteSession removes an archived or abandoned session and its progress.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	defer s.lockSession(sessionID)()

	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.repo.DeleteSession(ctx, sess.ID)
}

// ListSessions pages through sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, cursor *domain.SessionCursor, limit int) ([]domain.Session, *domain.SessionCursor, error) {
	return s.repo.ListSessions(ctx, cursor, limit)
}

func (s *Service) currentActivity(ctx context.Context, sess *domain.Session) (*domain.Activity, error) {
	if sess.CurrentActivityID == nil {
		return nil, nil
	}
	return s.repo.GetActivity(ctx, *sess.CurrentActivityID)
}

// closeOut stamps the end of an activity run and derives its duration.
// Duration stays unset when no start was ever recorded.
func (s *Service) closeOut(progress domain.ActivityProgress, now time.Time) domain.ActivityProgress {
	progress.ActualEnd = &now
	if progress.ActualStart != nil {
		minutes := domain.ElapsedMinutes(*progress.ActualStart, now)
		progress.ActualDurationMin = &minutes
	}
	progress.Completed = true
	return progress
}

func progressOf(byActivity map[string]domain.ActivityProgress, sessionID, activityID string) domain.ActivityProgress {
	if progress, ok := byActivity[activityID]; ok {
		return progress
	}
	return domain.ActivityProgress{SessionID: sessionID, ActivityID: activityID}
}

func findByID(activities []domain.Activity, id *string) *domain.Activity {
	if id == nil {
		return nil
	}
	for _, a := range activities {
		if a.ID == *id {
			found := a
			return &found
		}
	}
	return nil
}

func completedEvent(sess domain.Session, activity domain.Activity, progress domain.ActivityProgress) events.ActivityCompleted {
	evt := events.ActivityCompleted{
		SessionID:  sess.ID,
		ActivityID: activity.ID,
		Day:        activity.Day,
	}
	if progress.ActualStart != nil {
		evt.ActualStart = *progress.ActualStart
	}
	if progress.ActualEnd != nil {
		evt.ActualEnd = *progress.ActualEnd
	}
	if progress.ActualDurationMin != nil {
		evt.ActualDurationMin = *progress.ActualDurationMin
	}
	return evt
}
