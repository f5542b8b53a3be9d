package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateTemplateValidatesActivities(t *testing.T) {
	repo := &memRepo{}
	service := NewTemplateService(repo)

	result, err := service.CreateTemplate(context.Background(), NewTemplate{
		Name:         "Onboarding",
		DurationDays: 2,
		Activities: []NewActivity{
			{Day: 1, Name: "Welcome", StartTime: "09:00", DurationMin: 30},
			{Day: 2, Name: "Deep dive", StartTime: "10:00", DurationMin: 90},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Template.ID)
	require.Len(t, result.Activities, 2)
	require.Equal(t, 0, result.Activities[0].Position)
	require.Equal(t, 1, result.Activities[1].Position)
	require.Equal(t, "09:30", result.Activities[0].PlannedEnd().String())

	_, err = service.CreateTemplate(context.Background(), NewTemplate{Name: " ", DurationDays: 1})
	require.True(t, IsKind(err, KindValidation))

	_, err = service.CreateTemplate(context.Background(), NewTemplate{Name: "x", DurationDays: 0})
	require.True(t, IsKind(err, KindValidation))

	_, err = service.CreateTemplate(context.Background(), NewTemplate{
		Name:         "Bad day",
		DurationDays: 1,
		Activities:   []NewActivity{{Day: 3, Name: "Off plan", StartTime: "09:00", DurationMin: 30}},
	})
	require.True(t, IsKind(err, KindValidation))

	_, err = service.CreateTemplate(context.Background(), NewTemplate{
		Name:         "Bad time",
		DurationDays: 1,
		Activities:   []NewActivity{{Day: 1, Name: "Late", StartTime: "25:00", DurationMin: 30}},
	})
	require.True(t, IsKind(err, KindValidation))
}

func TestReplaceDayChecksRangeAndTargets(t *testing.T) {
	repo := &memRepo{}
	service := NewTemplateService(repo)

	created, err := service.CreateTemplate(context.Background(), NewTemplate{
		Name:         "Plan",
		DurationDays: 2,
		Activities:   []NewActivity{{Day: 1, Name: "Old", StartTime: "09:00", DurationMin: 30}},
	})
	require.NoError(t, err)

	replaced, err := service.ReplaceDay(context.Background(), created.Template.ID, 1, []NewActivity{
		{Name: "New a", StartTime: "08:00", DurationMin: 45},
		{Name: "New b", StartTime: "09:00", DurationMin: 45},
	})
	require.NoError(t, err)
	require.Len(t, replaced, 2)
	require.Equal(t, 1, replaced[0].Day)

	stored, err := repo.ListActivitiesForDay(context.Background(), created.Template.ID, 1)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "New a", stored[0].Name)

	_, err = service.ReplaceDay(context.Background(), created.Template.ID, 5, nil)
	require.True(t, IsKind(err, KindValidation))

	_, err = service.ReplaceDay(context.Background(), created.Template.ID, 1, []NewActivity{
		{Day: 2, Name: "Wrong day", StartTime: "09:00", DurationMin: 30},
	})
	require.True(t, IsKind(err, KindValidation))

	_, err = service.ReplaceDay(context.Background(), "tpl-missing", 1, nil)
	require.True(t, IsKind(err, KindNotFound))
}

func TestSetUserStatus(t *testing.T) {
	repo := &memRepo{}
	service := NewTemplateService(repo)

	created, err := service.CreateTemplate(context.Background(), NewTemplate{
		Name:         "Plan",
		DurationDays: 1,
		Activities:   []NewActivity{{Day: 1, Name: "Session", StartTime: "09:00", DurationMin: 30}},
	})
	require.NoError(t, err)
	activityID := created.Activities[0].ID

	row, err := service.SetUserStatus(context.Background(), "user-1", activityID, UserStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, UserStatusCompleted, row.Status)
	require.False(t, row.UpdatedAt.IsZero())

	statuses, err := service.UserStatuses(context.Background(), "user-1", []string{activityID})
	require.NoError(t, err)
	require.Equal(t, UserStatusCompleted, statuses[activityID])

	_, err = service.SetUserStatus(context.Background(), "user-1", activityID, UserStatus("done-ish"))
	require.True(t, IsKind(err, KindValidation))

	_, err = service.SetUserStatus(context.Background(), "user-1", "act-missing", UserStatusSkipped)
	require.True(t, IsKind(err, KindNotFound))
}

// memRepo is the in-memory slice of Repository the template service needs.
type memRepo struct {
	templates  []Template
	activities []Activity
	statuses   map[string]UserStatus
}

func (m *memRepo) CreateTemplate(ctx context.Context, tpl Template, activities []Activity) error {
	m.templates = append(m.templates, tpl)
	m.activities = append(m.activities, activities...)
	return nil
}

func (m *memRepo) GetTemplate(ctx context.Context, id string) (*Template, error) {
	for _, tpl := range m.templates {
		if tpl.ID == id {
			found := tpl
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ListTemplates(ctx context.Context) ([]Template, error) {
	return m.templates, nil
}

func (m *memRepo) DeleteTemplate(ctx context.Context, id string) error {
	kept := m.templates[:0]
	for _, tpl := range m.templates {
		if tpl.ID != id {
			kept = append(kept, tpl)
		}
	}
	m.templates = kept
	return nil
}

func (m *memRepo) ReplaceDayActivities(ctx context.Context, templateID string, day int, activities []Activity) error {
	kept := m.activities[:0]
	for _, a := range m.activities {
		if a.TemplateID != templateID || a.Day != day {
			kept = append(kept, a)
		}
	}
	m.activities = append(kept, activities...)
	return nil
}

func (m *memRepo) ListActivitiesForDay(ctx context.Context, templateID string, day int) ([]Activity, error) {
	var out []Activity
	for _, a := range m.activities {
		if a.TemplateID == templateID && a.Day == day {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) GetActivity(ctx context.Context, id string) (*Activity, error) {
	for _, a := range m.activities {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CreateSession(ctx context.Context, sess Session, events []ProgressionEvent) error {
	return nil
}

func (m *memRepo) GetSession(ctx context.Context, id string) (*Session, error) {
	return nil, nil
}

func (m *memRepo) ListSessions(ctx context.Context, cursor *SessionCursor, limit int) ([]Session, *SessionCursor, error) {
	return nil, nil, nil
}

func (m *memRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

func (m *memRepo) ApplyProgression(ctx context.Context, sess Session, progress []ActivityProgress, events []ProgressionEvent) error {
	return nil
}

func (m *memRepo) ListDayProgress(ctx context.Context, sessionID, templateID string, day int) (map[string]ActivityProgress, error) {
	return map[string]ActivityProgress{}, nil
}

func (m *memRepo) UpsertActivityStatus(ctx context.Context, status ActivityStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]UserStatus)
	}
	m.statuses[status.UserID+"/"+status.ActivityID] = status.Status
	return nil
}

func (m *memRepo) ListUserStatuses(ctx context.Context, userID string, activityIDs []string) (map[string]UserStatus, error) {
	out := make(map[string]UserStatus)
	for _, id := range activityIDs {
		if status, ok := m.statuses[userID+"/"+id]; ok {
			out[id] = status
		}
	}
	return out, nil
}
