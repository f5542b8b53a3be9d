package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewActivity is the authoring payload for one planned activity.
type NewActivity struct {
	Day         int
	Name        string
	Description string
	StartTime   string
	DurationMin int
}

// NewTemplate is the authoring payload for a template and its activities.
type NewTemplate struct {
	Name         string
	Description  string
	DurationDays int
	Activities   []NewActivity
}

// TemplateWithActivities bundles a template with all of its activities.
type TemplateWithActivities struct {
	Template   Template
	Activities []Activity
}

// TemplateService covers template authoring and per-user status rows.
// Progression never goes through here.
type TemplateService struct {
	repo Repository
	now  func() time.Time
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(repo Repository) *TemplateService {
	return &TemplateService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// CreateTemplate validates and persists a template with its activities.
func (s *TemplateService) CreateTemplate(ctx context.Context, input NewTemplate) (*TemplateWithActivities, error) {
	tpl := Template{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Description:  input.Description,
		DurationDays: input.DurationDays,
		CreatedAt:    s.now(),
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	activities, err := buildActivities(tpl.ID, tpl.DurationDays, 0, input.Activities)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateTemplate(ctx, tpl, activities); err != nil {
		return nil, err
	}
	return &TemplateWithActivities{Template: tpl, Activities: activities}, nil
}

// GetTemplate fetches a template and all its activities across days.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*TemplateWithActivities, error) {
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, NotFoundf("template %s not found", id)
	}

	all := make([]Activity, 0)
	for day := 1; day <= tpl.DurationDays; day++ {
		activities, err := s.repo.ListActivitiesForDay(ctx, tpl.ID, day)
		if err != nil {
			return nil, err
		}
		all = append(all, activities...)
	}
	return &TemplateWithActivities{Template: *tpl, Activities: all}, nil
}

// ListTemplates returns every template, without activities.
func (s *TemplateService) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.repo.ListTemplates(ctx)
}

// DeleteTemplate removes a template and cascades to its activities.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	tpl, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return err
	}
	if tpl == nil {
		return NotFoundf("template %s not found", id)
	}
	return s.repo.DeleteTemplate(ctx, id)
}

// ReplaceDay swaps out a day's entire activity list. This is the only way
// a day-group changes after authoring; individual activities are never
// edited in place.
func (s *TemplateService) ReplaceDay(ctx context.Context, templateID string, day int, inputs []NewActivity) ([]Activity, error) {
	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, NotFoundf("template %s not found", templateID)
	}
	if day < 1 || day > tpl.DurationDays {
		return nil, Errorf(KindValidation, "day %d is outside the template range 1-%d", day, tpl.DurationDays)
	}

	for i := range inputs {
		if inputs[i].Day != 0 && inputs[i].Day != day {
			return nil, Errorf(KindValidation, "activity %q targets day %d, not day %d", inputs[i].Name, inputs[i].Day, day)
		}
		inputs[i].Day = day
	}

	activities, err := buildActivities(tpl.ID, tpl.DurationDays, 0, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ReplaceDayActivities(ctx, tpl.ID, day, activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// SetUserStatus upserts the caller's personal status for an activity.
func (s *TemplateService) SetUserStatus(ctx context.Context, userID, activityID string, status UserStatus) (*ActivityStatus, error) {
	if !status.Valid() {
		return nil, Errorf(KindValidation, "unknown status %q", status)
	}

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, NotFoundf("activity %s not found", activityID)
	}

	row := ActivityStatus{
		UserID:     userID,
		ActivityID: activityID,
		Status:     status,
		UpdatedAt:  s.now(),
	}
	if err := s.repo.UpsertActivityStatus(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

// UserStatuses returns the caller's statuses for the given activities.
func (s *TemplateService) UserStatuses(ctx context.Context, userID string, activityIDs []string) (map[string]UserStatus, error) {
	return s.repo.ListUserStatuses(ctx, userID, activityIDs)
}

func buildActivities(templateID string, templateDays, firstPosition int, inputs []NewActivity) ([]Activity, error) {
	activities := make([]Activity, 0, len(inputs))
	for i, in := range inputs {
		start, err := ParseTimeOfDay(in.StartTime)
		if err != nil {
			return nil, err
		}
		activity := Activity{
			ID:          uuid.NewString(),
			TemplateID:  templateID,
			Day:         in.Day,
			Position:    firstPosition + i,
			Name:        in.Name,
			Description: in.Description,
			StartTime:   start,
			DurationMin: in.DurationMin,
		}
		if err := activity.Validate(templateDays); err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, nil
}
