package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/ontrak/internal/auth"
	"example.com/ontrak/internal/domain"
	"example.com/ontrak/internal/progression"
	"example.com/ontrak/internal/status"
)

func TestStartSessionAndStatusFlow(t *testing.T) {
	repo := seededRepo()
	mux := newTestHandler(repo)

	body := strings.NewReader(`{"template_id":"tpl-1","name":"March cohort"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sessions", body), auth.ScopeSessionsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var created StartSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !created.Success || created.SessionID == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	req = authed(httptest.NewRequest(http.MethodPost, "/v1/sessions/"+created.SessionID+"/start_day", nil), auth.ScopeSessionsWrite)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var day StartDayResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &day); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if day.CurrentActivity == nil || day.CurrentActivity.ActivityID != "act-1" {
		t.Fatalf("expected cursor on act-1, got %+v", day.CurrentActivity)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/v1/sessions/"+created.SessionID+"/status", nil), auth.ScopeSessionsRead)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var view status.SessionStatusView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.SessionID != created.SessionID {
		t.Fatalf("unexpected session id %s", view.SessionID)
	}
	if view.Current == nil || view.Current.ActivityID != "act-1" {
		t.Fatalf("expected current act-1, got %+v", view.Current)
	}
	if !view.DayStarted || view.SessionComplete {
		t.Fatalf("unexpected flags in %+v", view)
	}
	if len(view.DayActivities) != 2 {
		t.Fatalf("expected 2 day activities, got %d", len(view.DayActivities))
	}
}

func TestAdvanceWithoutCurrentActivityConflicts(t *testing.T) {
	repo := seededRepo()
	mux := newTestHandler(repo)

	sessionID := createSession(t, mux)

	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sessions/"+sessionID+"/advance", nil), auth.ScopeSessionsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", rr.Code, rr.Body.String())
	}

	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["type"] != string(domain.KindNoCurrentActivity) {
		t.Fatalf("unexpected error type %q", payload["type"])
	}
}

func TestSessionStatusUnknownSession(t *testing.T) {
	mux := newTestHandler(seededRepo())

	req := authed(httptest.NewRequest(http.MethodGet, "/v1/sessions/nope/status", nil), auth.ScopeSessionsRead)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestScopeEnforcement(t *testing.T) {
	mux := newTestHandler(seededRepo())

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims got %d", rr.Code)
	}

	req = authed(httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{}`)), auth.ScopeSessionsRead)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with read-only scope got %d", rr.Code)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	mux := newTestHandler(&memRepo{})

	body := strings.NewReader(`{"name":"","duration_days":0}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/templates", body), auth.ScopeTemplatesWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSetActivityStatus(t *testing.T) {
	repo := seededRepo()
	mux := newTestHandler(repo)

	body := strings.NewReader(`{"status":"skipped"}`)
	req := authed(httptest.NewRequest(http.MethodPut, "/v1/activities/act-1/status", body), auth.ScopeSessionsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SetStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "skipped" || resp.ActivityID != "act-1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	body = strings.NewReader(`{"status":"sideways"}`)
	req = authed(httptest.NewRequest(http.MethodPut, "/v1/activities/act-1/status", body), auth.ScopeSessionsWrite)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func newTestHandler(repo domain.Repository) *http.ServeMux {
	engine := progression.NewService(repo)
	templates := domain.NewTemplateService(repo)
	handler := NewHandler(engine, templates)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func createSession(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	body := strings.NewReader(`{"template_id":"tpl-1","name":"cohort"}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/v1/sessions", body), auth.ScopeSessionsWrite)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}
	var created StartSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return created.SessionID
}

func authed(req *http.Request, scopes ...string) *http.Request {
	claims := &auth.Claims{
		Subject:   "tester",
		Scopes:    make(map[string]struct{}, len(scopes)),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	for _, scope := range scopes {
		claims.Scopes[scope] = struct{}{}
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func seededRepo() *memRepo {
	nine, _ := domain.ParseTimeOfDay("09:00")
	ten, _ := domain.ParseTimeOfDay("10:00")
	return &memRepo{
		templates: map[string]domain.Template{
			"tpl-1": {ID: "tpl-1", Name: "Onboarding", DurationDays: 2, CreatedAt: time.Now().UTC()},
		},
		activities: []domain.Activity{
			{ID: "act-1", TemplateID: "tpl-1", Day: 1, Position: 0, Name: "Welcome", StartTime: nine, DurationMin: 30},
			{ID: "act-2", TemplateID: "tpl-1", Day: 1, Position: 1, Name: "Lab", StartTime: ten, DurationMin: 60},
		},
	}
}

// memRepo is a map-backed Repository for handler tests.
type memRepo struct {
	templates    map[string]domain.Template
	activities   []domain.Activity
	sessions     map[string]domain.Session
	progressRows map[string]domain.ActivityProgress
	statuses     map[string]domain.UserStatus
}

func (m *memRepo) CreateTemplate(ctx context.Context, tpl domain.Template, activities []domain.Activity) error {
	if m.templates == nil {
		m.templates = make(map[string]domain.Template)
	}
	m.templates[tpl.ID] = tpl
	m.activities = append(m.activities, activities...)
	return nil
}

func (m *memRepo) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	tpl, ok := m.templates[id]
	if !ok {
		return nil, nil
	}
	return &tpl, nil
}

func (m *memRepo) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	out := make([]domain.Template, 0, len(m.templates))
	for _, tpl := range m.templates {
		out = append(out, tpl)
	}
	return out, nil
}

func (m *memRepo) DeleteTemplate(ctx context.Context, id string) error {
	delete(m.templates, id)
	return nil
}

func (m *memRepo) ReplaceDayActivities(ctx context.Context, templateID string, day int, activities []domain.Activity) error {
	kept := m.activities[:0]
	for _, a := range m.activities {
		if a.TemplateID != templateID || a.Day != day {
			kept = append(kept, a)
		}
	}
	m.activities = append(kept, activities...)
	return nil
}

func (m *memRepo) ListActivitiesForDay(ctx context.Context, templateID string, day int) ([]domain.Activity, error) {
	var out []domain.Activity
	for _, a := range m.activities {
		if a.TemplateID == templateID && a.Day == day {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) GetActivity(ctx context.Context, id string) (*domain.Activity, error) {
	for _, a := range m.activities {
		if a.ID == id {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CreateSession(ctx context.Context, sess domain.Session, events []domain.ProgressionEvent) error {
	if m.sessions == nil {
		m.sessions = make(map[string]domain.Session)
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *memRepo) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (m *memRepo) ListSessions(ctx context.Context, cursor *domain.SessionCursor, limit int) ([]domain.Session, *domain.SessionCursor, error) {
	out := make([]domain.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out, nil, nil
}

func (m *memRepo) DeleteSession(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memRepo) ApplyProgression(ctx context.Context, sess domain.Session, progress []domain.ActivityProgress, events []domain.ProgressionEvent) error {
	m.sessions[sess.ID] = sess
	if m.progressRows == nil {
		m.progressRows = make(map[string]domain.ActivityProgress)
	}
	for _, row := range progress {
		m.progressRows[row.SessionID+"/"+row.ActivityID] = row
	}
	return nil
}

func (m *memRepo) ListDayProgress(ctx context.Context, sessionID, templateID string, day int) (map[string]domain.ActivityProgress, error) {
	out := make(map[string]domain.ActivityProgress)
	for _, a := range m.activities {
		if a.TemplateID != templateID || a.Day != day {
			continue
		}
		if row, ok := m.progressRows[sessionID+"/"+a.ID]; ok {
			out[a.ID] = row
		}
	}
	return out, nil
}

func (m *memRepo) UpsertActivityStatus(ctx context.Context, status domain.ActivityStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]domain.UserStatus)
	}
	m.statuses[status.UserID+"/"+status.ActivityID] = status.Status
	return nil
}

func (m *memRepo) ListUserStatuses(ctx context.Context, userID string, activityIDs []string) (map[string]domain.UserStatus, error) {
	out := make(map[string]domain.UserStatus)
	for _, id := range activityIDs {
		if status, ok := m.statuses[userID+"/"+id]; ok {
			out[id] = status
		}
	}
	return out, nil
}
