// Package api exposes HTTP handlers for the session progression service.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/ontrak/internal/auth"
	"example.com/ontrak/internal/domain"
	"example.com/ontrak/internal/persistence"
	"example.com/ontrak/internal/progression"
	"example.com/ontrak/internal/status"
)

// Handler coordinates HTTP requests with the progression engine and the
// template catalog.
type Handler struct {
	engine    *progression.Service
	templates *domain.TemplateService
}

// NewHandler builds a Handler.
func NewHandler(engine *progression.Service, templates *domain.TemplateService) *Handler {
	return &Handler{engine: engine, templates: templates}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/templates", h.templatesRoot)
	mux.HandleFunc("/v1/templates/", h.templateByID)
	mux.HandleFunc("/v1/sessions", h.sessionsRoot)
	mux.HandleFunc("/v1/sessions/", h.sessionByID)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sessionsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.startSession(w, r)
	case http.MethodGet:
		h.listSessions(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) sessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing session id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodDelete:
		h.deleteSession(w, r, id)
	case action == "status" && r.Method == http.MethodGet:
		h.sessionStatus(w, r, id)
	case r.Method == http.MethodPost:
		h.sessionAction(w, r, id, action)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// StartSessionRequest is the payload for POST /v1/sessions.
type StartSessionRequest struct {
	TemplateID string `json:"template_id"`
	Name       string `json:"name"`
}

// StartSessionResponse reports the created session.
type StartSessionResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeSessionsWrite) {
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	sess, err := h.engine.StartSession(r.Context(), req.TemplateID, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, StartSessionResponse{
		Success:   true,
		Message:   "session started",
		SessionID: sess.ID,
	})
}

// SessionView is the list representation of a session.
type SessionView struct {
	SessionID  string     `json:"session_id"`
	TemplateID string     `json:"template_id"`
	Name       string     `json:"name"`
	CurrentDay int        `json:"current_day"`
	DayStarted bool       `json:"day_started"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Items      []SessionView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeSessionsRead, auth.ScopeSessionsWrite) {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	sessions, next, err := h.engine.ListSessions(r.Context(), cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		items = append(items, toSessionView(sess))
	}
	writeJSON(w, http.StatusOK, ListSessionsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) sessionStatus(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsRead) && !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:read required")
		return
	}

	st, err := h.engine.Status(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ids := make([]string, 0, len(st.DayActivities))
	for _, activity := range st.DayActivities {
		ids = append(ids, activity.ID)
	}
	personal, err := h.templates.UserStatuses(r.Context(), claims.Subject, ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status.Build(*st, personal))
}

// OperationResponse is the generic envelope for progression mutations.
type OperationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StartDayResponse reports the outcome of start_day.
type StartDayResponse struct {
	Success         bool                 `json:"success"`
	Message         string               `json:"message"`
	AlreadyStarted  bool                 `json:"already_started,omitempty"`
	CurrentActivity *status.ActivityView `json:"current_activity"`
}

// AdvanceResponse reports the outcome of advance and skip.
type AdvanceResponse struct {
	Success           bool                 `json:"success"`
	Message           string               `json:"message"`
	CompletedActivity status.ActivityView  `json:"completed_activity"`
	CurrentActivity   *status.ActivityView `json:"current_activity"`
	IsLastActivity    bool                 `json:"is_last_activity"`
}

// UndoResponse reports the activity the cursor rolled back to.
type UndoResponse struct {
	Success         bool                `json:"success"`
	Message         string              `json:"message"`
	CurrentActivity status.ActivityView `json:"current_activity"`
}

// EndDayResponse reports the day counter after end_day.
type EndDayResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	CurrentDay      int    `json:"current_day"`
	SessionComplete bool   `json:"session_complete"`
}

func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if !requireScope(w, r, auth.ScopeSessionsWrite) {
		return
	}

	switch action {
	case "start_day":
		h.startDay(w, r, id)
	case "advance":
		h.advance(w, r, id, false)
	case "skip":
		h.advance(w, r, id, true)
	case "undo":
		h.undo(w, r, id)
	case "end_day":
		h.endDay(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown session action")
	}
}

func (h *Handler) startDay(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.engine.StartDay(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := StartDayResponse{Success: true, Message: "day started"}
	if result.AlreadyStarted {
		resp.AlreadyStarted = true
		resp.Message = "day already started"
	}
	if result.Current != nil {
		view := status.BuildActivity(*result.Current, nil, "")
		resp.CurrentActivity = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, id string, skip bool) {
	var result *progression.AdvanceResult
	var err error
	if skip {
		result, err = h.engine.Skip(r.Context(), id)
	} else {
		result, err = h.engine.AdvanceToNext(r.Context(), id)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := AdvanceResponse{
		Success:           true,
		Message:           "advanced to next activity",
		CompletedActivity: status.BuildActivity(result.CompletedActivity, &result.CompletedProgress, ""),
		IsLastActivity:    result.IsLastActivity,
	}
	if result.IsLastActivity {
		resp.Message = "day's last activity completed"
	}
	if result.Current != nil {
		view := status.BuildActivity(*result.Current, nil, "")
		resp.CurrentActivity = &view
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) undo(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.engine.Undo(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UndoResponse{
		Success:         true,
		Message:         "rolled back one activity",
		CurrentActivity: status.BuildActivity(result.Current, nil, ""),
	})
}

func (h *Handler) endDay(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.engine.EndDay(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := EndDayResponse{
		Success:         true,
		Message:         "day ended",
		CurrentDay:      result.CurrentDay,
		SessionComplete: result.SessionComplete,
	}
	if result.SessionComplete {
		resp.Message = "session complete"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if !requireScope(w, r, auth.ScopeSessionsWrite) {
		return
	}

	if err := h.engine.DeleteSession(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Success: true, Message: "session deleted"})
}

// SetStatusRequest is the payload for PUT /v1/activities/{id}/status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

// SetStatusResponse echoes the stored personal status.
type SetStatusResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ActivityID string `json:"activity_id"`
	Status     string `json:"status"`
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}
	if action != "status" || r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:write required")
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	row, err := h.templates.SetUserStatus(r.Context(), claims.Subject, id, domain.UserStatus(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SetStatusResponse{
		Success:    true,
		Message:    "status saved",
		ActivityID: row.ActivityID,
		Status:     string(row.Status),
	})
}

func toSessionView(sess domain.Session) SessionView {
	return SessionView{
		SessionID:  sess.ID,
		TemplateID: sess.TemplateID,
		Name:       sess.Name,
		CurrentDay: sess.CurrentDay,
		DayStarted: sess.DayStarted,
		StartDate:  sess.StartDate,
		EndDate:    sess.EndDate,
	}
}

func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return false
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind, ok := domain.KindOf(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	switch kind {
	case domain.KindNotFound:
		writeError(w, http.StatusNotFound, string(kind), err.Error())
	case domain.KindValidation:
		writeError(w, http.StatusBadRequest, string(kind), err.Error())
	case domain.KindNoCurrentActivity, domain.KindNothingToUndo, domain.KindAlreadyStarted:
		writeError(w, http.StatusConflict, string(kind), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
