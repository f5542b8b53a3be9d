package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/ontrak/internal/auth"
	"example.com/ontrak/internal/domain"
)

// ActivityInput is one planned activity in an authoring request.
type ActivityInput struct {
	Day         int    `json:"day"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	DurationMin int    `json:"duration_min"`
}

// CreateTemplateRequest is the payload for POST /v1/templates.
type CreateTemplateRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	DurationDays int             `json:"duration_days"`
	Activities   []ActivityInput `json:"activities"`
}

// TemplateView is the API representation of a template.
type TemplateView struct {
	TemplateID   string    `json:"template_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	DurationDays int       `json:"duration_days"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlannedActivityView is the API representation of a planned activity.
type PlannedActivityView struct {
	ActivityID  string `json:"activity_id"`
	Day         int    `json:"day"`
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartTime   string `json:"start_time"`
	PlannedEnd  string `json:"planned_end"`
	DurationMin int    `json:"duration_min"`
}

// TemplateResponse bundles a template with its activities.
type TemplateResponse struct {
	Template   TemplateView          `json:"template"`
	Activities []PlannedActivityView `json:"activities"`
}

// ReplaceDayRequest is the payload for PUT /v1/templates/{id}/days/{day}.
type ReplaceDayRequest struct {
	Activities []ActivityInput `json:"activities"`
}

// ReplaceDayResponse echoes the freshly written day plan.
type ReplaceDayResponse struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message"`
	Activities []PlannedActivityView `json:"activities"`
}

func (h *Handler) templatesRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTemplate(w, r)
	case http.MethodGet:
		h.listTemplates(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) templateByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/templates/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing template id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.getTemplate(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		h.deleteTemplate(w, r, id)
	case strings.HasPrefix(sub, "days/") && r.Method == http.MethodPut:
		h.replaceDay(w, r, id, strings.TrimPrefix(sub, "days/"))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeTemplatesWrite) {
		return
	}

	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	result, err := h.templates.CreateTemplate(r.Context(), domain.NewTemplate{
		Name:         req.Name,
		Description:  req.Description,
		DurationDays: req.DurationDays,
		Activities:   toActivityInputs(req.Activities),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTemplateResponse(result))
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeSessionsRead, auth.ScopeSessionsWrite, auth.ScopeTemplatesWrite) {
		return
	}

	templates, err := h.templates.ListTemplates(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]TemplateView, 0, len(templates))
	for _, tpl := range templates {
		views = append(views, toTemplateView(tpl))
	}
	writeJSON(w, http.StatusOK, map[string][]TemplateView{"items": views})
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request, id string) {
	if !requireScope(w, r, auth.ScopeSessionsRead, auth.ScopeSessionsWrite, auth.ScopeTemplatesWrite) {
		return
	}

	result, err := h.templates.GetTemplate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(result))
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request, id string) {
	if !requireScope(w, r, auth.ScopeTemplatesWrite) {
		return
	}

	if err := h.templates.DeleteTemplate(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Success: true, Message: "template deleted"})
}

func (h *Handler) replaceDay(w http.ResponseWriter, r *http.Request, id, rawDay string) {
	if !requireScope(w, r, auth.ScopeTemplatesWrite) {
		return
	}

	day, err := strconv.Atoi(rawDay)
	if err != nil || day < 1 {
		writeError(w, http.StatusBadRequest, "validation_failed", "day must be a positive integer")
		return
	}

	var req ReplaceDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activities, err := h.templates.ReplaceDay(r.Context(), id, day, toActivityInputs(req.Activities))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReplaceDayResponse{
		Success:    true,
		Message:    "day plan replaced",
		Activities: toPlannedViews(activities),
	})
}

func toActivityInputs(inputs []ActivityInput) []domain.NewActivity {
	out := make([]domain.NewActivity, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, domain.NewActivity{
			Day:         in.Day,
			Name:        in.Name,
			Description: in.Description,
			StartTime:   in.StartTime,
			DurationMin: in.DurationMin,
		})
	}
	return out
}

func toTemplateView(tpl domain.Template) TemplateView {
	return TemplateView{
		TemplateID:   tpl.ID,
		Name:         tpl.Name,
		Description:  tpl.Description,
		DurationDays: tpl.DurationDays,
		CreatedAt:    tpl.CreatedAt,
	}
}

func toPlannedViews(activities []domain.Activity) []PlannedActivityView {
	views := make([]PlannedActivityView, 0, len(activities))
	for _, activity := range activities {
		views = append(views, PlannedActivityView{
			ActivityID:  activity.ID,
			Day:         activity.Day,
			Position:    activity.Position,
			Name:        activity.Name,
			Description: activity.Description,
			StartTime:   activity.StartTime.String(),
			PlannedEnd:  activity.PlannedEnd().String(),
			DurationMin: activity.DurationMin,
		})
	}
	return views
}

func toTemplateResponse(result *domain.TemplateWithActivities) TemplateResponse {
	return TemplateResponse{
		Template:   toTemplateView(result.Template),
		Activities: toPlannedViews(result.Activities),
	}
}
