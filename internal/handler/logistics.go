package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tripplanner/internal/domain"
)

type logisticsDayRequest struct {
	Meals   map[domain.MealKey]domain.Meal `json:"meals"`
	Pickup  *domain.Transfer               `json:"pickup"`
	Dropoff *domain.Transfer               `json:"dropoff"`
}

type addTemplateRequest struct {
	Type            string `json:"type" validate:"omitempty,oneof=visit meal transport activity rest free"`
	Title           string `json:"title" validate:"required"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"durationMinutes" validate:"gte=0"`
	Color           string `json:"color"`
}

type templateResponse struct {
	ID              openapi_types.UUID  `json:"id"`
	GroupID         openapi_types.UUID  `json:"groupId"`
	Type            domain.ActivityType `json:"type"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	DurationMinutes int                 `json:"durationMinutes"`
	Color           string              `json:"color"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// listLogistics handles GET /groups/{groupId}/logistics.
func (s *Server) listLogistics(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	days, err := s.logistics.ListDays(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	if days == nil {
		days = []domain.LogisticsDay{}
	}
	writeJSON(w, http.StatusOK, days)
}

// setLogisticsDay handles PUT /groups/{groupId}/logistics/{date}.
// The body replaces the whole day: omitted meals and transfers are cleared.
func (s *Server) setLogisticsDay(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body logisticsDayRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	saved, err := s.logistics.SetDay(r.Context(), domain.LogisticsDay{
		GroupID: groupID,
		Date:    chi.URLParam(r, "date"),
		Meals:   body.Meals,
		Pickup:  body.Pickup,
		Dropoff: body.Dropoff,
	})
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// listTemplates handles GET /groups/{groupId}/templates.
func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	ts, err := s.logistics.ListTemplates(r.Context(), groupID)
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	out := make([]templateResponse, len(ts))
	for i, t := range ts {
		out[i] = templateToResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// addTemplate handles POST /groups/{groupId}/templates.
func (s *Server) addTemplate(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	var body addTemplateRequest
	if err := s.decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}

	created, err := s.logistics.AddTemplate(r.Context(), domain.CustomTemplate{
		GroupID:         groupID,
		Type:            domain.ActivityType(body.Type),
		Title:           body.Title,
		Description:     body.Description,
		DurationMinutes: body.DurationMinutes,
		Color:           body.Color,
	})
	if err != nil {
		s.writeError(w, r, err, "group not found")
		return
	}
	writeJSON(w, http.StatusCreated, templateToResponse(created))
}

// deleteTemplate handles DELETE /groups/{groupId}/templates/{templateId}.
func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	id, err := pathUUID(r, "templateId")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, requestBody(err.Error()))
		return
	}
	if err := s.logistics.DeleteTemplate(r.Context(), groupID, id); err != nil {
		s.writeError(w, r, err, "template not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func templateToResponse(t domain.CustomTemplate) templateResponse {
	return templateResponse{
		ID:              t.ID,
		GroupID:         t.GroupID,
		Type:            t.Type,
		Title:           t.Title,
		Description:     t.Description,
		DurationMinutes: t.DurationMinutes,
		Color:           t.Color,
		CreatedAt:       t.CreatedAt,
	}
}
